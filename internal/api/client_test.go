package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/loopwork/pulse/internal/livestate"
)

func TestChannels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/channels" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("auth header = %q", got)
		}
		w.Write([]byte(`[
			{"id":"ch1","platform":"telegram","name":"support","last_activity":1000},
			{"id":"ch2","platform":"discord","last_activity":2000}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	channels, err := c.Channels(context.Background())
	if err != nil {
		t.Fatalf("Channels error: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(channels))
	}
	if channels[0].DisplayName() != "support" {
		t.Errorf("display name = %q, want support", channels[0].DisplayName())
	}
	if channels[1].DisplayName() != "ch2" {
		t.Errorf("display name fallback = %q, want ch2", channels[1].DisplayName())
	}
}

func TestChannelHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/channels/ch1/history" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q, want 50", got)
		}
		w.Write([]byte(`[
			{"id":"m1","role":"user","sender_id":"u9","content":"hello","created_at":100},
			{"id":"m2","role":"assistant","sender_name":"helper","content":"hi","created_at":200}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	msgs, err := c.ChannelHistory(context.Background(), "ch1", 50)
	if err != nil {
		t.Fatalf("ChannelHistory error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Sender != livestate.SenderUser || msgs[0].SenderName != "u9" {
		t.Errorf("user message mapped wrong: %+v", msgs[0])
	}
	if msgs[1].Sender != livestate.SenderBot || msgs[1].Timestamp != 200 {
		t.Errorf("bot message mapped wrong: %+v", msgs[1])
	}
}

func TestActiveSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/active" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"ch1": {
				"active_workers": [{"id":"w1","task":"dig","status":"running","started_at":5000,"tool_calls":2}],
				"active_branches": [{"id":"b1","description":"ponder","started_at":6000}]
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	snap, err := c.ActiveSnapshot(context.Background())
	if err != nil {
		t.Fatalf("ActiveSnapshot error: %v", err)
	}

	cs, ok := snap["ch1"]
	if !ok {
		t.Fatal("ch1 missing from snapshot")
	}
	if len(cs.Workers) != 1 || cs.Workers[0].ToolCalls != 2 || cs.Workers[0].StartedAt.UnixMilli() != 5000 {
		t.Errorf("workers mapped wrong: %+v", cs.Workers)
	}
	if len(cs.Branches) != 1 || cs.Branches[0].Description != "ponder" {
		t.Errorf("branches mapped wrong: %+v", cs.Branches)
	}
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.Channels(context.Background()); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestChannelCacheInvalidate(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`[{"id":"ch1","platform":"telegram","last_activity":1}]`))
	}))
	defer srv.Close()

	cache := NewChannelCache(NewClient(srv.URL, ""))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cache.Channels(ctx); err != nil {
			t.Fatalf("Channels error: %v", err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("gateway hit %d times while fresh, want 1", got)
	}

	cache.Invalidate()
	if _, err := cache.Channels(ctx); err != nil {
		t.Fatalf("Channels error: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("gateway hit %d times after invalidation, want 2", got)
	}
}
