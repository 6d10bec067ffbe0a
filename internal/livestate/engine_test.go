package livestate

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loopwork/pulse/internal/event"
)

type fakeGateway struct {
	mu            sync.Mutex
	historyCalls  map[string]int
	history       map[string][]ChatMessage
	historyErr    error
	snapshot      map[string]ChannelSnapshot
	snapshotCalls int32
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		historyCalls: make(map[string]int),
		history:      make(map[string][]ChatMessage),
	}
}

func (g *fakeGateway) ChannelHistory(ctx context.Context, channelID string, limit int) ([]ChatMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.historyCalls[channelID]++
	if g.historyErr != nil {
		return nil, g.historyErr
	}
	return g.history[channelID], nil
}

func (g *fakeGateway) ActiveSnapshot(ctx context.Context) (map[string]ChannelSnapshot, error) {
	atomic.AddInt32(&g.snapshotCalls, 1)
	return g.snapshot, nil
}

func (g *fakeGateway) calls(channelID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.historyCalls[channelID]
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestEngineOneShotHistoryGate(t *testing.T) {
	gw := newFakeGateway()
	gw.history["ch1"] = []ChatMessage{msg("hist-1", 1)}
	e := NewEngine(Config{Gateway: gw, Logger: quietLogger()})

	ctx := context.Background()
	e.ObserveChannels(ctx, []string{"ch1"})
	e.ObserveChannels(ctx, []string{"ch1"}) // re-entrant trigger

	waitFor(t, func() bool {
		return e.Snapshot().Channel("ch1").History == HistoryLoaded
	})

	if got := gw.calls("ch1"); got != 1 {
		t.Errorf("history fetched %d times, want exactly 1", got)
	}

	// Still gated after loading.
	e.ObserveChannels(ctx, []string{"ch1"})
	if got := gw.calls("ch1"); got != 1 {
		t.Errorf("history refetched after load: %d calls", got)
	}
}

func TestEngineHistoryFailureKeepsGateClosed(t *testing.T) {
	gw := newFakeGateway()
	gw.historyErr = errors.New("gateway unavailable")
	e := NewEngine(Config{Gateway: gw, Logger: quietLogger()})

	ctx := context.Background()
	e.ObserveChannels(ctx, []string{"ch1"})
	waitFor(t, func() bool {
		return e.Snapshot().Channel("ch1").History == HistoryFailed
	})

	e.ObserveChannels(ctx, []string{"ch1"})
	if got := gw.calls("ch1"); got != 1 {
		t.Errorf("failed fetch retried: %d calls, want 1 (no retry this session)", got)
	}
}

func TestEngineBootstrapOncePerSession(t *testing.T) {
	gw := newFakeGateway()
	gw.snapshot = map[string]ChannelSnapshot{
		"ch1": {Workers: []ActiveWorker{{ID: "w1", Task: "t", Status: "running", StartedAt: time.Now()}}},
	}
	e := NewEngine(Config{Gateway: gw, Logger: quietLogger()})

	ctx := context.Background()
	e.Bootstrap(ctx)
	e.Bootstrap(ctx)

	waitFor(t, func() bool {
		return e.Snapshot().Totals().Workers == 1
	})
	if got := atomic.LoadInt32(&gw.snapshotCalls); got != 1 {
		t.Errorf("snapshot fetched %d times, want 1", got)
	}
}

func TestEngineDispatchInvalidates(t *testing.T) {
	var invalidations int32
	e := NewEngine(Config{
		Gateway:    newFakeGateway(),
		Invalidate: func() { atomic.AddInt32(&invalidations, 1) },
		Logger:     quietLogger(),
	})

	e.Dispatch(&event.InboundMessage{ChannelID: "ch1", SenderID: "u1", Text: "hi"})
	e.Dispatch(&event.TypingState{ChannelID: "ch1", IsTyping: true})
	e.Dispatch(&event.OutboundMessage{ChannelID: "ch1", Text: "hello"})

	if got := atomic.LoadInt32(&invalidations); got != 2 {
		t.Errorf("invalidations = %d, want 2 (message events only)", got)
	}

	c := e.Snapshot().Channel("ch1")
	if len(c.Messages) != 2 || c.Typing {
		t.Errorf("unexpected channel state: %d messages, typing=%v", len(c.Messages), c.Typing)
	}
}

func TestEngineUpdatesSignalCoalesces(t *testing.T) {
	e := NewEngine(Config{Gateway: newFakeGateway(), Logger: quietLogger()})

	for i := 0; i < 5; i++ {
		e.Dispatch(&event.InboundMessage{ChannelID: "ch1", SenderID: "u1", Text: "x"})
	}

	select {
	case <-e.Updates():
	default:
		t.Fatal("no update signal after dispatches")
	}
	select {
	case <-e.Updates():
		t.Fatal("signals should coalesce to at most one pending")
	default:
	}
}

func TestEngineLateHistoryAfterStreamMessages(t *testing.T) {
	// Stream traffic lands while the history fetch is in flight; the
	// merge must keep the newer live message and drop the overlap.
	gw := newFakeGateway()
	release := make(chan struct{})
	slow := &slowGateway{inner: gw, release: release}
	gw.history["ch1"] = []ChatMessage{{ID: "hist", Sender: SenderUser, Text: "old", Timestamp: 100}}

	e := NewEngine(Config{Gateway: slow, Logger: quietLogger()})
	e.ObserveChannels(context.Background(), []string{"ch1"})

	e.Dispatch(&event.InboundMessage{ChannelID: "ch1", SenderID: "u1", Text: "new"})
	close(release)

	waitFor(t, func() bool {
		return e.Snapshot().Channel("ch1").History == HistoryLoaded
	})

	msgs := e.Snapshot().Channel("ch1").Messages
	if len(msgs) != 2 {
		t.Fatalf("merged %d messages, want 2: %v", len(msgs), msgs)
	}
	if msgs[0].Text != "old" || msgs[1].Text != "new" {
		t.Errorf("merged order = [%s %s], want [old new]", msgs[0].Text, msgs[1].Text)
	}
}

type slowGateway struct {
	inner   *fakeGateway
	release chan struct{}
}

func (g *slowGateway) ChannelHistory(ctx context.Context, channelID string, limit int) ([]ChatMessage, error) {
	<-g.release
	return g.inner.ChannelHistory(ctx, channelID, limit)
}

func (g *slowGateway) ActiveSnapshot(ctx context.Context) (map[string]ChannelSnapshot, error) {
	return g.inner.ActiveSnapshot(ctx)
}
