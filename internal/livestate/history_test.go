package livestate

import (
	"fmt"
	"testing"

	"github.com/loopwork/pulse/internal/event"
)

func msg(id string, ts int64) ChatMessage {
	return ChatMessage{ID: id, Sender: SenderUser, Text: id, Timestamp: ts}
}

func TestMergeHistoryCutoff(t *testing.T) {
	// A live message older than the history cutoff is presumed to be in
	// the snapshot already; one newer arrived after the snapshot was
	// taken and must survive.
	s := NewStore()
	c := newChannelState()
	c.Messages = []ChatMessage{msg("live-50", 50), msg("live-150", 150)}
	s.Channels["ch1"] = c

	s = MergeHistory(s, "ch1", []ChatMessage{msg("hist-100", 100)})

	got := s.Channel("ch1").Messages
	if len(got) != 2 {
		t.Fatalf("merged length = %d, want 2 (%v)", len(got), got)
	}
	if got[0].ID != "hist-100" || got[1].ID != "live-150" {
		t.Errorf("merged = [%s %s], want [hist-100 live-150]", got[0].ID, got[1].ID)
	}
	if s.Channel("ch1").History != HistoryLoaded {
		t.Errorf("history state = %v, want loaded", s.Channel("ch1").History)
	}
}

func TestMergeHistoryEqualTimestampDropped(t *testing.T) {
	// Strictly-greater filter: a live message stamped exactly at the
	// cutoff is treated as a duplicate of the snapshot's last entry.
	s := NewStore()
	c := newChannelState()
	c.Messages = []ChatMessage{msg("live-100", 100)}
	s.Channels["ch1"] = c

	s = MergeHistory(s, "ch1", []ChatMessage{msg("hist-100", 100)})

	got := s.Channel("ch1").Messages
	if len(got) != 1 || got[0].ID != "hist-100" {
		t.Errorf("merged = %v, want only hist-100", got)
	}
}

func TestMergeHistoryEmptySnapshot(t *testing.T) {
	s := NewStore()
	c := newChannelState()
	c.Messages = []ChatMessage{msg("live-1", 1)}
	s.Channels["ch1"] = c

	s = MergeHistory(s, "ch1", nil)

	if got := s.Channel("ch1").Messages; len(got) != 1 || got[0].ID != "live-1" {
		t.Errorf("merged = %v, want the live message kept", got)
	}
}

func TestMergeHistoryTruncates(t *testing.T) {
	history := make([]ChatMessage, 40)
	for i := range history {
		history[i] = msg(fmt.Sprintf("hist-%d", i), int64(i+1))
	}

	s := NewStore()
	c := newChannelState()
	for i := 0; i < 20; i++ {
		c.Messages = append(c.Messages, msg(fmt.Sprintf("live-%d", i), int64(100+i)))
	}
	s.Channels["ch1"] = c

	s = MergeHistory(s, "ch1", history)

	got := s.Channel("ch1").Messages
	if len(got) != MaxMessages {
		t.Fatalf("merged length = %d, want %d", len(got), MaxMessages)
	}
	// 40 history + 20 live = 60; the 10 oldest history entries fall off.
	if got[0].ID != "hist-10" {
		t.Errorf("oldest = %s, want hist-10", got[0].ID)
	}
	if got[len(got)-1].ID != "live-19" {
		t.Errorf("newest = %s, want live-19", got[len(got)-1].ID)
	}
}

func TestMergeHistoryChannelGone(t *testing.T) {
	s := NewStore()
	ns := MergeHistory(s, "gone", []ChatMessage{msg("hist-1", 1)})
	if ns != s {
		t.Error("late fetch for a missing channel must be discarded")
	}
}

func TestMarkHistoryPendingOnce(t *testing.T) {
	s := MarkHistoryPending(NewStore(), "ch1")
	if got := s.Channel("ch1").History; got != HistoryPending {
		t.Fatalf("history state = %v, want pending", got)
	}

	if ns := MarkHistoryPending(s, "ch1"); ns != s {
		t.Error("second mark should be a no-op")
	}

	s = MarkHistoryFailed(s, "ch1")
	if got := s.Channel("ch1").History; got != HistoryFailed {
		t.Fatalf("history state = %v, want failed", got)
	}
	if ns := MarkHistoryPending(s, "ch1"); ns != s {
		t.Error("failed gate must stay closed for the session")
	}
}

func TestHistoryGateSurvivesStreamTraffic(t *testing.T) {
	s := MarkHistoryPending(NewStore(), "ch1")
	s, _ = Reduce(s, &event.InboundMessage{ChannelID: "ch1", SenderID: "u1", Text: "hi"}, t0)

	if got := s.Channel("ch1").History; got != HistoryPending {
		t.Errorf("history state = %v after stream message, want pending", got)
	}

	s = MergeHistory(s, "ch1", nil)
	if got := s.Channel("ch1").History; got != HistoryLoaded {
		t.Errorf("history state = %v, want loaded", got)
	}
}
