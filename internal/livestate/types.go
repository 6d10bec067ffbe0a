// Package livestate maintains the per-channel live view of the agent
// platform: recent message traffic plus in-flight workers and branches.
// It folds three independent sources into one store — a one-shot history
// snapshot, a one-shot active-work snapshot, and the continuous event
// stream — and guarantees a consistent result regardless of the order
// their pieces arrive in.
//
// Every update produces a new Store value; nothing already published is
// mutated in place, so a snapshot obtained by a reader stays valid while
// reductions continue.
package livestate

import "time"

// MaxMessages is how many messages a channel retains. Older messages are
// dropped from the front.
const MaxMessages = 50

// Sender identifies who produced a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is one message on a channel. Immutable once created.
type ChatMessage struct {
	ID         string
	Sender     Sender
	SenderName string
	Text       string
	Timestamp  int64 // unix milliseconds
}

// ActiveWorker is a background task execution in flight on a channel.
type ActiveWorker struct {
	ID          string
	Task        string
	Status      string // free-form, server-defined
	StartedAt   time.Time
	ToolCalls   int
	CurrentTool string // "" when no tool is executing
}

// ActiveBranch is a reasoning sub-process in flight on a channel.
type ActiveBranch struct {
	ID          string
	Description string
	StartedAt   time.Time
	CurrentTool string // "" when no tool is executing
	LastTool    string // most recently completed tool, "" if none yet
	ToolCalls   int
}

// HistoryState tracks the one-shot history fetch for a channel. Loaded
// and Failed both keep the gate closed for the rest of the session.
type HistoryState int

const (
	HistoryNotStarted HistoryState = iota
	HistoryPending
	HistoryLoaded
	HistoryFailed
)

func (h HistoryState) String() string {
	switch h {
	case HistoryNotStarted:
		return "not-started"
	case HistoryPending:
		return "pending"
	case HistoryLoaded:
		return "loaded"
	case HistoryFailed:
		return "failed"
	}
	return "unknown"
}

// ChannelLiveState is the live view of one channel.
type ChannelLiveState struct {
	Typing   bool
	Messages []ChatMessage // insertion order, len <= MaxMessages
	Workers  map[string]ActiveWorker
	Branches map[string]ActiveBranch
	History  HistoryState
}

// ChannelSnapshot is the bootstrap snapshot of one channel's in-flight
// work, as reported by the gateway's active-work endpoint.
type ChannelSnapshot struct {
	Workers  []ActiveWorker
	Branches []ActiveBranch
}

// Totals are cross-channel counts of in-flight work.
type Totals struct {
	Workers  int
	Branches int
}
