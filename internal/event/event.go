// Package event defines the typed delta events delivered by the gateway
// event stream. Each wire frame is a JSON envelope with a "type"
// discriminant; Decode maps it to the matching concrete event value.
package event

import (
	"encoding/json"
	"fmt"
)

// Event kind discriminants, as they appear on the wire.
const (
	KindInboundMessage  = "inbound_message"
	KindOutboundMessage = "outbound_message"
	KindTypingState     = "typing_state"
	KindWorkerStarted   = "worker_started"
	KindWorkerStatus    = "worker_status"
	KindWorkerCompleted = "worker_completed"
	KindBranchStarted   = "branch_started"
	KindBranchCompleted = "branch_completed"
	KindToolStarted     = "tool_started"
	KindToolCompleted   = "tool_completed"
)

// ProcessType distinguishes the two kinds of background process a tool
// event can target.
type ProcessType string

const (
	ProcessWorker ProcessType = "worker"
	ProcessBranch ProcessType = "branch"
)

// Event is implemented by every stream event.
type Event interface {
	Kind() string
}

// InboundMessage is a user message arriving on a channel.
type InboundMessage struct {
	ChannelID string `json:"channel_id"`
	SenderID  string `json:"sender_id"`
	Text      string `json:"text"`
}

// OutboundMessage is an agent reply sent on a channel.
type OutboundMessage struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

// TypingState reports whether the agent is composing on a channel.
type TypingState struct {
	ChannelID string `json:"channel_id"`
	IsTyping  bool   `json:"is_typing"`
}

// WorkerStarted announces a new background worker on a channel.
type WorkerStarted struct {
	ChannelID string `json:"channel_id"`
	WorkerID  string `json:"worker_id"`
	Task      string `json:"task"`
}

// WorkerStatus updates a worker's free-form status string. Carries no
// channel id; worker ids are globally unique.
type WorkerStatus struct {
	WorkerID string `json:"worker_id"`
	Status   string `json:"status"`
}

// WorkerCompleted removes a worker. Carries no channel id.
type WorkerCompleted struct {
	WorkerID string `json:"worker_id"`
}

// BranchStarted announces a new reasoning branch on a channel.
type BranchStarted struct {
	ChannelID   string `json:"channel_id"`
	BranchID    string `json:"branch_id"`
	Description string `json:"description"`
}

// BranchCompleted removes a branch. Carries no channel id.
type BranchCompleted struct {
	BranchID string `json:"branch_id"`
}

// ToolStarted marks a tool invocation beginning inside a worker or branch.
type ToolStarted struct {
	ProcessType ProcessType `json:"process_type"`
	ProcessID   string      `json:"process_id"`
	ToolName    string      `json:"tool_name"`
}

// ToolCompleted marks a tool invocation finishing.
type ToolCompleted struct {
	ProcessType ProcessType `json:"process_type"`
	ProcessID   string      `json:"process_id"`
	ToolName    string      `json:"tool_name"`
}

func (InboundMessage) Kind() string  { return KindInboundMessage }
func (OutboundMessage) Kind() string { return KindOutboundMessage }
func (TypingState) Kind() string     { return KindTypingState }
func (WorkerStarted) Kind() string   { return KindWorkerStarted }
func (WorkerStatus) Kind() string    { return KindWorkerStatus }
func (WorkerCompleted) Kind() string { return KindWorkerCompleted }
func (BranchStarted) Kind() string   { return KindBranchStarted }
func (BranchCompleted) Kind() string { return KindBranchCompleted }
func (ToolStarted) Kind() string     { return KindToolStarted }
func (ToolCompleted) Kind() string   { return KindToolCompleted }

type envelope struct {
	Type string `json:"type"`
}

// Decode parses a wire frame into its concrete event type.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("event envelope: %w", err)
	}

	var ev Event
	switch env.Type {
	case KindInboundMessage:
		ev = &InboundMessage{}
	case KindOutboundMessage:
		ev = &OutboundMessage{}
	case KindTypingState:
		ev = &TypingState{}
	case KindWorkerStarted:
		ev = &WorkerStarted{}
	case KindWorkerStatus:
		ev = &WorkerStatus{}
	case KindWorkerCompleted:
		ev = &WorkerCompleted{}
	case KindBranchStarted:
		ev = &BranchStarted{}
	case KindBranchCompleted:
		ev = &BranchCompleted{}
	case KindToolStarted:
		ev = &ToolStarted{}
	case KindToolCompleted:
		ev = &ToolCompleted{}
	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return ev, nil
}
