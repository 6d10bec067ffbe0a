package livestate

import (
	"time"

	"github.com/google/uuid"
	"github.com/loopwork/pulse/internal/event"
)

// branchFallbackDescription is shown for branches started without one.
const branchFallbackDescription = "thinking..."

// Reduce applies one stream event and returns the resulting store. The
// second result reports whether the channel-summary cache should be
// invalidated (true only for message events).
//
// Events that reference a worker or branch id not present anywhere
// return the input store unchanged. now is the local receipt time; it
// stamps messages and newly started processes, since those events carry
// no server timestamp.
func Reduce(s *Store, ev event.Event, now time.Time) (*Store, bool) {
	switch ev := ev.(type) {
	case *event.InboundMessage:
		return s.appendMessage(ev.ChannelID, ChatMessage{
			ID:         uuid.New().String(),
			Sender:     SenderUser,
			SenderName: ev.SenderID,
			Text:       ev.Text,
			Timestamp:  now.UnixMilli(),
		}, false), true

	case *event.OutboundMessage:
		return s.appendMessage(ev.ChannelID, ChatMessage{
			ID:        uuid.New().String(),
			Sender:    SenderBot,
			Text:      ev.Text,
			Timestamp: now.UnixMilli(),
		}, true), true

	case *event.TypingState:
		c := s.channelOrNew(ev.ChannelID).clone()
		c.Typing = ev.IsTyping
		ns := s.clone()
		ns.Channels[ev.ChannelID] = c
		return ns, false

	case *event.WorkerStarted:
		c := s.channelOrNew(ev.ChannelID).clone()
		c.Workers = cloneWorkers(c.Workers)
		c.Workers[ev.WorkerID] = ActiveWorker{
			ID:        ev.WorkerID,
			Task:      ev.Task,
			Status:    "starting",
			StartedAt: now,
		}
		ns := s.clone()
		ns.Channels[ev.ChannelID] = c
		ns.workerIndex[ev.WorkerID] = ev.ChannelID
		return ns, false

	case *event.WorkerStatus:
		return s.updateWorker(ev.WorkerID, func(w *ActiveWorker) {
			w.Status = ev.Status
		}), false

	case *event.WorkerCompleted:
		return s.removeWorker(ev.WorkerID), false

	case *event.BranchStarted:
		desc := ev.Description
		if desc == "" {
			desc = branchFallbackDescription
		}
		c := s.channelOrNew(ev.ChannelID).clone()
		c.Branches = cloneBranches(c.Branches)
		c.Branches[ev.BranchID] = ActiveBranch{
			ID:          ev.BranchID,
			Description: desc,
			StartedAt:   now,
		}
		ns := s.clone()
		ns.Channels[ev.ChannelID] = c
		ns.branchIndex[ev.BranchID] = ev.ChannelID
		return ns, false

	case *event.BranchCompleted:
		return s.removeBranch(ev.BranchID), false

	case *event.ToolStarted:
		switch ev.ProcessType {
		case event.ProcessWorker:
			return s.updateWorker(ev.ProcessID, func(w *ActiveWorker) {
				w.CurrentTool = ev.ToolName
			}), false
		case event.ProcessBranch:
			return s.updateBranch(ev.ProcessID, func(b *ActiveBranch) {
				b.CurrentTool = ev.ToolName
			}), false
		}
		return s, false

	case *event.ToolCompleted:
		switch ev.ProcessType {
		case event.ProcessWorker:
			return s.updateWorker(ev.ProcessID, func(w *ActiveWorker) {
				w.CurrentTool = ""
				w.ToolCalls++
			}), false
		case event.ProcessBranch:
			return s.updateBranch(ev.ProcessID, func(b *ActiveBranch) {
				b.CurrentTool = ""
				b.ToolCalls++
				b.LastTool = ev.ToolName
			}), false
		}
		return s, false
	}

	return s, false
}

func (s *Store) appendMessage(channelID string, msg ChatMessage, clearTyping bool) *Store {
	c := s.channelOrNew(channelID).clone()
	c.Messages = appendBounded(c.Messages, msg)
	if clearTyping {
		c.Typing = false
	}
	ns := s.clone()
	ns.Channels[channelID] = c
	return ns
}

// updateWorker routes a channel-less event to the worker's channel via
// the id index. Unknown ids leave the store untouched.
func (s *Store) updateWorker(id string, fn func(*ActiveWorker)) *Store {
	channelID, ok := s.workerIndex[id]
	if !ok {
		return s
	}
	c := s.Channels[channelID]
	w, ok := c.Workers[id]
	if !ok {
		return s
	}
	fn(&w)
	nc := c.clone()
	nc.Workers = cloneWorkers(c.Workers)
	nc.Workers[id] = w
	ns := s.clone()
	ns.Channels[channelID] = nc
	return ns
}

func (s *Store) updateBranch(id string, fn func(*ActiveBranch)) *Store {
	channelID, ok := s.branchIndex[id]
	if !ok {
		return s
	}
	c := s.Channels[channelID]
	b, ok := c.Branches[id]
	if !ok {
		return s
	}
	fn(&b)
	nc := c.clone()
	nc.Branches = cloneBranches(c.Branches)
	nc.Branches[id] = b
	ns := s.clone()
	ns.Channels[channelID] = nc
	return ns
}

func (s *Store) removeWorker(id string) *Store {
	channelID, ok := s.workerIndex[id]
	if !ok {
		return s
	}
	c := s.Channels[channelID]
	if _, ok := c.Workers[id]; !ok {
		return s
	}
	nc := c.clone()
	nc.Workers = cloneWorkers(c.Workers)
	delete(nc.Workers, id)
	ns := s.clone()
	ns.Channels[channelID] = nc
	delete(ns.workerIndex, id)
	return ns
}

func (s *Store) removeBranch(id string) *Store {
	channelID, ok := s.branchIndex[id]
	if !ok {
		return s
	}
	c := s.Channels[channelID]
	if _, ok := c.Branches[id]; !ok {
		return s
	}
	nc := c.clone()
	nc.Branches = cloneBranches(c.Branches)
	delete(nc.Branches, id)
	ns := s.clone()
	ns.Channels[channelID] = nc
	delete(ns.branchIndex, id)
	return ns
}
