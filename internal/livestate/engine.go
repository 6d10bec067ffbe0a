package livestate

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loopwork/pulse/internal/event"
)

// Gateway is what the engine needs from the platform's REST surface.
type Gateway interface {
	// ChannelHistory returns up to limit messages, oldest to newest.
	ChannelHistory(ctx context.Context, channelID string, limit int) ([]ChatMessage, error)

	// ActiveSnapshot returns currently in-flight work keyed by channel id.
	ActiveSnapshot(ctx context.Context) (map[string]ChannelSnapshot, error)
}

// Config configures an Engine.
type Config struct {
	Gateway Gateway

	// Invalidate, if set, is called after every reduced message event so
	// the channel-summary cache can refresh last-activity metadata.
	Invalidate func()

	// HistoryLimit bounds the one-shot history fetch per channel.
	// Defaults to MaxMessages.
	HistoryLimit int

	Logger *log.Logger
}

// Engine owns the store and is its only writer. Every transition runs
// under one mutex, so reductions never interleave; the resulting
// snapshot is published through an atomic pointer and is safe to read
// without coordination.
type Engine struct {
	mu    sync.Mutex
	store atomic.Pointer[Store]

	gateway      Gateway
	invalidate   func()
	historyLimit int
	logger       *log.Logger

	bootstrapped bool
	updates      chan struct{}
}

// NewEngine creates an engine with an empty store.
func NewEngine(cfg Config) *Engine {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = MaxMessages
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	e := &Engine{
		gateway:      cfg.Gateway,
		invalidate:   cfg.Invalidate,
		historyLimit: limit,
		logger:       logger,
		updates:      make(chan struct{}, 1),
	}
	e.store.Store(NewStore())
	return e
}

// Snapshot returns the current immutable store.
func (e *Engine) Snapshot() *Store {
	return e.store.Load()
}

// Updates signals after every store change. Signals coalesce; a reader
// that drains one may be seeing the result of several transitions.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

// Dispatch folds one stream event into the store.
func (e *Engine) Dispatch(ev event.Event) {
	e.mu.Lock()
	ns, invalidate := Reduce(e.store.Load(), ev, time.Now())
	changed := ns != e.store.Load()
	e.store.Store(ns)
	e.mu.Unlock()

	if invalidate && e.invalidate != nil {
		e.invalidate()
	}
	if changed {
		e.notify()
	}
}

// ObserveChannels registers channels from the channel list, starting the
// one-shot history backfill for any channel whose gate is still open.
// The gate flips before the fetch is issued, so calling this twice for
// the same channel issues exactly one fetch.
func (e *Engine) ObserveChannels(ctx context.Context, channelIDs []string) {
	var pending []string

	e.mu.Lock()
	store := e.store.Load()
	for _, id := range channelIDs {
		ns := MarkHistoryPending(store, id)
		if ns != store {
			pending = append(pending, id)
			store = ns
		}
	}
	e.store.Store(store)
	e.mu.Unlock()

	if len(pending) > 0 {
		e.notify()
	}
	for _, id := range pending {
		go e.fetchHistory(ctx, id)
	}
}

func (e *Engine) fetchHistory(ctx context.Context, channelID string) {
	msgs, err := e.gateway.ChannelHistory(ctx, channelID, e.historyLimit)

	e.mu.Lock()
	if err != nil {
		// One-shot policy: the gate stays closed, no retry this session.
		e.logger.Printf("warning: history fetch for channel %s failed: %v", channelID, err)
		e.store.Store(MarkHistoryFailed(e.store.Load(), channelID))
	} else {
		e.store.Store(MergeHistory(e.store.Load(), channelID, msgs))
	}
	e.mu.Unlock()
	e.notify()
}

// Bootstrap fetches the active-work snapshot once per session and merges
// it in. Failure is silently ignored: in-flight work that predates the
// stream simply stays invisible until the stream reveals it.
func (e *Engine) Bootstrap(ctx context.Context) {
	e.mu.Lock()
	if e.bootstrapped {
		e.mu.Unlock()
		return
	}
	e.bootstrapped = true
	e.mu.Unlock()

	go func() {
		snap, err := e.gateway.ActiveSnapshot(ctx)
		if err != nil {
			return
		}
		e.mu.Lock()
		e.store.Store(ApplyBootstrap(e.store.Load(), snap))
		e.mu.Unlock()
		e.notify()
	}()
}

func (e *Engine) notify() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}
