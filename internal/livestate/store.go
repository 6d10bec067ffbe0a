package livestate

// Store is one immutable snapshot of every channel's live state.
//
// Reductions never modify a Store; they build a new one that shares
// untouched channel states with its predecessor. The unexported maps
// index worker and branch ids to their owning channel so that events
// carrying no channel id route without scanning every channel. Ids are
// assumed globally unique across channels; the index keeps the
// first-match-wins behavior that assumption implies.
type Store struct {
	Channels map[string]*ChannelLiveState

	workerIndex map[string]string // worker id -> channel id
	branchIndex map[string]string // branch id -> channel id
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		Channels:    make(map[string]*ChannelLiveState),
		workerIndex: make(map[string]string),
		branchIndex: make(map[string]string),
	}
}

// Channel returns the live state for id, or nil if the channel has never
// been observed.
func (s *Store) Channel(id string) *ChannelLiveState {
	return s.Channels[id]
}

// Totals counts in-flight work across all channels. Recomputed on each
// call; the number of active processes is small.
func (s *Store) Totals() Totals {
	var t Totals
	for _, c := range s.Channels {
		t.Workers += len(c.Workers)
		t.Branches += len(c.Branches)
	}
	return t
}

func newChannelState() *ChannelLiveState {
	return &ChannelLiveState{
		Workers:  make(map[string]ActiveWorker),
		Branches: make(map[string]ActiveBranch),
	}
}

// clone copies the store's maps so the new value can be edited before it
// is published. Channel states are shared until individually replaced.
func (s *Store) clone() *Store {
	ns := &Store{
		Channels:    make(map[string]*ChannelLiveState, len(s.Channels)+1),
		workerIndex: make(map[string]string, len(s.workerIndex)),
		branchIndex: make(map[string]string, len(s.branchIndex)),
	}
	for id, c := range s.Channels {
		ns.Channels[id] = c
	}
	for id, ch := range s.workerIndex {
		ns.workerIndex[id] = ch
	}
	for id, ch := range s.branchIndex {
		ns.branchIndex[id] = ch
	}
	return ns
}

// clone copies a channel state shallowly. Callers replace whichever
// field they change with a fresh value.
func (c *ChannelLiveState) clone() *ChannelLiveState {
	cc := *c
	return &cc
}

// channelOrNew returns the existing state for id or a fresh empty one.
// The store itself is not modified.
func (s *Store) channelOrNew(id string) *ChannelLiveState {
	if c := s.Channels[id]; c != nil {
		return c
	}
	return newChannelState()
}

func cloneWorkers(m map[string]ActiveWorker) map[string]ActiveWorker {
	nm := make(map[string]ActiveWorker, len(m)+1)
	for k, v := range m {
		nm[k] = v
	}
	return nm
}

func cloneBranches(m map[string]ActiveBranch) map[string]ActiveBranch {
	nm := make(map[string]ActiveBranch, len(m)+1)
	for k, v := range m {
		nm[k] = v
	}
	return nm
}

// appendBounded appends msg to a fresh slice holding at most MaxMessages
// entries, dropping from the oldest end. The input slice is not touched.
func appendBounded(msgs []ChatMessage, msg ChatMessage) []ChatMessage {
	total := len(msgs) + 1
	start := 0
	if total > MaxMessages {
		start = total - MaxMessages
	}
	out := make([]ChatMessage, 0, total-start)
	out = append(out, msgs[start:]...)
	return append(out, msg)
}

// truncateOldest keeps the last MaxMessages entries of msgs.
func truncateOldest(msgs []ChatMessage) []ChatMessage {
	if len(msgs) <= MaxMessages {
		return msgs
	}
	return msgs[len(msgs)-MaxMessages:]
}
