package livestate

// MarkHistoryPending flips a channel's history gate from not-started to
// pending, creating the channel if it has never been observed. The flip
// happens before the fetch is issued so a re-entrant trigger sees the
// gate already closed. Returns the input store unchanged if the gate has
// already left the not-started state.
func MarkHistoryPending(s *Store, channelID string) *Store {
	c := s.channelOrNew(channelID)
	if c.History != HistoryNotStarted {
		return s
	}
	nc := c.clone()
	nc.History = HistoryPending
	ns := s.clone()
	ns.Channels[channelID] = nc
	return ns
}

// MarkHistoryFailed records a failed history fetch. The gate stays
// closed for the rest of the session; there is no retry.
func MarkHistoryFailed(s *Store, channelID string) *Store {
	c := s.Channels[channelID]
	if c == nil {
		return s
	}
	nc := c.clone()
	nc.History = HistoryFailed
	ns := s.clone()
	ns.Channels[channelID] = nc
	return ns
}

// MergeHistory folds a fetched history snapshot (oldest to newest) into
// the channel's live state. Live messages stamped strictly after the
// last history message are kept behind it; anything at or before that
// cutoff is presumed to already be in the snapshot and is dropped. The
// merged sequence is truncated to the newest MaxMessages entries.
//
// If the channel no longer exists the result is discarded untouched: a
// late fetch must not resurrect state.
func MergeHistory(s *Store, channelID string, history []ChatMessage) *Store {
	c := s.Channels[channelID]
	if c == nil {
		return s
	}

	var cutoff int64
	if len(history) > 0 {
		cutoff = history[len(history)-1].Timestamp
	}

	merged := make([]ChatMessage, 0, len(history)+len(c.Messages))
	merged = append(merged, history...)
	for _, m := range c.Messages {
		if m.Timestamp > cutoff {
			merged = append(merged, m)
		}
	}

	nc := c.clone()
	nc.Messages = truncateOldest(merged)
	nc.History = HistoryLoaded
	ns := s.clone()
	ns.Channels[channelID] = nc
	return ns
}
