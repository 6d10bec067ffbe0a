package livestate

// ApplyBootstrap merges the one-shot active-work snapshot into the
// store. For every channel named in the snapshot the worker and branch
// maps are replaced wholesale; messages, typing state, and the history
// gate are untouched. Start times come from the server; current-tool
// fields start empty because the snapshot does not report mid-execution
// tool state.
//
// The id indexes are rebuilt afterwards so channel-less events route to
// the bootstrapped entries.
func ApplyBootstrap(s *Store, snap map[string]ChannelSnapshot) *Store {
	if len(snap) == 0 {
		return s
	}

	ns := s.clone()
	for channelID, cs := range snap {
		c := ns.channelOrNew(channelID).clone()

		workers := make(map[string]ActiveWorker, len(cs.Workers))
		for _, w := range cs.Workers {
			w.CurrentTool = ""
			workers[w.ID] = w
		}
		branches := make(map[string]ActiveBranch, len(cs.Branches))
		for _, b := range cs.Branches {
			b.CurrentTool = ""
			b.LastTool = ""
			branches[b.ID] = b
		}

		c.Workers = workers
		c.Branches = branches
		ns.Channels[channelID] = c
	}

	ns.workerIndex = make(map[string]string)
	ns.branchIndex = make(map[string]string)
	for channelID, c := range ns.Channels {
		for id := range c.Workers {
			ns.workerIndex[id] = channelID
		}
		for id := range c.Branches {
			ns.branchIndex[id] = channelID
		}
	}
	return ns
}
