package session

import "sort"

// ReconcileHistory merges authoritative history turns with the current
// local turn list.
//
// History is ground truth: every history turn is kept. A local turn absent
// from history survives only while it is still in flight (sending, queued,
// delta, streaming) or its id is in the queued set — this keeps a slow
// in-flight send visible when a concurrent refresh fetches history that
// predates it. Local turns history has superseded are discarded.
//
// The result is sorted by creation time ascending (stable, so equal
// timestamps keep history-before-local order).
func ReconcileHistory(history []Turn, local []Turn, queued map[string]bool) []Turn {
	merged := make([]Turn, 0, len(history)+len(local))
	seen := make(map[string]bool, len(history))

	for _, turn := range history {
		merged = append(merged, turn)
		seen[turn.ID] = true
	}

	for _, turn := range local {
		if seen[turn.ID] {
			continue
		}
		if inFlightStates[turn.State] || queued[turn.ID] {
			merged = append(merged, turn)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged
}
