package session

import "strings"

// PlaceholderText is the in-progress sentinel shown for a turn before any
// assistant text has streamed. The merge engine treats it as empty so the
// first real fragment fully replaces it.
const PlaceholderText = "…"

// MergeStreamText reconciles successive partial-text deltas for one turn
// into a monotonically growing assistant text.
//
// Rules, in order:
//   - An empty fragment keeps the previous text unchanged (placeholder
//     included).
//   - The placeholder sentinel counts as empty on either side.
//   - If the fragment extends or contains the previous text, adopt the
//     fragment; if the previous text already contains the fragment, keep
//     the previous text. This absorbs servers that resend whole buffers.
//   - Otherwise append only the part of the fragment past the maximal
//     overlap (the longest suffix of previous that is a prefix of the
//     fragment), so resent overlapping chunks never duplicate text.
func MergeStreamText(previous, incoming string) string {
	if incoming == "" {
		return previous
	}
	if previous == PlaceholderText {
		previous = ""
	}
	if incoming == PlaceholderText {
		return previous
	}
	if previous == "" {
		return incoming
	}

	if strings.Contains(incoming, previous) {
		return incoming
	}
	if strings.Contains(previous, incoming) {
		return previous
	}

	// Maximal overlap: scan from full overlap down to zero.
	max := len(previous)
	if len(incoming) < max {
		max = len(incoming)
	}
	for k := max; k > 0; k-- {
		if strings.HasSuffix(previous, incoming[:k]) {
			return previous + incoming[k:]
		}
	}
	return previous + incoming
}
