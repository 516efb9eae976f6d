package session

import "strings"

// textFields is the closed set of payload field names streamed text may
// nest under. Different agent backends wrap their output differently;
// the walk below tries these names in order at every level.
var textFields = []string{"text", "message", "content", "output", "delta"}

// doneFields are the boolean flags a terminal event may carry instead of
// (or in addition to) a terminal state or stop reason.
var doneFields = []string{"done", "completed", "final"}

// maxExtractDepth bounds the recursive walk over wire payloads so a
// hostile or cyclic-looking payload cannot recurse unboundedly.
const maxExtractDepth = 8

// ExtractText pulls streamed text out of a dynamically shaped event
// payload: a bare string, or maps/arrays nesting text under the known
// field names. Lines are deduplicated in first-seen order; unknown shapes
// yield the empty string rather than an error.
func ExtractText(payload interface{}) string {
	lines := ExtractTextLines(payload)
	return strings.Join(lines, "\n")
}

// ExtractTextLines is ExtractText returning the deduplicated line list.
func ExtractTextLines(payload interface{}) []string {
	var lines []string
	seen := make(map[string]bool)
	collectText(payload, 0, seen, &lines)
	return lines
}

func collectText(v interface{}, depth int, seen map[string]bool, lines *[]string) {
	if depth > maxExtractDepth || v == nil {
		return
	}

	switch val := v.(type) {
	case string:
		for _, line := range strings.Split(val, "\n") {
			if seen[line] {
				continue
			}
			seen[line] = true
			*lines = append(*lines, line)
		}
	case []interface{}:
		for _, item := range val {
			collectText(item, depth+1, seen, lines)
		}
	case map[string]interface{}:
		for _, field := range textFields {
			if nested, ok := val[field]; ok {
				collectText(nested, depth+1, seen, lines)
			}
		}
	}
}

// payloadDoneFlag reports whether the payload carries an explicit
// done/completed/final boolean set to true.
func payloadDoneFlag(payload interface{}) bool {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return false
	}
	for _, field := range doneFields {
		if flag, ok := m[field].(bool); ok && flag {
			return true
		}
	}
	return false
}
