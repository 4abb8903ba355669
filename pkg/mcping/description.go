package mcping

import (
	"strings"
)

// FlattenText returns the plain text of a description value.
// Strings are returned as is; chat components contribute their "text"
// (or "translate" key when there is no text) followed by their "extra"
// children; arrays are concatenated. Formatting is dropped.
func FlattenText(v any) string {
	var b strings.Builder
	flattenInto(&b, v, 0)
	return b.String()
}

// maxComponentDepth bounds recursion on hostile documents.
const maxComponentDepth = 64

func flattenInto(b *strings.Builder, v any, depth int) {
	if depth > maxComponentDepth {
		return
	}

	switch node := v.(type) {
	case string:
		b.WriteString(node)
	case []any:
		for _, child := range node {
			flattenInto(b, child, depth+1)
		}
	case map[string]any:
		if text, ok := node["text"].(string); ok {
			b.WriteString(text)
		} else if key, ok := node["translate"].(string); ok {
			b.WriteString(key)
		}

		if extra, ok := node["extra"].([]any); ok {
			for _, child := range extra {
				flattenInto(b, child, depth+1)
			}
		}
	}
}
