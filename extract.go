package blueprint

import (
	"fmt"
	"strconv"
	"strings"
)

// extractText pulls the generated text out of a decoded provider response.
// A configured dot path wins; otherwise the common response shapes are
// probed in a fixed order.
func extractText(payload map[string]any, path string) (string, error) {
	if strings.TrimSpace(path) != "" {
		v, ok := walkPath(payload, path)
		if !ok {
			return "", fmt.Errorf("response has no value at %q", path)
		}
		return textOf(v, path)
	}
	for _, p := range commonTextPaths {
		if v, ok := walkPath(payload, p); ok {
			if s, err := textOf(v, p); err == nil && strings.TrimSpace(s) != "" {
				return s, nil
			}
		}
	}
	return "", fmt.Errorf("no text found in response")
}

// commonTextPaths covers the response shapes of the usual API families.
var commonTextPaths = []string{
	"choices.0.message.content",
	"content.0.text",
	"candidates.0.content.parts.0.text",
	"output.text",
	"result",
	"text",
}

// walkPath follows a dot path through decoded JSON; numeric segments index
// arrays.
func walkPath(v any, path string) (any, bool) {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func textOf(v any, path string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("value at %q is %T, not a string", path, v)
	}
	return s, nil
}
