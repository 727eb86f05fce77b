package llm

import (
	"fmt"
	"strings"
)

// The model is asked for bare JSON but routinely wraps it in prose or
// markdown fences. Extraction takes the first '{...}' or '[...]' span;
// over-matching is acceptable because every caller validates the span
// before trusting it and falls back on failure.

// ExtractJSONObject returns the first top-level JSON object span found
// in free text.
func ExtractJSONObject(text string) (string, error) {
	return extractSpan(text, '{', '}')
}

// ExtractJSONArray returns the first top-level JSON array span found in
// free text.
func ExtractJSONArray(text string) (string, error) {
	return extractSpan(text, '[', ']')
}

func extractSpan(text string, open, closer byte) (string, error) {
	text = stripFences(text)

	start := strings.IndexByte(text, open)
	if start == -1 {
		return "", fmt.Errorf("no %q found in model output", string(open))
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unbalanced %q in model output", string(open))
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
