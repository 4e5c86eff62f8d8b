package content

import "errors"

var (
	// ErrNoJSON means the text contains no opening brace.
	ErrNoJSON = errors.New("no JSON object in response")
	// ErrUnbalancedJSON means an object was opened but never closed.
	ErrUnbalancedJSON = errors.New("unterminated JSON object in response")
)

// ExtractJSONObject returns the first top-level {...} span in text. Braces inside
// JSON strings, including escaped quotes, do not count toward nesting, so prose
// before or after the object and braces in string values are tolerated.
func ExtractJSONObject(text string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if start < 0 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	if start < 0 {
		return "", ErrNoJSON
	}
	return "", ErrUnbalancedJSON
}
