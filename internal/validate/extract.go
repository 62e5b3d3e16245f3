package validate

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// fencedBlock captures the body of the first markdown code block.
	fencedBlock = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)\r?\n?[ \t]*```")
	leadingFence  = regexp.MustCompile("^```[A-Za-z0-9_-]*[ \t]*\r?\n?")
	trailingFence = regexp.MustCompile("\r?\n?[ \t]*```[ \t]*$")
)

// strip removes markdown code-fence markers. A complete fenced block that
// carries an object wins over surrounding prose; a lone opening or closing
// fence (truncated output) is trimmed.
func strip(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fencedBlock.FindStringSubmatch(s); m != nil && strings.Contains(m[1], "{") {
		return strings.TrimSpace(m[1])
	}
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// locate returns the text between the first '{' and the last '}'.
func locate(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// parseObject decodes s and accepts only a top-level JSON object.
func parseObject(s string) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// secondaryCandidate searches the original raw text for the largest
// brace-delimited object. Scanning is string-aware so braces inside string
// values do not count. When an object never closes (truncated output), the
// open structure is closed at the end of the text and competes with the
// balanced candidates by its original length.
func secondaryCandidate(raw string) (string, bool) {
	var (
		best    string
		bestLen int
	)
	for i := 0; i < len(raw); {
		start := strings.IndexByte(raw[i:], '{')
		if start < 0 {
			break
		}
		start += i

		end, closed := scanBalanced(raw, start)
		if !closed {
			if n := len(raw) - start; n > bestLen {
				best, bestLen = closeTruncated(raw[start:]), n
			}
			break
		}
		if n := end + 1 - start; n > bestLen {
			best, bestLen = raw[start:end+1], n
		}
		i = end + 1
	}
	if bestLen == 0 {
		return "", false
	}
	return cleanJSON(best), true
}

// scanBalanced returns the index of the brace closing the object opened at
// start, ignoring braces inside strings.
func scanBalanced(s string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
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
				return i, true
			}
		}
	}
	return -1, false
}

// closeTruncated appends the quotes and brackets needed to close a JSON
// fragment cut off mid-stream. A dangling key, colon or comma is dropped
// first so the result can parse.
func closeTruncated(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
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
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if escaped {
		b.WriteString(`\`)
	}
	if inString {
		b.WriteString(`"`)
	}
	out := trimDangling(b.String(), stack)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out += "}"
		} else {
			out += "]"
		}
	}
	return out
}

var (
	danglingKey   = regexp.MustCompile(`,?\s*"(?:[^"\\]|\\.)*"\s*:?\s*$`)
	danglingColon = regexp.MustCompile(`,?\s*"(?:[^"\\]|\\.)*"\s*:\s*$`)
	danglingComma = regexp.MustCompile(`[,:]\s*$`)
)

// trimDangling removes an incomplete trailing member. Inside an object a
// lone string is a key without a value; inside an array it is a value.
func trimDangling(s string, stack []byte) string {
	s = strings.TrimRight(s, " \t\r\n")
	inObject := len(stack) > 0 && stack[len(stack)-1] == '{'
	switch {
	case danglingColon.MatchString(s):
		s = danglingColon.ReplaceAllString(s, "")
	case inObject && endsWithKey(s):
		s = danglingKey.ReplaceAllString(s, "")
	}
	return danglingComma.ReplaceAllString(s, "")
}

// endsWithKey reports whether the last string literal in s sits where an
// object key is expected (after '{' or ',').
func endsWithKey(s string) bool {
	loc := danglingKey.FindStringIndex(s)
	if loc == nil {
		return false
	}
	before := strings.TrimRight(s[:loc[0]], " \t\r\n")
	if strings.HasPrefix(strings.TrimSpace(s[loc[0]:]), ",") {
		return true
	}
	return strings.HasSuffix(before, "{")
}

// cleanJSON removes // and /* */ comments and trailing commas outside
// string literals.
func cleanJSON(s string) string {
	var b bytes.Buffer
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
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
		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
			} else {
				i += end + 3
			}
		case c == ',':
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
