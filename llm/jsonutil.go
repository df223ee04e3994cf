package llm

import (
	"regexp"
	"strings"
)

var (
	// fencedObjectPattern matches an object inside a markdown code fence.
	fencedObjectPattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*\\})\\s*```")
	bareObjectPattern   = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON pulls the JSON object out of a model answer. Code fences, line
// comments and trailing commas are tolerated. It returns "" when the text
// holds no object.
func ExtractJSON(text string) string {
	raw := ""
	if m := fencedObjectPattern.FindStringSubmatch(text); m != nil {
		raw = m[1]
	} else {
		raw = bareObjectPattern.FindString(text)
	}
	if raw == "" {
		return ""
	}

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripComment(line)
	}
	return dropTrailingCommas(strings.Join(lines, "\n"))
}

// dropTrailingCommas removes a comma that directly precedes a closing brace
// or bracket. Commas inside string literals are kept.
func dropTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == ',':
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// stripComment drops a // comment that starts outside a string literal.
func stripComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString, escaped := false, false
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
