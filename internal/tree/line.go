package tree

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	msgEmptyLine     = "Empty line"
	msgNoContent     = "No content found"
	msgTraversal     = "Path traversal detected"
	msgInvalidChars  = "Invalid filename characters"
	invalidNameRunes = `<>:"|?*`
)

var (
	ansiEscape     = regexp.MustCompile(`\x1B(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)
	trailingRemark = regexp.MustCompile(`^(.+?)\s+#\s*(.+)$`)

	unitPipe   = []rune("│   ")
	unitSpaces = []rune("    ")
	branchTee  = []rune("├──")
	branchEnd  = []rune("└──")
)

// ParsedLine is the construction-time result of parsing one line.
type ParsedLine struct {
	Line     int // 1-based physical line number
	Content  string
	Level    int
	IsFolder bool
	Comment  string
	Err      string
}

// ParseLine parses a single line of tree text. It never fails: problems are
// reported in Err and the partially parsed fields are still returned.
func ParseLine(raw string, lineNumber int) ParsedLine {
	pl := ParsedLine{Line: lineNumber}
	if strings.TrimSpace(raw) == "" {
		pl.Err = msgEmptyLine
		return pl
	}

	line := cleanLine(raw)
	pl.Level = indentLevel(line)

	// Connectors go before the comment split so "├── # x" is a name, not
	// an empty line with a comment.
	content := strings.TrimSpace(stripConnectors(line))
	if m := trailingRemark.FindStringSubmatch(content); m != nil {
		if comment := strings.TrimSpace(m[2]); comment != "" {
			content = strings.TrimSpace(m[1])
			pl.Comment = comment
		}
	}

	if strings.HasSuffix(content, "/") || strings.HasSuffix(content, `\`) {
		pl.IsFolder = true
		content = content[:len(content)-1]
	}
	pl.Content = content
	pl.Err = validateContent(content)
	return pl
}

// cleanLine removes terminal escape sequences and normalizes the
// non-breaking spaces some tree printers emit.
func cleanLine(raw string) string {
	s := strings.TrimSuffix(raw, "\r")
	for {
		next := ansiEscape.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	return strings.ReplaceAll(s, "\u00a0", " ")
}

// indentLevel counts 4-column indentation units up to and including the
// branch glyph. Glyph-free indentation falls back to leadingSpaces/4.
func indentLevel(line string) int {
	rs := []rune(line)
	level, i := 0, 0
	for i < len(rs) {
		switch {
		case hasRunePrefix(rs[i:], unitPipe), hasRunePrefix(rs[i:], unitSpaces):
			level++
			i += 4
		case hasRunePrefix(rs[i:], branchTee), hasRunePrefix(rs[i:], branchEnd):
			return level + 1
		case rs[i] == ' ' || rs[i] == '\t':
			i++
			if i%4 == 0 {
				level = i / 4
			}
		default:
			return level
		}
	}
	return level
}

func hasRunePrefix(s, prefix []rune) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i, r := range prefix {
		if s[i] != r {
			return false
		}
	}
	return true
}

func isConnector(r rune) bool {
	switch r {
	case '├', '└', '│', '─':
		return true
	}
	return false
}

func stripConnectors(s string) string {
	return strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || isConnector(r)
	})
}

func validateContent(content string) string {
	switch {
	case content == "":
		return msgNoContent
	case strings.Contains(content, ".."):
		return msgTraversal
	case strings.ContainsAny(content, invalidNameRunes):
		return msgInvalidChars
	}
	return ""
}

func lineMessage(line int, msg string) string {
	return fmt.Sprintf("Line %d: %s", line, msg)
}
