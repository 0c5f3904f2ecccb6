package tree

import (
	"regexp"
	"strings"
)

const fallbackName = "unnamed"

var (
	boxDrawing   = regexp.MustCompile(`[\x{2500}-\x{257F}]`)
	reservedRune = regexp.MustCompile(`[<>:"|?*\\/\x00-\x1F]`)
	spaceRun     = regexp.MustCompile(`[\s\p{Z}]+`)
)

// Sanitize maps arbitrary text to a name that is safe as a single path
// segment on common filesystems. It never fails and is idempotent.
func Sanitize(text string) string {
	s := boxDrawing.ReplaceAllString(text, "")
	s = spaceRun.ReplaceAllString(s, " ")
	s = reservedRune.ReplaceAllString(s, "_")
	// Leading dots and spaces go together so " .env" cannot leave a dot behind.
	s = strings.TrimLeft(s, ". ")
	s = strings.TrimRight(s, " ")
	if s == "" {
		return fallbackName
	}
	return s
}
