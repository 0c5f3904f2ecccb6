package tree

import "strings"

// ParseResult is what a parse hands to collaborators. An empty Errors list
// means the tree is safe to package.
type ParseResult struct {
	Tree     []*Node
	Errors   []string
	Warnings []string
}

// HasErrors reports whether any line failed to parse.
func (r ParseResult) HasErrors() bool { return len(r.Errors) > 0 }

// Parse converts tree text into a forest. Blank lines are skipped; every
// other malformed line is reported as "Line <n>: <message>" and left out of
// the tree. Parse never fails.
func Parse(text string) ParseResult {
	res := ParseResult{Tree: []*Node{}, Errors: []string{}, Warnings: []string{}}

	raw := strings.Split(text, "\n")
	lines := make([]ParsedLine, 0, len(raw))
	for i, l := range raw {
		if strings.TrimSpace(l) == "" {
			continue
		}
		pl := ParseLine(l, i+1)
		if pl.Err != "" {
			res.Errors = append(res.Errors, lineMessage(pl.Line, pl.Err))
		}
		lines = append(lines, pl)
	}

	res.Tree, res.Warnings = Build(lines)
	return res
}
