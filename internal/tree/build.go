package tree

import "fmt"

// Build nests parsed lines into a forest using a stack of open folders.
// Lines carrying an error are skipped. A line indented deeper than any open
// folder attaches to the nearest one instead of failing; such lines and
// duplicate sibling names are reported as warnings.
func Build(lines []ParsedLine) ([]*Node, []string) {
	roots := []*Node{}
	warnings := []string{}

	var stack []*Node
	seen := map[*Node]map[string]bool{nil: {}}

	for _, pl := range lines {
		if pl.Err != "" || pl.Content == "" {
			continue
		}
		n := nodeFromLine(pl)

		for len(stack) > pl.Level {
			stack = stack[:len(stack)-1]
		}
		if pl.Level > len(stack) {
			warnings = append(warnings, lineMessage(pl.Line,
				fmt.Sprintf("indentation skips %d level(s); attached at depth %d", pl.Level-len(stack), len(stack))))
		}

		var parent *Node
		if len(stack) == 0 {
			roots = append(roots, n)
		} else {
			parent = stack[len(stack)-1]
			parent.Children = append(parent.Children, n)
		}

		if seen[parent][n.Name] {
			warnings = append(warnings, lineMessage(pl.Line,
				fmt.Sprintf("duplicate name %q in the same folder", n.Name)))
		}
		seen[parent][n.Name] = true

		if n.Kind == Folder {
			stack = append(stack, n)
			seen[n] = map[string]bool{}
		}
	}
	return roots, warnings
}

func nodeFromLine(pl ParsedLine) *Node {
	n := &Node{
		ID:          newID(),
		Name:        Sanitize(pl.Content),
		DisplayName: pl.Content,
		Kind:        File,
		Comment:     pl.Comment,
		Expanded:    true,
		SourceLevel: pl.Level,
	}
	if pl.IsFolder {
		n.Kind = Folder
		n.Children = []*Node{}
	}
	return n
}
