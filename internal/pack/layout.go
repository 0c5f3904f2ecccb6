package pack

import (
	"bytes"
	"fmt"

	"github.com/ddddddO/gtree"

	"github.com/agentic-research/treeforge/internal/tree"
)

// Layout draws the paths packaging would produce, one tree per distinct
// root. It differs from tree.Render in using sanitized names and dropping
// comments, which makes it a preview of the archive rather than of the
// text. Siblings with the same label are drawn once, as Collect merges them.
func Layout(roots []*tree.Node) (string, error) {
	var (
		buf   bytes.Buffer
		order []*gtree.Node
		top   = make(map[string]*gtree.Node)
		kids  = make(map[*gtree.Node]map[string]*gtree.Node)
	)
	for _, r := range roots {
		label := layoutLabel(r)
		root, ok := top[label]
		if !ok {
			root = gtree.NewRoot(label)
			top[label] = root
			order = append(order, root)
		}
		if r.Kind == tree.Folder {
			addLayout(root, r.Children, kids)
		}
	}
	for _, root := range order {
		if err := gtree.OutputFromRoot(&buf, root); err != nil {
			return "", fmt.Errorf("draw layout: %w", err)
		}
	}
	return buf.String(), nil
}

func addLayout(parent *gtree.Node, nodes []*tree.Node, kids map[*gtree.Node]map[string]*gtree.Node) {
	seen := kids[parent]
	if seen == nil {
		seen = make(map[string]*gtree.Node)
		kids[parent] = seen
	}
	for _, n := range nodes {
		label := layoutLabel(n)
		child, ok := seen[label]
		if !ok {
			child = parent.Add(label)
			seen[label] = child
		}
		if n.Kind == tree.Folder {
			addLayout(child, n.Children, kids)
		}
	}
}

func layoutLabel(n *tree.Node) string {
	if n.Kind == tree.Folder {
		return n.Name + "/"
	}
	return n.Name
}
