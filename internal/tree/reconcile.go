package tree

// Reconcile carries identity from prev onto next, a freshly parsed forest.
// Nodes are matched by kind and label among siblings, in order, descending
// only into matched folders, so a node keeps its id, name, payloads and
// expanded flag as long as its path is unchanged. Unmatched nodes keep the
// fresh ids the builder gave them.
func Reconcile(next, prev []*Node) {
	if len(next) == 0 || len(prev) == 0 {
		return
	}
	pool := make(map[string][]*Node, len(prev))
	for _, p := range prev {
		k := matchKey(p)
		pool[k] = append(pool[k], p)
	}
	for _, n := range next {
		k := matchKey(n)
		candidates := pool[k]
		if len(candidates) == 0 {
			continue
		}
		p := candidates[0]
		pool[k] = candidates[1:]

		n.ID = p.ID
		n.Name = p.Name
		n.Expanded = p.Expanded
		if n.Kind == File {
			n.Content = p.Content
			n.Upload = p.Upload
			continue
		}
		Reconcile(n.Children, p.Children)
	}
}

func matchKey(n *Node) string {
	return n.Kind.String() + "\x00" + n.Label()
}
