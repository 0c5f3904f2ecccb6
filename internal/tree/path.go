package tree

import "strings"

// WalkPaths visits every node depth-first with its slash-joined path built
// from sanitized names. Folder paths end in "/".
func WalkPaths(nodes []*Node, fn func(n *Node, p string)) {
	walkPaths(nodes, "", fn)
}

func walkPaths(nodes []*Node, dir string, fn func(n *Node, p string)) {
	for _, n := range nodes {
		p := dir + n.Name
		if n.Kind == Folder {
			p += "/"
		}
		fn(n, p)
		if n.Kind == Folder {
			walkPaths(n.Children, p, fn)
		}
	}
}

// Resolve finds a node by id, or failing that by path. A path without a
// trailing slash matches files before folders. The first match in
// depth-first order wins when names repeat.
func Resolve(nodes []*Node, ref string) *Node {
	if ref == "" {
		return nil
	}
	if n := Find(nodes, ref); n != nil {
		return n
	}
	want := strings.TrimPrefix(ref, "/")
	var file, folder *Node
	WalkPaths(nodes, func(n *Node, p string) {
		switch {
		case file == nil && n.Kind == File && p == want:
			file = n
		case folder == nil && n.Kind == Folder && (p == want || p == want+"/"):
			folder = n
		}
	})
	if file != nil {
		return file
	}
	return folder
}
