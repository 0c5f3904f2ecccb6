// Package pack turns a tree into archive entries and delivers the archive.
package pack

import (
	"path"

	"github.com/agentic-research/treeforge/internal/tree"
)

const fallbackArchive = "project"

// Entry is one path in a packaged tree. Paths are slash-separated, relative
// and built from sanitized names; directories carry no data.
type Entry struct {
	Path   string
	Dir    bool
	Data   []byte
	NodeID string // node the entry came from; the last one for merged paths
}

// Collect flattens a forest into entries in depth-first order. Every folder
// gets its own entry, so empty folders survive packaging. Two folders with
// the same path merge into one entry; a later file replaces an earlier file
// at the same path.
func Collect(roots []*tree.Node) []Entry {
	var out []Entry
	seen := make(map[string]int)
	collect(roots, "", &out, seen)
	return out
}

func collect(nodes []*tree.Node, dir string, out *[]Entry, seen map[string]int) {
	for _, n := range nodes {
		p := path.Join(dir, n.Name)
		e := Entry{Path: p, Dir: n.Kind == tree.Folder, NodeID: n.ID}
		if !e.Dir {
			e.Data = FileData(n)
		}

		key := p
		if e.Dir {
			key += "/"
		}
		if i, ok := seen[key]; ok {
			(*out)[i] = e
		} else {
			seen[key] = len(*out)
			*out = append(*out, e)
		}

		if e.Dir {
			collect(n.Children, p, out, seen)
		}
	}
}

// FileData picks what a file node packages to: the uploaded payload, else
// non-empty text content, else its comment as a "# comment" line, else
// nothing.
func FileData(n *tree.Node) []byte {
	switch {
	case n.Upload != nil:
		return append([]byte{}, n.Upload...)
	case n.Content != "":
		return []byte(n.Content)
	case n.Comment != "":
		return []byte("# " + n.Comment + "\n")
	}
	return []byte{}
}

// ArchiveName is the first root's name with a .zip suffix.
func ArchiveName(roots []*tree.Node) string {
	name := fallbackArchive
	if len(roots) > 0 && roots[0].Name != "" {
		name = roots[0].Name
	}
	return name + ".zip"
}
