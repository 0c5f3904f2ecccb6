// Package tree converts indented ASCII-art layouts into a hierarchy of file
// and folder nodes and back again.
package tree

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by lookups that reference an unknown node id.
	ErrNotFound = errors.New("node not found")
	// ErrInvalidNode rejects a node spec or patch that could not be rendered
	// and parsed back without loss.
	ErrInvalidNode = errors.New("invalid node")
)

// Kind distinguishes files from folders.
type Kind int

const (
	File Kind = iota
	Folder
)

func (k Kind) String() string {
	if k == Folder {
		return "folder"
	}
	return "file"
}

// ParseKind maps "file"/"folder" (and the short forms "f"/"d") to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file", "f":
		return File, true
	case "folder", "dir", "directory", "d":
		return Folder, true
	}
	return File, false
}

// Node is one entry in the hierarchy. Folders exclusively own their
// children; there are no parent pointers.
type Node struct {
	ID          string
	Name        string // sanitized, used for packaging paths
	DisplayName string // text as typed; empty means Name
	Kind        Kind
	Children    []*Node // non-nil for folders, nil for files
	Content     string  // text payload (files only)
	Upload      []byte  // binary payload (files only), wins over Content
	Comment     string
	Expanded    bool
	SourceLevel int // depth the node was parsed at; construction only
}

// Label is the display form of the node.
func (n *Node) Label() string {
	if n.DisplayName != "" {
		return n.DisplayName
	}
	return n.Name
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool { return n.Kind == Folder }

// Clone returns a deep copy of the node and its subtree, ids included.
func (n *Node) Clone() *Node {
	c := *n
	if n.Upload != nil {
		c.Upload = append([]byte(nil), n.Upload...)
	}
	if n.Children != nil {
		c.Children = CloneAll(n.Children)
	}
	return &c
}

// CloneAll deep-copies a list of roots. The result is never nil.
func CloneAll(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// Spec describes a node to create.
type Spec struct {
	Name        string // optional; derived from DisplayName when empty
	DisplayName string
	Kind        Kind
	Comment     string
	Content     string
	Upload      []byte
}

func newID() string {
	return uuid.NewString()
}

// Walk visits nodes depth-first in serialization order. Returning false from
// fn skips the node's children.
func Walk(nodes []*Node, fn func(n *Node, depth int) bool) {
	walk(nodes, 0, fn)
}

func walk(nodes []*Node, depth int, fn func(n *Node, depth int) bool) {
	for _, n := range nodes {
		if fn(n, depth) && n.Kind == Folder {
			walk(n.Children, depth+1, fn)
		}
	}
}

// Find returns the node with the given id, or nil.
func Find(nodes []*Node, id string) *Node {
	if id == "" {
		return nil
	}
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
		if n.Kind == Folder {
			if found := Find(n.Children, id); found != nil {
				return found
			}
		}
	}
	return nil
}

// Count returns the number of nodes in the forest.
func Count(nodes []*Node) int {
	total := 0
	Walk(nodes, func(*Node, int) bool {
		total++
		return true
	})
	return total
}

// Equivalent reports whether two forests have the same shape, labels,
// comments and kinds. Ids and payloads are ignored.
func Equivalent(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Label() != y.Label() || x.Comment != y.Comment || x.Kind != y.Kind {
			return false
		}
		if !Equivalent(x.Children, y.Children) {
			return false
		}
	}
	return true
}
