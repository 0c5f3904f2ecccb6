package tree

import (
	"fmt"
	"strings"
)

// Patch lists the fields UpdateNode merges into a node. Nil fields are left
// untouched.
type Patch struct {
	Name        *string
	DisplayName *string
	Kind        *Kind
	Comment     *string
	Content     *string
	Expanded    *bool
}

// Add appends a node built from spec to the folder parentID, or as a new
// root when parentID is empty. A missing parent or a file parent is a no-op
// and returns a nil node. The returned slice replaces roots.
func Add(roots []*Node, parentID string, spec Spec) ([]*Node, *Node, error) {
	n, err := newNode(spec)
	if err != nil {
		return roots, nil, err
	}
	if parentID == "" {
		return append(roots, n), n, nil
	}
	parent := Find(roots, parentID)
	if parent == nil || parent.Kind != Folder {
		return roots, nil, nil
	}
	parent.Children = append(parent.Children, n)
	return roots, n, nil
}

func newNode(spec Spec) (*Node, error) {
	display := strings.TrimSpace(spec.DisplayName)
	label := display
	if label == "" {
		label = strings.TrimSpace(spec.Name)
	}
	if label == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidNode)
	}
	comment := strings.TrimSpace(spec.Comment)
	if err := checkRepresentable(label, spec.Kind, comment); err != nil {
		return nil, err
	}

	name := spec.Name
	if strings.TrimSpace(name) == "" {
		name = label
	}
	n := &Node{
		ID:          newID(),
		Name:        Sanitize(name),
		DisplayName: display,
		Kind:        spec.Kind,
		Comment:     comment,
		Expanded:    true,
	}
	if spec.Kind == Folder {
		n.Children = []*Node{}
	} else {
		n.Content = spec.Content
		if spec.Upload != nil {
			n.Upload = append([]byte(nil), spec.Upload...)
		}
	}
	return n, nil
}

// Update merges patch into the node with the given id in place. It reports
// false without error when the id is unknown. Patches that would leave the
// tree unrenderable, or turn a non-empty folder into a file, are rejected.
func Update(roots []*Node, id string, patch Patch) (bool, error) {
	n := Find(roots, id)
	if n == nil {
		return false, nil
	}

	display := n.DisplayName
	if patch.DisplayName != nil {
		display = strings.TrimSpace(*patch.DisplayName)
	}
	name := n.Name
	switch {
	case patch.Name != nil:
		name = Sanitize(*patch.Name)
	case patch.DisplayName != nil && display != "":
		name = Sanitize(display)
	}
	kind := n.Kind
	if patch.Kind != nil {
		kind = *patch.Kind
	}
	comment := n.Comment
	if patch.Comment != nil {
		comment = strings.TrimSpace(*patch.Comment)
	}

	if kind == File && len(n.Children) > 0 {
		return false, fmt.Errorf("%w: folder %q is not empty", ErrInvalidNode, n.Label())
	}
	label := display
	if label == "" {
		label = name
	}
	if err := checkRepresentable(label, kind, comment); err != nil {
		return false, err
	}

	n.Name = name
	n.DisplayName = display
	n.Comment = comment
	if patch.Expanded != nil {
		n.Expanded = *patch.Expanded
	}
	if kind != n.Kind {
		n.Kind = kind
		if kind == Folder {
			n.Children = []*Node{}
			n.Content = ""
			n.Upload = nil
		} else {
			n.Children = nil
		}
	}
	if patch.Content != nil && n.Kind == File {
		n.Content = *patch.Content
	}
	return true, nil
}

// Delete removes the node with the given id and its subtree. It returns the
// updated roots and the removed node, or nil when the id is unknown.
func Delete(roots []*Node, id string) ([]*Node, *Node) {
	for i, n := range roots {
		if n.ID == id {
			return append(roots[:i:i], roots[i+1:]...), n
		}
	}
	for _, n := range roots {
		if n.Kind != Folder {
			continue
		}
		children, removed := Delete(n.Children, id)
		if removed != nil {
			n.Children = children
			return roots, removed
		}
	}
	return roots, nil
}

// Upload attaches a binary payload to a file. Folders and unknown ids are
// left alone.
func Upload(roots []*Node, id string, data []byte) bool {
	n := Find(roots, id)
	if n == nil || n.Kind != File {
		return false
	}
	n.Upload = append([]byte{}, data...)
	return true
}

// SetContent replaces the text payload of a file.
func SetContent(roots []*Node, id, content string) bool {
	n := Find(roots, id)
	if n == nil || n.Kind != File {
		return false
	}
	n.Content = content
	return true
}

// checkRepresentable renders the line a node would produce and parses it
// back; anything that does not come back unchanged would be lost on the
// next text round trip.
func checkRepresentable(label string, kind Kind, comment string) error {
	if strings.ContainsAny(label, "\r\n") || strings.ContainsAny(comment, "\r\n") {
		return fmt.Errorf("%w: line breaks are not allowed", ErrInvalidNode)
	}
	pl := ParseLine(lineBody(label, kind, comment), 1)
	if pl.Err != "" {
		return fmt.Errorf("%w: %s", ErrInvalidNode, pl.Err)
	}
	if pl.Level != 0 || pl.Content != label || pl.IsFolder != (kind == Folder) || pl.Comment != comment {
		return fmt.Errorf("%w: %q would not survive re-parsing", ErrInvalidNode, label)
	}
	return nil
}
