package api

import (
	"fmt"
	"strings"
)

// DocumentVersion identifies the exported document layout.
const DocumentVersion = "v1alpha1"

// Document is the serialized form of a session: the tree plus the
// diagnostics of the text it was parsed from.
type Document struct {
	// Version of the document layout.
	Version string `json:"version" yaml:"version"`
	// Archive is the file name packaging would produce.
	Archive string `json:"archive" yaml:"archive"`
	// Nodes are the root entries in serialization order.
	Nodes []Node `json:"nodes" yaml:"nodes"`
	// Errors are line-level parse errors; packaging is refused while any exist.
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	// Warnings never block packaging.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	// SelectedNode and SelectedFile are node ids, empty when nothing is selected.
	SelectedNode string `json:"selected_node,omitempty" yaml:"selected_node,omitempty"`
	SelectedFile string `json:"selected_file,omitempty" yaml:"selected_file,omitempty"`
	// View is the active presentation mode.
	View ViewMode `json:"view" yaml:"view"`
}

// Node is one file or folder.
type Node struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	// DisplayName is the text as typed, when it differs from Name.
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Kind        string `json:"kind" yaml:"kind"`
	Comment     string `json:"comment,omitempty" yaml:"comment,omitempty"`
	Content     string `json:"content,omitempty" yaml:"content,omitempty"`
	// UploadSize is the byte length of an attached binary payload.
	UploadSize int    `json:"upload_size,omitempty" yaml:"upload_size,omitempty"`
	Expanded   bool   `json:"expanded" yaml:"expanded"`
	Children   []Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// ViewMode selects which presentation a front-end shows. It is stored with
// the session but carries no meaning for the engine.
type ViewMode string

const (
	ViewPrompt  ViewMode = "prompt"
	ViewText    ViewMode = "text"
	ViewTree    ViewMode = "tree"
	ViewCode    ViewMode = "code"
	ViewEditors ViewMode = "editors"

	DefaultView = ViewPrompt
)

// ViewModes lists every valid mode.
var ViewModes = []ViewMode{ViewPrompt, ViewText, ViewTree, ViewCode, ViewEditors}

// Valid reports whether v is a known mode.
func (v ViewMode) Valid() bool {
	for _, m := range ViewModes {
		if v == m {
			return true
		}
	}
	return false
}

// ParseViewMode accepts a mode name case-insensitively.
func ParseViewMode(s string) (ViewMode, error) {
	v := ViewMode(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown view mode %q", s)
	}
	return v, nil
}
