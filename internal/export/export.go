// Package export renders a session as a structured document (JSON or YAML)
// and evaluates JSONPath queries against it.
package export

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"gopkg.in/yaml.v3"

	"github.com/agentic-research/treeforge/api"
	"github.com/agentic-research/treeforge/internal/pack"
	"github.com/agentic-research/treeforge/internal/session"
	"github.com/agentic-research/treeforge/internal/tree"
)

// Format names an output encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// FromSession builds the document for the session's current state.
func FromSession(s *session.Session) api.Document {
	doc := FromTree(s.Tree(), s.Errors(), s.Warnings())
	doc.SelectedNode = s.SelectedNode()
	doc.SelectedFile = s.SelectedFile()
	doc.View = s.View()
	return doc
}

// FromTree builds a document for a bare forest.
func FromTree(roots []*tree.Node, errs, warnings []string) api.Document {
	return api.Document{
		Version:  api.DocumentVersion,
		Archive:  pack.ArchiveName(roots),
		Nodes:    nodes(roots),
		Errors:   errs,
		Warnings: warnings,
		View:     api.DefaultView,
	}
}

func nodes(in []*tree.Node) []api.Node {
	out := make([]api.Node, len(in))
	for i, n := range in {
		out[i] = api.Node{
			ID:         n.ID,
			Name:       n.Name,
			Kind:       n.Kind.String(),
			Comment:    n.Comment,
			Content:    n.Content,
			UploadSize: len(n.Upload),
			Expanded:   n.Expanded,
		}
		if n.DisplayName != n.Name {
			out[i].DisplayName = n.DisplayName
		}
		if n.Kind == tree.Folder {
			out[i].Children = nodes(n.Children)
		}
	}
	return out
}

// Generic converts a document into plain maps and slices, the form JSONPath
// evaluates against. Keys match the JSON field names.
func Generic(doc api.Document) map[string]any {
	m := map[string]any{
		"version": doc.Version,
		"archive": doc.Archive,
		"nodes":   genericNodes(doc.Nodes),
		"view":    string(doc.View),
	}
	if len(doc.Errors) > 0 {
		m["errors"] = strings2any(doc.Errors)
	}
	if len(doc.Warnings) > 0 {
		m["warnings"] = strings2any(doc.Warnings)
	}
	if doc.SelectedNode != "" {
		m["selected_node"] = doc.SelectedNode
	}
	if doc.SelectedFile != "" {
		m["selected_file"] = doc.SelectedFile
	}
	return m
}

func genericNodes(in []api.Node) []any {
	out := make([]any, len(in))
	for i, n := range in {
		m := map[string]any{
			"id":       n.ID,
			"name":     n.Name,
			"kind":     n.Kind,
			"expanded": n.Expanded,
		}
		if n.DisplayName != "" {
			m["display_name"] = n.DisplayName
		}
		if n.Comment != "" {
			m["comment"] = n.Comment
		}
		if n.Content != "" {
			m["content"] = n.Content
		}
		if n.UploadSize > 0 {
			m["upload_size"] = int64(n.UploadSize)
		}
		if n.Kind == tree.Folder.String() {
			m["children"] = genericNodes(n.Children)
		}
		out[i] = m
	}
	return out
}

func strings2any(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// Encode writes doc in the given format. JSON output has sorted keys and
// two-space indentation so it diffs cleanly.
func Encode(doc api.Document, f Format) ([]byte, error) {
	switch f {
	case JSON:
		return []byte(oj.JSON(Generic(doc), &oj.Options{Indent: 2, Sort: true}) + "\n"), nil
	case YAML:
		out, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown format %q", f)
}

// Query evaluates a JSONPath expression against doc.
func Query(doc api.Document, expr string) ([]any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", expr, err)
	}
	return x.Get(Generic(doc)), nil
}
