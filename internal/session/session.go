// Package session owns the editable state of one tree document: the raw
// text, the tree parsed from it, selection, view mode and edit history.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/agentic-research/treeforge/api"
	"github.com/agentic-research/treeforge/internal/history"
	"github.com/agentic-research/treeforge/internal/logging"
	"github.com/agentic-research/treeforge/internal/tree"
)

// ErrBusy is returned by Package while another export is still running.
var ErrBusy = errors.New("packaging already in progress")

// Options configure a new session.
type Options struct {
	// HistoryLimit bounds the undo stack; 0 means history.DefaultLimit.
	HistoryLimit int
	// DefaultText is loaded by New and Reset; empty means tree.DefaultSample.
	DefaultText string
	Logger      *slog.Logger
}

// Session is a single document. Methods are not safe for concurrent use;
// wrap the session in a Live to share it between front-ends.
type Session struct {
	text     string
	tree     []*tree.Node
	errors   []string
	warnings []string

	hist         *history.History
	selectedNode string
	selectedFile string
	view         api.ViewMode

	defaultText string
	packaging   atomic.Bool
	log         *slog.Logger
}

// New starts a session on the default text with empty history.
func New(opts Options) *Session {
	s := &Session{
		hist:        history.New(opts.HistoryLimit),
		view:        api.DefaultView,
		defaultText: opts.DefaultText,
		log:         logging.OrDiscard(opts.Logger),
	}
	if s.defaultText == "" {
		s.defaultText = tree.DefaultSample
	}
	s.load(s.defaultText, nil)
	return s
}

// Text is the current raw text.
func (s *Session) Text() string { return s.text }

// Tree is the current forest. Callers must not modify it; use Snapshot for
// a private copy.
func (s *Session) Tree() []*tree.Node { return s.tree }

// Errors are the line errors of the current text. Non-empty errors block
// packaging.
func (s *Session) Errors() []string { return s.errors }

// Warnings never block packaging.
func (s *Session) Warnings() []string { return s.warnings }

func (s *Session) SelectedNode() string { return s.selectedNode }
func (s *Session) SelectedFile() string { return s.selectedFile }
func (s *Session) View() api.ViewMode   { return s.view }

// History exposes the undo/redo stacks for inspection and persistence.
func (s *Session) History() *history.History { return s.hist }

// SetText replaces the raw text, recording the previous text as an undo
// step. Nodes whose structural path is unchanged keep their ids and
// payloads.
func (s *Session) SetText(text string) {
	s.hist.Record(s.text)
	s.load(text, s.tree)
	s.log.Debug("text replaced", "nodes", tree.Count(s.tree), "errors", len(s.errors))
}

// Undo restores the previous text. It reports false when there was nothing
// to undo.
func (s *Session) Undo() bool {
	prev, ok := s.hist.Undo(s.text)
	if !ok {
		return false
	}
	s.load(prev, s.tree)
	return true
}

// Redo re-applies the most recently undone text.
func (s *Session) Redo() bool {
	next, ok := s.hist.Redo(s.text)
	if !ok {
		return false
	}
	s.load(next, s.tree)
	return true
}

// Reset returns to the default text with empty history, no selection and
// the default view.
func (s *Session) Reset() {
	s.hist.Clear()
	s.selectedNode, s.selectedFile = "", ""
	s.view = api.DefaultView
	s.load(s.defaultText, nil)
	s.log.Info("session reset")
}

// AddNode creates a node under parentID, or a new root when parentID is
// empty. A missing or file parent leaves the session unchanged and returns
// a nil node.
func (s *Session) AddNode(parentID string, spec tree.Spec) (*tree.Node, error) {
	roots, n, err := tree.Add(s.tree, parentID, spec)
	if err != nil || n == nil {
		return nil, err
	}
	s.tree = roots
	s.commit()
	return n, nil
}

// UpdateNode merges patch into the node. Unknown ids report false.
func (s *Session) UpdateNode(id string, patch tree.Patch) (bool, error) {
	ok, err := tree.Update(s.tree, id, patch)
	if err != nil || !ok {
		return false, err
	}
	if s.selectedFile == id && patch.Kind != nil && *patch.Kind == tree.Folder {
		s.selectedFile = ""
	}
	s.commit()
	return true, nil
}

// DeleteNode removes the node and its subtree and clears any selection
// that pointed into it.
func (s *Session) DeleteNode(id string) bool {
	removedIDs := tree.NewIndex(s.tree)
	gone := removedIDs.Subtree(id)
	roots, removed := tree.Delete(s.tree, id)
	if removed == nil {
		return false
	}
	if removedIDs.Contains(gone, s.selectedNode) {
		s.selectedNode = ""
	}
	if removedIDs.Contains(gone, s.selectedFile) {
		s.selectedFile = ""
	}
	s.tree = roots
	s.commit()
	s.log.Debug("node deleted", "id", id, "removed", gone.GetCardinality())
	return true
}

// UploadPayload attaches binary data to a file node. Payloads do not appear
// in the text, so history is untouched.
func (s *Session) UploadPayload(id string, data []byte) bool {
	return tree.Upload(s.tree, id, data)
}

// SetContent replaces the text payload of a file node.
func (s *Session) SetContent(id, content string) bool {
	return tree.SetContent(s.tree, id, content)
}

// SelectNode marks a node as selected. An empty id clears the selection.
func (s *Session) SelectNode(id string) bool {
	if id == "" {
		s.selectedNode = ""
		return true
	}
	if tree.Find(s.tree, id) == nil {
		return false
	}
	s.selectedNode = id
	return true
}

// SelectFile opens a file node, which also selects it. Folders are
// rejected. An empty id clears the open file.
func (s *Session) SelectFile(id string) bool {
	if id == "" {
		s.selectedFile = ""
		return true
	}
	n := tree.Find(s.tree, id)
	if n == nil || n.Kind != tree.File {
		return false
	}
	s.selectedFile = id
	s.selectedNode = id
	return true
}

// SetView changes the presentation mode.
func (s *Session) SetView(v api.ViewMode) error {
	if !v.Valid() {
		return fmt.Errorf("unknown view mode %q", v)
	}
	s.view = v
	return nil
}

// Snapshot is an immutable copy of the tree and its diagnostics.
type Snapshot struct {
	Text     string
	Tree     []*tree.Node
	Errors   []string
	Warnings []string
}

// Snapshot deep-copies the current state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Text:     s.text,
		Tree:     tree.CloneAll(s.tree),
		Errors:   append([]string{}, s.errors...),
		Warnings: append([]string{}, s.warnings...),
	}
}

// Packaging reports whether an export started by Package is still running.
func (s *Session) Packaging() bool { return s.packaging.Load() }

// Package runs export on its own goroutine against a snapshot taken now, so
// edits made while it runs do not affect the result. The returned channel
// yields exactly one value.
func (s *Session) Package(ctx context.Context, export func(context.Context, Snapshot) error) <-chan error {
	done := make(chan error, 1)
	if !s.packaging.CompareAndSwap(false, true) {
		done <- ErrBusy
		return done
	}
	snap := s.Snapshot()
	go func() {
		err := export(ctx, snap)
		if err != nil {
			s.log.Error("packaging failed", "error", err)
		}
		// Cleared before the send so a receiver may start the next export.
		s.packaging.Store(false)
		done <- err
	}()
	return done
}

// commit renders an in-place edit back to text. An edit that does not
// change the text is not recorded.
func (s *Session) commit() {
	text := tree.Render(s.tree)
	if text != s.text {
		s.hist.Record(s.text)
		s.text = text
	}
	res := tree.Parse(text)
	s.errors, s.warnings = res.Errors, res.Warnings
}

// load parses text and carries identity over from prev.
func (s *Session) load(text string, prev []*tree.Node) {
	res := tree.Parse(text)
	tree.Reconcile(res.Tree, prev)
	s.text = text
	s.tree = res.Tree
	s.errors, s.warnings = res.Errors, res.Warnings
	s.pruneSelection()
}

func (s *Session) pruneSelection() {
	if s.selectedNode != "" && tree.Find(s.tree, s.selectedNode) == nil {
		s.selectedNode = ""
	}
	if s.selectedFile != "" && tree.Find(s.tree, s.selectedFile) == nil {
		s.selectedFile = ""
	}
}
