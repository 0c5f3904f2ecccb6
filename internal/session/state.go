package session

import (
	"github.com/agentic-research/treeforge/api"
	"github.com/agentic-research/treeforge/internal/history"
	"github.com/agentic-research/treeforge/internal/logging"
	"github.com/agentic-research/treeforge/internal/tree"
)

// State is everything needed to bring a session back in another process.
type State struct {
	Text         string
	Tree         []*tree.Node // ids and payloads to carry over onto Text
	Undo         []string     // oldest first
	Redo         []string
	SelectedNode string
	SelectedFile string
	View         api.ViewMode
}

// State captures the session for persistence. The tree is deep-copied.
func (s *Session) State() State {
	undo, redo := s.hist.Stacks()
	return State{
		Text:         s.text,
		Tree:         tree.CloneAll(s.tree),
		Undo:         undo,
		Redo:         redo,
		SelectedNode: s.selectedNode,
		SelectedFile: s.selectedFile,
		View:         s.view,
	}
}

// Restore rebuilds a session from saved state. The text is re-parsed and
// the saved tree only contributes identity and payloads, so a state edited
// by hand cannot produce a tree that disagrees with its text.
func Restore(opts Options, st State) *Session {
	s := &Session{
		hist:        history.Restore(opts.HistoryLimit, st.Undo, st.Redo),
		view:        api.DefaultView,
		defaultText: opts.DefaultText,
		log:         logging.OrDiscard(opts.Logger),
	}
	if s.defaultText == "" {
		s.defaultText = tree.DefaultSample
	}
	s.load(st.Text, st.Tree)
	if st.View.Valid() {
		s.view = st.View
	}
	s.SelectNode(st.SelectedNode)
	s.SelectFile(st.SelectedFile)
	if st.SelectedNode != "" && s.selectedFile != "" && st.SelectedNode != st.SelectedFile {
		// SelectFile also moves the node selection; keep the saved one.
		s.SelectNode(st.SelectedNode)
	}
	return s
}
