package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/treeforge/api"
	"github.com/agentic-research/treeforge/internal/tree"
)

func newTestSession(t *testing.T, text string) *Session {
	t.Helper()
	return New(Options{DefaultText: text})
}

func find(t *testing.T, s *Session, label string) *tree.Node {
	t.Helper()
	var found *tree.Node
	tree.Walk(s.Tree(), func(n *tree.Node, _ int) bool {
		if found == nil && n.Label() == label {
			found = n
		}
		return found == nil
	})
	require.NotNil(t, found, "no node %q", label)
	return found
}

func TestNew_DefaultSample(t *testing.T) {
	s := New(Options{})
	assert.Equal(t, tree.DefaultSample, s.Text())
	assert.Empty(t, s.Errors())
	assert.Equal(t, api.ViewPrompt, s.View())
	assert.False(t, s.History().CanUndo())
	assert.Equal(t, "project", s.Tree()[0].Name)
}

func TestSetText_UndoRedo(t *testing.T) {
	s := newTestSession(t, "a/")
	s.SetText("b/")
	s.SetText("c/")
	assert.Equal(t, "c/", s.Text())

	require.True(t, s.Undo())
	assert.Equal(t, "b/", s.Text())
	require.True(t, s.Undo())
	assert.Equal(t, "a/", s.Text())
	assert.False(t, s.Undo())

	require.True(t, s.Redo())
	assert.Equal(t, "b/", s.Text())
	s.SetText("d/")
	assert.False(t, s.Redo(), "a new edit clears redo")
}

func TestSetText_HistoryBound(t *testing.T) {
	s := newTestSession(t, "start")
	for i := 0; i < 60; i++ {
		s.SetText(fmt.Sprintf("t%d", i))
	}
	undos := 0
	for s.Undo() {
		undos++
	}
	assert.Equal(t, 50, undos)
	assert.Equal(t, "t9", s.Text())
}

func TestSetText_ErrorsDoNotBlockEditing(t *testing.T) {
	s := newTestSession(t, "ok/")
	s.SetText("ok/\n├── ../bad\n└── good.txt")
	assert.Equal(t, []string{"Line 2: Path traversal detected"}, s.Errors())
	find(t, s, "good.txt")

	n, err := s.AddNode("", tree.Spec{DisplayName: "more.txt"})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Empty(t, s.Errors(), "rendering drops the rejected line")
}

func TestSetText_KeepsIdentity(t *testing.T) {
	s := newTestSession(t, "app/\n    main.go\n    other.go")
	main := find(t, s, "main.go")
	require.True(t, s.SetContent(main.ID, "package main"))
	require.True(t, s.UploadPayload(find(t, s, "other.go").ID, []byte{7}))

	s.SetText("app/\n    main.go\n    other.go\n    new.go")
	again := find(t, s, "main.go")
	assert.Equal(t, main.ID, again.ID)
	assert.Equal(t, "package main", again.Content)
	assert.Equal(t, []byte{7}, find(t, s, "other.go").Upload)

	require.True(t, s.Undo())
	assert.Equal(t, main.ID, find(t, s, "main.go").ID)
}

func TestAddNode(t *testing.T) {
	s := newTestSession(t, "app/\n    readme.md")
	app := find(t, s, "app")

	n, err := s.AddNode(app.ID, tree.Spec{DisplayName: "src", Kind: tree.Folder})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "app/\n├── readme.md\n└── src/\n", s.Text())
	assert.True(t, s.History().CanUndo())

	// The new node survives as itself in the tree.
	assert.Same(t, n, tree.Find(s.Tree(), n.ID))
}

func TestAddNode_UnderFileIsNoop(t *testing.T) {
	s := newTestSession(t, "app/\n    readme.md")
	before := s.Text()
	readme := find(t, s, "readme.md")

	n, err := s.AddNode(readme.ID, tree.Spec{DisplayName: "x.txt"})
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Equal(t, before, s.Text())
	assert.False(t, s.History().CanUndo())
}

func TestAddNode_Invalid(t *testing.T) {
	s := newTestSession(t, "app/")
	_, err := s.AddNode("", tree.Spec{DisplayName: "x # y"})
	assert.ErrorIs(t, err, tree.ErrInvalidNode)
	assert.Equal(t, "app/", s.Text())
}

func TestUpdateNode(t *testing.T) {
	s := newTestSession(t, "app/\n    readme.md")
	readme := find(t, s, "readme.md")

	ok, err := s.UpdateNode(readme.ID, tree.Patch{DisplayName: ptr("README.md"), Comment: ptr("docs")})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "app/\n└── README.md # docs\n", s.Text())
	assert.Equal(t, readme.ID, find(t, s, "README.md").ID)

	ok, err = s.UpdateNode("missing", tree.Patch{Comment: ptr("x")})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateNode_ExpandedOnlyKeepsHistory(t *testing.T) {
	s := newTestSession(t, "app/\n")
	ok, err := s.UpdateNode(s.Tree()[0].ID, tree.Patch{Expanded: ptr(false)})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, s.Tree()[0].Expanded)
	assert.False(t, s.History().CanUndo(), "unchanged text is not recorded")
}

func TestDeleteNode_ClearsSelection(t *testing.T) {
	s := newTestSession(t, "app/\n    src/\n        main.go\n    readme.md")
	src := find(t, s, "src")
	main := find(t, s, "main.go")

	require.True(t, s.SelectFile(main.ID))
	assert.Equal(t, main.ID, s.SelectedNode())

	require.True(t, s.DeleteNode(src.ID))
	assert.Empty(t, s.SelectedNode())
	assert.Empty(t, s.SelectedFile())
	assert.Equal(t, "app/\n└── readme.md\n", s.Text())
	assert.Nil(t, tree.Find(s.Tree(), main.ID))

	assert.False(t, s.DeleteNode(src.ID))
}

func TestDeleteNode_KeepsUnrelatedSelection(t *testing.T) {
	s := newTestSession(t, "app/\n    src/\n    readme.md")
	readme := find(t, s, "readme.md")
	require.True(t, s.SelectNode(readme.ID))
	require.True(t, s.DeleteNode(find(t, s, "src").ID))
	assert.Equal(t, readme.ID, s.SelectedNode())
}

func TestUndo_PrunesSelection(t *testing.T) {
	s := newTestSession(t, "a.txt")
	s.SetText("a.txt\nb.txt")
	b := find(t, s, "b.txt")
	require.True(t, s.SelectFile(b.ID))
	require.True(t, s.Undo())
	assert.Empty(t, s.SelectedFile())
	assert.Empty(t, s.SelectedNode())
}

func TestSelect(t *testing.T) {
	s := newTestSession(t, "app/\n    f.txt")
	app := find(t, s, "app")
	assert.False(t, s.SelectFile(app.ID), "folders cannot be opened")
	assert.False(t, s.SelectNode("missing"))
	assert.True(t, s.SelectNode(app.ID))
	assert.True(t, s.SelectNode(""))
	assert.Empty(t, s.SelectedNode())
}

func TestSetView(t *testing.T) {
	s := newTestSession(t, "x")
	require.NoError(t, s.SetView(api.ViewCode))
	assert.Equal(t, api.ViewCode, s.View())
	assert.Error(t, s.SetView("nope"))
}

func TestReset(t *testing.T) {
	s := newTestSession(t, "home/")
	s.SetText("other/")
	require.True(t, s.SelectNode(s.Tree()[0].ID))
	require.NoError(t, s.SetView(api.ViewTree))

	s.Reset()
	assert.Equal(t, "home/", s.Text())
	assert.False(t, s.History().CanUndo())
	assert.Empty(t, s.SelectedNode())
	assert.Equal(t, api.DefaultView, s.View())
}

func TestPackage_UsesSnapshot(t *testing.T) {
	s := newTestSession(t, "app/\n    a.txt")
	release := make(chan struct{})
	var got Snapshot

	done := s.Package(context.Background(), func(_ context.Context, snap Snapshot) error {
		<-release
		got = snap
		return nil
	})
	assert.True(t, s.Packaging())

	busy := s.Package(context.Background(), func(context.Context, Snapshot) error { return nil })
	assert.ErrorIs(t, <-busy, ErrBusy)

	s.SetText("changed/")
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, "app/\n    a.txt", got.Text)
	assert.Equal(t, "app", got.Tree[0].Name)
	assert.False(t, s.Packaging())
}

func TestPackage_BackToBack(t *testing.T) {
	s := newTestSession(t, "app/")
	noop := func(context.Context, Snapshot) error { return nil }
	for i := 0; i < 200; i++ {
		require.NoError(t, <-s.Package(context.Background(), noop), "run %d", i)
		require.False(t, s.Packaging(), "run %d", i)
	}
}

func TestPackage_ReportsError(t *testing.T) {
	s := newTestSession(t, "x")
	boom := errors.New("boom")
	err := <-s.Package(context.Background(), func(context.Context, Snapshot) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestStateRestore(t *testing.T) {
	s := newTestSession(t, "app/\n    a.txt\n    b.txt")
	a := find(t, s, "a.txt")
	b := find(t, s, "b.txt")
	require.True(t, s.SetContent(a.ID, "alpha"))
	s.SetText(s.Text() + "\n    c.txt")
	require.True(t, s.SelectFile(a.ID))
	require.True(t, s.SelectNode(b.ID))
	require.NoError(t, s.SetView(api.ViewEditors))

	r := Restore(Options{}, s.State())
	assert.Equal(t, s.Text(), r.Text())
	assert.Equal(t, a.ID, find(t, r, "a.txt").ID)
	assert.Equal(t, "alpha", find(t, r, "a.txt").Content)
	assert.Equal(t, a.ID, r.SelectedFile())
	assert.Equal(t, b.ID, r.SelectedNode())
	assert.Equal(t, api.ViewEditors, r.View())
	require.True(t, r.Undo())
	assert.Equal(t, "app/\n    a.txt\n    b.txt", r.Text())
}

func TestLive_Concurrent(t *testing.T) {
	l := NewLive(newTestSession(t, "root/"))
	var mu sync.Mutex
	seen := 0
	l.OnChange(func(Snapshot) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = l.Update(func(s *Session) error {
				_, err := s.AddNode(s.Tree()[0].ID, tree.Spec{DisplayName: fmt.Sprintf("f%02d.txt", i)})
				return err
			})
			l.Read(func(s *Session) { _ = s.Text() })
		}(i)
	}
	wg.Wait()

	snap := l.Snapshot()
	assert.Len(t, snap.Tree[0].Children, 20)
	mu.Lock()
	assert.Equal(t, 20, seen)
	mu.Unlock()

	err := l.Update(func(*Session) error { return errors.New("nope") })
	assert.Error(t, err)
	mu.Lock()
	assert.Equal(t, 20, seen)
	mu.Unlock()
}

func ptr[T any](v T) *T { return &v }
