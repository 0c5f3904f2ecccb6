package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/treeforge/api"
	"github.com/agentic-research/treeforge/internal/session"
	"github.com/agentic-research/treeforge/internal/tree"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestLoad_Empty(t *testing.T) {
	st := openTemp(t)
	_, ok, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)

	s := session.New(session.Options{DefaultText: "app/\n    src/\n        main.go\n    logo.png # binary"})
	var main, logo *tree.Node
	tree.Walk(s.Tree(), func(n *tree.Node, _ int) bool {
		switch n.Name {
		case "main.go":
			main = n
		case "logo.png":
			logo = n
		}
		return true
	})
	require.NotNil(t, main)
	require.NotNil(t, logo)
	require.True(t, s.SetContent(main.ID, "package main\n"))
	require.True(t, s.UploadPayload(logo.ID, []byte{0x89, 'P', 'N', 'G'}))
	s.SetText(s.Text() + "\n    extra.txt")
	require.True(t, s.SelectFile(main.ID))
	require.NoError(t, s.SetView(api.ViewTree))

	require.NoError(t, st.Save(ctx, s.State()))

	loaded, ok, err := st.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s.Text(), loaded.Text)
	assert.Equal(t, main.ID, loaded.SelectedFile)
	assert.Equal(t, api.ViewTree, loaded.View)
	assert.Len(t, loaded.Undo, 1)
	assert.Empty(t, loaded.Redo)
	assert.True(t, tree.Equivalent(s.Tree(), loaded.Tree))

	r := session.Restore(session.Options{}, loaded)
	got := tree.Find(r.Tree(), main.ID)
	require.NotNil(t, got)
	assert.Equal(t, "package main\n", got.Content)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, tree.Find(r.Tree(), logo.ID).Upload)
	assert.True(t, r.Undo())
}

func TestSave_Overwrites(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)

	require.NoError(t, st.Save(ctx, session.New(session.Options{DefaultText: "one/"}).State()))
	require.NoError(t, st.Save(ctx, session.New(session.Options{DefaultText: "two/\nthree/"}).State()))

	loaded, ok, err := st.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two/\nthree/", loaded.Text)
	assert.Len(t, loaded.Tree, 2)
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "s.db")

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, session.New(session.Options{DefaultText: "keep/"}).State()))
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	loaded, ok, err := st.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "keep/", loaded.Text)
	assert.Equal(t, path, st.Path())
}
