package pack

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/treeforge/internal/session"
	"github.com/agentic-research/treeforge/internal/tree"
)

var stamp = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func parse(t *testing.T, text string) []*tree.Node {
	t.Helper()
	res := tree.Parse(text)
	require.Empty(t, res.Errors)
	return res.Tree
}

func TestCollect(t *testing.T) {
	roots := parse(t, "app/\n├── src/\n│   ├── main.go\n│   └── empty/\n├── notes.md # todo list\n└── logo.png")
	tree.Walk(roots, func(n *tree.Node, _ int) bool {
		switch n.Name {
		case "main.go":
			n.Content = "package main\n"
			n.Upload = nil
		case "logo.png":
			n.Content = "ignored"
			n.Upload = []byte{1, 2}
		}
		return true
	})

	entries := Collect(roots)
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	assert.Equal(t, []string{"app", "app/src", "app/src/main.go", "app/src/empty", "app/notes.md", "app/logo.png"}, paths)
	assert.True(t, entries[3].Dir)
	assert.Equal(t, "package main\n", string(entries[2].Data))
	assert.Equal(t, "# todo list\n", string(entries[4].Data))
	assert.Equal(t, []byte{1, 2}, entries[5].Data)
}

func TestCollect_Duplicates(t *testing.T) {
	roots := parse(t, "a/\n    x.txt # first\n    x.txt # second\n    d/\n        one\n    d/\n        two")
	entries := Collect(roots)
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	assert.Equal(t, []string{"a", "a/x.txt", "a/d", "a/d/one", "a/d/two"}, paths)
	assert.Equal(t, "# second\n", string(entries[1].Data))
}

func TestFileData_EmptyFile(t *testing.T) {
	assert.Equal(t, []byte{}, FileData(&tree.Node{Kind: tree.File}))
	assert.Equal(t, []byte{}, FileData(&tree.Node{Kind: tree.File, Upload: []byte{}}))
}

func TestArchiveName(t *testing.T) {
	assert.Equal(t, "project.zip", ArchiveName(nil))
	assert.Equal(t, "app.zip", ArchiveName(parse(t, "app/\nother/")))
	assert.Equal(t, "readme.md.zip", ArchiveName(parse(t, "readme.md")))
}

func TestBuild_Zip(t *testing.T) {
	roots := parse(t, "app/\n├── empty/\n└── a.txt # hi")
	archive, err := Build(context.Background(), roots, nil, stamp)
	require.NoError(t, err)
	assert.Equal(t, "app.zip", archive.Name)

	zr, err := zip.NewReader(bytes.NewReader(archive.Data), int64(len(archive.Data)))
	require.NoError(t, err)
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"app/", "app/empty/", "app/a.txt"}, names)
	assert.True(t, zr.File[1].FileInfo().IsDir())
	assert.True(t, zr.File[2].Modified.Equal(stamp))

	rc, err := zr.File[2].Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	_ = rc.Close()
	assert.Equal(t, "# hi\n", string(data))
}

func TestBuild_Deterministic(t *testing.T) {
	roots := parse(t, tree.DefaultSample)
	a, err := Build(context.Background(), roots, nil, stamp)
	require.NoError(t, err)
	b, err := Build(context.Background(), tree.CloneAll(roots), nil, stamp)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestBuild_RefusesErrors(t *testing.T) {
	res := tree.Parse("app/\n├── ../x\n└── ok")
	_, err := Build(context.Background(), res.Tree, res.Errors, stamp)
	require.ErrorIs(t, err, ErrHasErrors)
	var ee *ExportError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, []string{"Line 2: Path traversal detected"}, ee.Errors)
}

func TestBuild_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, parse(t, "a/"), nil, stamp)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMaterialize_Memfs(t *testing.T) {
	roots := parse(t, "app/\n├── empty/\n└── src/\n    └── main.go # entry")
	fs := memfs.New()
	require.NoError(t, Materialize(fs, Collect(roots)))

	info, err := fs.Stat("app/empty")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	data, err := util.ReadFile(fs, "app/src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "# entry\n", string(data))
}

func TestMaterialize_Osfs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Materialize(osfs.New(dir), Collect(parse(t, "out/\n    f.txt"))))
	_, err := os.Stat(filepath.Join(dir, "out", "f.txt"))
	assert.NoError(t, err)
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archives")
	loc, err := FileSink{Dir: dir}.Put(context.Background(), "app.zip", []byte("PK"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app.zip"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(data))

	leftovers, err := filepath.Glob(filepath.Join(dir, ".treeforge-pack-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestBucketSink_Key(t *testing.T) {
	s, err := NewBucketSink(BucketOptions{Endpoint: "localhost:9000", Bucket: "b", Prefix: "exports/"})
	require.NoError(t, err)
	assert.Equal(t, "exports/app.zip", s.Key("../app.zip"))
}

func TestLayout(t *testing.T) {
	out, err := Layout(parse(t, "My App/\n├── src/\n│   └── two   spaces.go # c\n└── README.md\nsecond/"))
	require.NoError(t, err)
	assert.Contains(t, out, "My App/\n")
	assert.Contains(t, out, "two spaces.go")
	assert.NotContains(t, out, "# c")
	assert.Contains(t, out, "second/")
}

func TestLayout_MergesDuplicates(t *testing.T) {
	roots := parse(t, "a/\n    x.txt\n    d/\n        one\na/\n    d/\n        two\n    x.txt")
	out, err := Layout(roots)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "a/\n"))
	assert.Equal(t, 1, strings.Count(out, "x.txt"))
	assert.Equal(t, 1, strings.Count(out, "d/"))
	assert.Contains(t, out, "one")
	assert.Contains(t, out, "two")

	// Every archive entry appears in the preview.
	for _, e := range Collect(roots) {
		assert.Contains(t, out, path.Base(e.Path))
	}
}

type memSink struct{ got map[string][]byte }

func (m *memSink) Put(_ context.Context, name string, data []byte) (string, error) {
	m.got[name] = data
	return "mem://" + name, nil
}

func TestExporter_WithSession(t *testing.T) {
	s := session.New(session.Options{DefaultText: "demo/\n    a.txt"})
	sink := &memSink{got: map[string][]byte{}}
	x := &Exporter{Sink: sink, Now: func() time.Time { return stamp }}

	require.NoError(t, <-s.Package(context.Background(), x.Export))
	assert.Equal(t, "mem://demo.zip", x.Last().Location)
	assert.Equal(t, 2, x.Last().Entries)
	assert.NotEmpty(t, sink.got["demo.zip"])

	s.SetText("demo/\n    ../bad")
	err := <-s.Package(context.Background(), x.Export)
	assert.ErrorIs(t, err, ErrHasErrors)
}
