package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkPaths(t *testing.T) {
	res := Parse(fixture(`
		project/
		├── src/
		│   └── main.go
		└── go.mod
	`))
	require.Empty(t, res.Errors)

	var paths []string
	WalkPaths(res.Tree, func(_ *Node, p string) { paths = append(paths, p) })
	assert.Equal(t, []string{"project/", "project/src/", "project/src/main.go", "project/go.mod"}, paths)
}

func TestResolve(t *testing.T) {
	res := Parse(fixture(`
		app/
		├── build
		├── build/
		│   └── out.bin
		└── My File.txt
	`))
	require.Empty(t, res.Errors)
	app := res.Tree[0]

	assert.Same(t, app, Resolve(res.Tree, app.ID))
	assert.Same(t, app, Resolve(res.Tree, "app"))
	assert.Same(t, app, Resolve(res.Tree, "/app/"))
	assert.Same(t, app.Children[0], Resolve(res.Tree, "app/build"), "file wins without a slash")
	assert.Same(t, app.Children[1], Resolve(res.Tree, "app/build/"))
	assert.Same(t, app.Children[1].Children[0], Resolve(res.Tree, "app/build/out.bin"))
	assert.Same(t, app.Children[2], Resolve(res.Tree, "app/My File.txt"))

	assert.Nil(t, Resolve(res.Tree, "app/missing"))
	assert.Nil(t, Resolve(res.Tree, ""))
}
