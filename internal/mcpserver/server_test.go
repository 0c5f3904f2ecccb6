package mcpserver

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/treeforge/internal/pack"
	"github.com/agentic-research/treeforge/internal/session"
)

func newTestServer(t *testing.T, text string, x *pack.Exporter) (*Server, *session.Live) {
	t.Helper()
	live := session.NewLive(session.New(session.Options{DefaultText: text}))
	return New(live, Options{Exporter: x}), live
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func call(t *testing.T, s *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := s.Call(context.Background(), name, args)
	require.NoError(t, err)
	return res
}

func TestTools_Registered(t *testing.T) {
	s, _ := newTestServer(t, "a/", nil)
	assert.Equal(t, []string{"add_node", "delete_node", "get_tree", "list_nodes", "query", "redo", "set_text", "undo", "update_node"}, s.Tools())

	s, _ = newTestServer(t, "a/", &pack.Exporter{Sink: pack.FileSink{Dir: t.TempDir()}})
	assert.Contains(t, s.Tools(), "package")

	_, err := s.Call(context.Background(), "nope", nil)
	assert.Error(t, err)
}

func TestGetTree(t *testing.T) {
	s, _ := newTestServer(t, "app/\n├── ../bad\n└── ok.txt", nil)

	text := resultText(t, call(t, s, "get_tree", nil))
	assert.Contains(t, text, "└── ok.txt")
	assert.Contains(t, text, "error: Line 2: Path traversal detected")

	js := resultText(t, call(t, s, "get_tree", map[string]any{"format": "json"}))
	assert.Contains(t, js, `"archive"`)

	layout := resultText(t, call(t, s, "get_tree", map[string]any{"format": "layout"}))
	assert.Contains(t, layout, "ok.txt")

	res := call(t, s, "get_tree", map[string]any{"format": "xml"})
	assert.True(t, res.IsError)
}

func TestEditingTools(t *testing.T) {
	s, live := newTestServer(t, "app/\n", nil)
	var appID string
	live.Read(func(sess *session.Session) { appID = sess.Tree()[0].ID })

	res := call(t, s, "add_node", map[string]any{"parent_id": appID, "name": "src", "kind": "folder"})
	assert.False(t, res.IsError)
	assert.Equal(t, "app/\n└── src/\n", resultText(t, res))

	res = call(t, s, "add_node", map[string]any{"name": "bad # name"})
	assert.True(t, res.IsError)

	res = call(t, s, "add_node", map[string]any{"parent_id": "missing", "name": "x"})
	assert.True(t, res.IsError)

	var srcID string
	live.Read(func(sess *session.Session) { srcID = sess.Tree()[0].Children[0].ID })
	res = call(t, s, "update_node", map[string]any{"id": srcID, "name": "lib", "comment": "shared"})
	assert.Equal(t, "app/\n└── lib/ # shared\n", resultText(t, res))

	res = call(t, s, "delete_node", map[string]any{"id": srcID})
	assert.Equal(t, "app/\n", resultText(t, res))

	res = call(t, s, "delete_node", map[string]any{"id": srcID})
	assert.True(t, res.IsError)

	res = call(t, s, "undo", nil)
	assert.Equal(t, "app/\n└── lib/ # shared\n", resultText(t, res))
	res = call(t, s, "redo", nil)
	assert.Equal(t, "app/\n", resultText(t, res))
	res = call(t, s, "redo", nil)
	assert.True(t, res.IsError)
}

func TestSetTextAndQuery(t *testing.T) {
	s, _ := newTestServer(t, "x", nil)
	res := call(t, s, "set_text", map[string]any{"text": "site/\n    index.html\n    style.css"})
	assert.False(t, res.IsError)

	res = call(t, s, "query", map[string]any{"expr": "$.nodes[0].children[*].name"})
	assert.Equal(t, "index.html\nstyle.css\n", resultText(t, res))

	res = call(t, s, "query", map[string]any{"expr": "$.[[["})
	assert.True(t, res.IsError)

	res = call(t, s, "set_text", nil)
	assert.True(t, res.IsError)

	list := resultText(t, call(t, s, "list_nodes", nil))
	assert.Contains(t, list, "\tsite/\n")
	assert.Contains(t, list, "\tsite/style.css\n")
}

type captureSink struct{ names []string }

func (c *captureSink) Put(_ context.Context, name string, _ []byte) (string, error) {
	c.names = append(c.names, name)
	return "mem://" + name, nil
}

func TestPackageTool(t *testing.T) {
	sink := &captureSink{}
	x := &pack.Exporter{Sink: sink, Now: func() time.Time { return time.Unix(0, 0) }}
	s, _ := newTestServer(t, "demo/\n    a.txt", x)

	res := call(t, s, "package", nil)
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), "wrote demo.zip (2 entries")
	assert.Equal(t, []string{"demo.zip"}, sink.names)

	call(t, s, "set_text", map[string]any{"text": "demo/\n    ../x"})
	res = call(t, s, "package", nil)
	assert.True(t, res.IsError)
}

func TestEditingTools_ByPath(t *testing.T) {
	s, _ := newTestServer(t, "app/\n    src/\n", nil)

	res := call(t, s, "add_node", map[string]any{"parent_id": "app/src", "name": "main.go"})
	require.False(t, res.IsError, resultText(t, res))
	assert.Equal(t, "app/\n└── src/\n    └── main.go\n", resultText(t, res))

	res = call(t, s, "update_node", map[string]any{"id": "app/src/main.go", "comment": "entry"})
	assert.Equal(t, "app/\n└── src/\n    └── main.go # entry\n", resultText(t, res))

	res = call(t, s, "delete_node", map[string]any{"id": "app/src/"})
	assert.Equal(t, "app/\n", resultText(t, res))
}
