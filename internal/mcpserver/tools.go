package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/agentic-research/treeforge/api"
	"github.com/agentic-research/treeforge/internal/export"
	"github.com/agentic-research/treeforge/internal/pack"
	"github.com/agentic-research/treeforge/internal/session"
	"github.com/agentic-research/treeforge/internal/tree"
)

func (s *Server) registerTools() {
	s.add(mcp.NewTool("get_tree",
		mcp.WithDescription("Return the current tree as text, json, yaml, or the packaged layout."),
		mcp.WithString("format", mcp.Description("text (default), json, yaml or layout"), mcp.Enum("text", "json", "yaml", "layout")),
	), s.getTree)

	s.add(mcp.NewTool("set_text",
		mcp.WithDescription("Replace the whole tree text. The previous text becomes an undo step."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Indented tree text using ├──, └── and │ connectors or plain indentation")),
	), s.setText)

	s.add(mcp.NewTool("add_node",
		mcp.WithDescription("Add a file or folder under a folder, or as a new root."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Name as it should appear in the tree")),
		mcp.WithString("parent_id", mcp.Description("Folder id or path; omit to add a root")),
		mcp.WithString("kind", mcp.Description("file (default) or folder"), mcp.Enum("file", "folder")),
		mcp.WithString("comment", mcp.Description("Optional trailing comment")),
	), s.addNode)

	s.add(mcp.NewTool("update_node",
		mcp.WithDescription("Rename, re-kind, comment or fill a node. Omitted fields are unchanged."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id or path such as src/main.go")),
		mcp.WithString("name", mcp.Description("New display name")),
		mcp.WithString("kind", mcp.Enum("file", "folder")),
		mcp.WithString("comment"),
		mcp.WithString("content", mcp.Description("Text payload for a file")),
		mcp.WithBoolean("expanded"),
	), s.updateNode)

	s.add(mcp.NewTool("delete_node",
		mcp.WithDescription("Delete a node and everything under it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id or path such as src/main.go")),
	), s.deleteNode)

	s.add(mcp.NewTool("undo", mcp.WithDescription("Undo the last text change.")), s.undo)
	s.add(mcp.NewTool("redo", mcp.WithDescription("Redo the last undone change.")), s.redo)

	s.add(mcp.NewTool("list_nodes",
		mcp.WithDescription("List node ids with their paths, one per line."),
	), s.listNodes)

	s.add(mcp.NewTool("query",
		mcp.WithDescription("Evaluate a JSONPath expression against the tree document."),
		mcp.WithString("expr", mcp.Required(), mcp.Description("e.g. $.nodes[*].name")),
	), s.query)

	if s.exporter != nil {
		s.add(mcp.NewTool("package",
			mcp.WithDescription("Package the tree as a zip archive. Refused while the text has errors."),
		), s.packageTree)
	}
}

func (s *Server) getTree(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := req.GetString("format", "text")
	var (
		out string
		err error
	)
	s.live.Read(func(sess *session.Session) {
		switch format {
		case "text":
			out = describe(sess)
		case "layout":
			out, err = pack.Layout(sess.Tree())
		default:
			var f export.Format
			if f, err = export.ParseFormat(format); err != nil {
				return
			}
			var b []byte
			b, err = export.Encode(export.FromSession(sess), f)
			out = string(b)
		}
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) setText(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.edit(func(sess *session.Session) error {
		sess.SetText(text)
		return nil
	})
}

func (s *Server) addNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, ok := tree.ParseKind(req.GetString("kind", "file"))
	if !ok {
		return mcp.NewToolResultError("kind must be file or folder"), nil
	}
	parentID := req.GetString("parent_id", "")
	spec := tree.Spec{DisplayName: name, Kind: kind, Comment: req.GetString("comment", "")}

	return s.edit(func(sess *session.Session) error {
		n, err := sess.AddNode(resolveID(sess, parentID), spec)
		if err != nil {
			return err
		}
		if n == nil {
			return fmt.Errorf("parent %q is not a folder in the tree", parentID)
		}
		return nil
	})
}

func (s *Server) updateNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()

	var patch tree.Patch
	if v, ok := args["name"].(string); ok {
		patch.DisplayName = &v
	}
	if v, ok := args["kind"].(string); ok {
		k, ok := tree.ParseKind(v)
		if !ok {
			return mcp.NewToolResultError("kind must be file or folder"), nil
		}
		patch.Kind = &k
	}
	if v, ok := args["comment"].(string); ok {
		patch.Comment = &v
	}
	if v, ok := args["content"].(string); ok {
		patch.Content = &v
	}
	if v, ok := args["expanded"].(bool); ok {
		patch.Expanded = &v
	}

	return s.edit(func(sess *session.Session) error {
		ok, err := sess.UpdateNode(resolveID(sess, id), patch)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", tree.ErrNotFound, id)
		}
		return nil
	})
}

func (s *Server) deleteNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.edit(func(sess *session.Session) error {
		if !sess.DeleteNode(resolveID(sess, id)) {
			return fmt.Errorf("%w: %s", tree.ErrNotFound, id)
		}
		return nil
	})
}

func (s *Server) undo(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.edit(func(sess *session.Session) error {
		if !sess.Undo() {
			return errors.New("nothing to undo")
		}
		return nil
	})
}

func (s *Server) redo(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.edit(func(sess *session.Session) error {
		if !sess.Redo() {
			return errors.New("nothing to redo")
		}
		return nil
	})
}

func (s *Server) listNodes(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	s.live.Read(func(sess *session.Session) {
		writeNodeList(&sb, sess.Tree())
	})
	return mcp.NewToolResultText(sb.String()), nil
}

func writeNodeList(sb *strings.Builder, nodes []*tree.Node) {
	tree.WalkPaths(nodes, func(n *tree.Node, p string) {
		fmt.Fprintf(sb, "%s\t%s\n", n.ID, p)
	})
}

func (s *Server) query(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expr, err := req.RequireString("expr")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var doc api.Document
	s.live.Read(func(sess *session.Session) { doc = export.FromSession(sess) })

	results, err := export.Query(doc, expr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "%v\n", r)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) packageTree(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var done <-chan error
	s.live.Read(func(sess *session.Session) { done = sess.Package(ctx, s.exporter.Export) })
	if err := <-done; err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := s.exporter.Last()
	return mcp.NewToolResultText(fmt.Sprintf("wrote %s (%d entries, %d bytes) to %s\n",
		res.Name, res.Entries, res.Size, res.Location)), nil
}

// edit applies fn under the write lock and replies with the resulting
// text. Domain failures become tool errors, not protocol errors.
func (s *Server) edit(fn func(*session.Session) error) (*mcp.CallToolResult, error) {
	var res *mcp.CallToolResult
	err := s.live.Update(func(sess *session.Session) error {
		if err := fn(sess); err != nil {
			return err
		}
		res = textResult(sess)
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return res, nil
}

// resolveID maps a path reference to its node id. Unknown references are
// passed through so the caller reports them.
func resolveID(sess *session.Session, ref string) string {
	if n := tree.Resolve(sess.Tree(), ref); n != nil {
		return n.ID
	}
	return ref
}
