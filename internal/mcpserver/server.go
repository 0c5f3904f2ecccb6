// Package mcpserver exposes a live session as MCP tools so agents can read
// and edit the tree over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/treeforge/internal/logging"
	"github.com/agentic-research/treeforge/internal/pack"
	"github.com/agentic-research/treeforge/internal/session"
)

// Options configure the tool set.
type Options struct {
	Name    string
	Version string
	// Exporter enables the package tool. Nil leaves it out.
	Exporter *pack.Exporter
	Logger   *slog.Logger
}

// Server wraps an MCP server bound to one live session.
type Server struct {
	mcp      *server.MCPServer
	live     *session.Live
	exporter *pack.Exporter
	log      *slog.Logger
	handlers map[string]server.ToolHandlerFunc
}

// New registers every tool against live.
func New(live *session.Live, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "treeforge"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		mcp:      server.NewMCPServer(opts.Name, opts.Version, server.WithToolCapabilities(false)),
		live:     live,
		exporter: opts.Exporter,
		log:      logging.OrDiscard(opts.Logger),
		handlers: make(map[string]server.ToolHandlerFunc),
	}
	s.registerTools()
	return s
}

// MCP returns the underlying server, for transports.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Serve speaks JSON-RPC over in and out until ctx is cancelled or in is
// closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// Tools lists the registered tool names in sorted order.
func (s *Server) Tools() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes a tool directly, bypassing the transport.
func (s *Server) Call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	h, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return h(ctx, req)
}

func (s *Server) add(tool mcp.Tool, h server.ToolHandlerFunc) {
	name := tool.Name
	wrapped := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := h(ctx, req)
		if err != nil {
			s.log.Warn("tool failed", "tool", name, "error", err)
		} else if res != nil && res.IsError {
			s.log.Debug("tool rejected", "tool", name)
		}
		return res, err
	}
	s.handlers[name] = wrapped
	s.mcp.AddTool(tool, wrapped)
}

// textResult is the reply every editing tool gives so the agent sees the
// effect.
func textResult(sess *session.Session) *mcp.CallToolResult {
	return mcp.NewToolResultText(describe(sess))
}

// describe renders the session text followed by its diagnostics.
func describe(sess *session.Session) string {
	var sb strings.Builder
	sb.WriteString(sess.Text())
	if !strings.HasSuffix(sess.Text(), "\n") {
		sb.WriteByte('\n')
	}
	for _, e := range sess.Errors() {
		sb.WriteString("error: " + e + "\n")
	}
	for _, w := range sess.Warnings() {
		sb.WriteString("warning: " + w + "\n")
	}
	return sb.String()
}
