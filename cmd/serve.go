package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/treeforge/internal/mcpserver"
	"github.com/agentic-research/treeforge/internal/nfsmount"
	"github.com/agentic-research/treeforge/internal/pack"
	"github.com/agentic-research/treeforge/internal/session"
)

// Version is reported to MCP clients.
var Version = "dev"

var (
	serveWatch string
	serveNFS   bool
)

func init() {
	serveCmd.Flags().StringVar(&serveWatch, "watch", "", "Also follow this text file, as the watch command does")
	serveCmd.Flags().BoolVar(&serveNFS, "nfs", false, "Also serve a read-only NFS preview on nfs.port (no mount)")
	serveCmd.Flags().BoolVar(&packBucket, "bucket", false, "Send the package tool's archives to archive.bucket")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session to agents as MCP tools over stdio",
	Long: `Serve exposes get_tree, set_text, add_node, update_node, delete_node,
undo, redo, list_nodes, query and package over MCP on stdin/stdout. Every
edit is saved to the session database. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = e.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := e.load(ctx)
		if err != nil {
			return err
		}
		live := session.NewLive(s)
		persistOnChange(ctx, e, live)

		sink, err := newSink(e.cfg)
		if err != nil {
			return err
		}
		srv := mcpserver.New(live, mcpserver.Options{
			Version:  Version,
			Exporter: &pack.Exporter{Sink: sink, Logger: e.log},
			Logger:   e.log,
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			defer stop() // stdin closed: shut the rest down
			return srv.Serve(gctx, cmd.InOrStdin(), cmd.OutOrStdout())
		})

		if serveWatch != "" {
			w, err := watchFile(live, serveWatch, func(err error) {
				e.log.Warn("watch", "file", serveWatch, "error", err)
			})
			if err != nil {
				return err
			}
			if err := w.Start(gctx); err != nil {
				return fmt.Errorf("watch %s: %w", serveWatch, err)
			}
			defer w.Stop()
			g.Go(func() error {
				<-w.Done()
				return nil
			})
		}

		if serveNFS {
			fs := nfsmount.NewSnapshotFS(live.Snapshot())
			live.OnChange(fs.Update)
			nfsSrv, err := nfsmount.NewServer(fs, e.cfg.NFS.Port)
			if err != nil {
				return err
			}
			e.log.Info("nfs preview listening", "port", nfsSrv.Port())
			g.Go(func() error {
				select {
				case <-gctx.Done():
					_ = nfsSrv.Close() // unblocks Serve
					<-nfsSrv.Done()
					return nil
				case err := <-nfsSrv.Done():
					return fmt.Errorf("nfs server: %w", err)
				}
			})
		}

		e.log.Info("mcp server ready", "tools", len(srv.Tools()))
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
