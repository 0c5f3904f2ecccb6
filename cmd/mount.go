package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/treeforge/internal/nfsmount"
	"github.com/agentic-research/treeforge/internal/session"
	"github.com/agentic-research/treeforge/internal/tree"
)

var (
	mountWritable bool
	mountPort     int
	mountNoMount  bool
)

func init() {
	mountCmd.Flags().BoolVarP(&mountWritable, "writable", "w", false, "Let writes to files replace their content or upload")
	mountCmd.Flags().IntVar(&mountPort, "port", -1, "NFS port (default nfs.port from config, 0 picks a free one)")
	mountCmd.Flags().BoolVar(&mountNoMount, "no-mount", false, "Only start the NFS server and print its port")
	rootCmd.AddCommand(mountCmd, mountsCmd)
}

var mountCmd = &cobra.Command{
	Use:   "mount [mountpoint]",
	Short: "Preview the packaged layout as a mounted filesystem",
	Long: `Mount serves the session as it would be packaged: folders and files with
their payloads, plus _tree.txt and _diagnostics.txt at the root. The view
follows edits made through other commands in this process. Mounting calls
the system mount command and needs sudo.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !mountNoMount && len(args) == 0 {
			return fmt.Errorf("mountpoint required unless --no-mount is set")
		}

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

		fs := nfsmount.NewSnapshotFS(live.Snapshot())
		live.OnChange(fs.Update)
		if mountWritable {
			fs.SetWriteBack(writeBack(live))
		}

		port := e.cfg.NFS.Port
		if mountPort >= 0 {
			port = mountPort
		}
		srv, err := nfsmount.NewServer(fs, port)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()

		out := cmd.OutOrStdout()
		if mountNoMount {
			fmt.Fprintf(out, "NFS server on 127.0.0.1:%d\n", srv.Port())
			return waitServer(ctx, srv)
		}

		mountPoint, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolve mountpoint: %w", err)
		}
		if err := os.MkdirAll(mountPoint, 0o755); err != nil {
			return err
		}
		fmt.Fprintf(out, "Mounting at %s (NFS port %d)...\n", mountPoint, srv.Port())
		if err := nfsmount.Mount(srv.Port(), mountPoint, mountWritable); err != nil {
			return err
		}

		meta := &MountMetadata{
			PID:        os.Getpid(),
			MountPoint: mountPoint,
			Port:       srv.Port(),
			Session:    e.store.Path(),
			Timestamp:  time.Now(),
			Writable:   mountWritable,
		}
		if err := registerMount(meta); err != nil {
			e.log.Warn("record mount", "error", err)
		}
		defer unregisterMount(mountPoint)

		err = waitServer(ctx, srv)
		if uerr := nfsmount.Unmount(mountPoint); uerr != nil {
			e.log.Error("unmount", "mountpoint", mountPoint, "error", uerr)
		}
		return err
	},
}

// waitServer blocks until ctx ends or the server stops on its own.
func waitServer(ctx context.Context, srv *nfsmount.Server) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-srv.Done():
		return fmt.Errorf("nfs server: %w", err)
	}
}

// writeBack routes NFS file writes into the session. A node that already
// carries an upload takes the bytes as its new upload; otherwise they
// become its text content.
func writeBack(live *session.Live) nfsmount.WriteBackFunc {
	return func(nodeID string, data []byte) error {
		return live.Update(func(s *session.Session) error {
			n := tree.Find(s.Tree(), nodeID)
			if n == nil || n.IsFolder() {
				return fmt.Errorf("%w: %s", tree.ErrNotFound, nodeID)
			}
			if n.Upload != nil {
				s.UploadPayload(nodeID, data)
				return nil
			}
			s.SetContent(nodeID, string(data))
			return nil
		})
	}
}
