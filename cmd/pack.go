package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/treeforge/internal/config"
	"github.com/agentic-research/treeforge/internal/pack"
	"github.com/agentic-research/treeforge/internal/session"
)

var (
	packDryRun bool
	packOutDir string
	packExpand string
	packBucket bool
)

func init() {
	packCmd.Flags().BoolVar(&packDryRun, "dry-run", false, "Print the archive layout without writing anything")
	packCmd.Flags().StringVarP(&packOutDir, "out-dir", "o", "", "Directory for the zip (default archive.output_dir)")
	packCmd.Flags().StringVar(&packExpand, "expand", "", "Create the files and folders under this directory instead of zipping")
	packCmd.Flags().BoolVar(&packBucket, "bucket", false, "Upload to the archive.bucket from config")
	rootCmd.AddCommand(packCmd)
}

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Package the tree as a zip of its folders and files",
	Long: `Pack refuses while any line of the text has an error. Each file holds its
uploaded payload, else its content, else "# <comment>", else nothing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(e *env, s *session.Session) (bool, error) {
			out := cmd.OutOrStdout()
			snap := s.Snapshot()

			if len(snap.Errors) > 0 {
				writeDiagnostics(cmd.ErrOrStderr(), snap.Errors, nil)
				return false, &pack.ExportError{Errors: snap.Errors}
			}

			switch {
			case packDryRun:
				layout, err := pack.Layout(snap.Tree)
				if err != nil {
					return false, err
				}
				fmt.Fprint(out, layout)
				fmt.Fprintf(out, "→ %s\n", pack.ArchiveName(snap.Tree))
				return false, nil

			case packExpand != "":
				if err := os.MkdirAll(packExpand, 0o755); err != nil {
					return false, err
				}
				entries := pack.Collect(snap.Tree)
				if err := pack.Materialize(osfs.New(packExpand), entries); err != nil {
					return false, err
				}
				fmt.Fprintf(out, "created %d entries under %s\n", len(entries), packExpand)
				return false, nil
			}

			sink, err := newSink(e.cfg)
			if err != nil {
				return false, err
			}
			x := &pack.Exporter{Sink: sink, Logger: e.log}
			if err := <-s.Package(cmd.Context(), x.Export); err != nil {
				return false, err
			}
			res := x.Last()
			fmt.Fprintf(out, "wrote %s (%d entries, %d bytes) to %s\n", res.Name, res.Entries, res.Size, res.Location)
			return false, nil
		})
	},
}

func newSink(cfg *config.Config) (pack.Sink, error) {
	if packBucket {
		b := cfg.Archive.Bucket
		if b == nil {
			return nil, errors.New("no archive.bucket block in config")
		}
		return pack.NewBucketSink(pack.BucketOptions{
			Endpoint:  b.Endpoint,
			Bucket:    b.Bucket,
			AccessKey: b.AccessKey,
			SecretKey: b.SecretKey,
			UseSSL:    b.UseSSL,
			Prefix:    b.Prefix,
		})
	}
	dir := cfg.Archive.OutputDir
	if packOutDir != "" {
		dir = packOutDir
	}
	return pack.FileSink{Dir: dir}, nil
}
