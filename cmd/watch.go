package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/treeforge/internal/session"
	"github.com/agentic-research/treeforge/internal/watch"
)

var watchDebounce time.Duration

var errUnchanged = errors.New("text unchanged")

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before a change is applied")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Follow a text file and apply every saved version to the session",
	Long: `Watch loads the file once at start and again whenever it settles after a
write. Each distinct version becomes an undoable edit and the session is saved
after every change. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		out := cmd.OutOrStdout()
		w, err := watchFile(live, args[0], func(err error) {
			e.log.Warn("watch", "file", args[0], "error", err)
		})
		if err != nil {
			return err
		}
		live.OnChange(func(snap session.Snapshot) {
			fmt.Fprintf(out, "%s: %d errors, %d warnings\n", time.Now().Format(time.TimeOnly), len(snap.Errors), len(snap.Warnings))
			writeDiagnostics(out, snap.Errors, snap.Warnings)
		})
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watch %s: %w", args[0], err)
		}
		defer w.Stop()

		e.log.Info("watching", "file", w.Path())
		<-ctx.Done()
		return nil
	},
}

// watchFile builds a watcher that feeds every new version of path into live.
func watchFile(live *session.Live, path string, onError func(error)) (*watch.Watcher, error) {
	return watch.New(path, func(text string) {
		// errUnchanged only suppresses the change notification.
		_ = live.Update(func(s *session.Session) error {
			if s.Text() == text {
				return errUnchanged
			}
			s.SetText(text)
			return nil
		})
	}, watch.WithDebounce(watchDebounce), watch.WithInitial(true), watch.WithOnError(onError))
}

// persistOnChange saves the session after every successful edit on live.
func persistOnChange(ctx context.Context, e *env, live *session.Live) {
	live.OnChange(func(session.Snapshot) {
		var st session.State
		live.Read(func(s *session.Session) { st = s.State() })
		if err := e.store.Save(ctx, st); err != nil {
			e.log.Error("save session", "error", err)
		}
	})
}
