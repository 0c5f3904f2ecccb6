package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/treeforge/internal/config"
	"github.com/agentic-research/treeforge/internal/logging"
	"github.com/agentic-research/treeforge/internal/session"
	"github.com/agentic-research/treeforge/internal/store"
)

var (
	configPath string
	dbPath     string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to HCL config (default $TREEFORGE_CONFIG, then ~/.agentic-research/treeforge/treeforge.hcl)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Session database (overrides session_db from config)")
}

var rootCmd = &cobra.Command{
	Use:   "treeforge",
	Short: "Sketch project layouts as ASCII trees and package them as archives",
	Long: `treeforge keeps one tree document per session database. The text uses
├──, └── and │ connectors or plain indentation; a trailing slash marks a
folder and " # " starts a comment. Edits go through undo history and the
result can be packaged as a zip of empty files and folders.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env is what every session-backed command needs.
type env struct {
	cfg   *config.Config
	log   *slog.Logger
	store *store.Store
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	path := cfg.SessionDB
	if dbPath != "" {
		path = dbPath
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", path, err)
	}
	log.Debug("session database opened", "path", path)
	return &env{cfg: cfg, log: log, store: st}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

func (e *env) options() session.Options {
	return session.Options{
		HistoryLimit: e.cfg.HistoryLimit,
		DefaultText:  e.cfg.DefaultText,
		Logger:       e.log,
	}
}

// load restores the saved session, or starts a fresh one on first use.
func (e *env) load(ctx context.Context) (*session.Session, error) {
	st, ok, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return session.New(e.options()), nil
	}
	return session.Restore(e.options(), st), nil
}

func (e *env) save(ctx context.Context, s *session.Session) error {
	if err := e.store.Save(ctx, s.State()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// withSession loads the session, runs fn and saves the session when fn
// reports a change.
func withSession(cmd *cobra.Command, fn func(e *env, s *session.Session) (bool, error)) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := e.load(ctx)
	if err != nil {
		return err
	}
	changed, err := fn(e, s)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return e.save(ctx, s)
}

// readInput returns the contents of name, or stdin when name is "" or "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}
