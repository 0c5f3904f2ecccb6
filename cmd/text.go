package cmd

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/agentic-research/treeforge/internal/session"
	"github.com/agentic-research/treeforge/internal/tree"
)

var (
	renderCopy bool
	showIDs    bool
)

func init() {
	renderCmd.Flags().BoolVar(&renderCopy, "copy", false, "Also copy the rendered tree to the system clipboard")
	showCmd.Flags().BoolVar(&showIDs, "ids", false, "List node ids and paths instead of the text")

	rootCmd.AddCommand(parseCmd, renderCmd, showCmd, setCmd, undoCmd, redoCmd, resetCmd, templateCmd)
}

var parseCmd = &cobra.Command{
	Use:   "parse [file|-]",
	Short: "Check tree text and report line errors and warnings",
	Long: `Parse checks the given file, or stdin for "-", without touching the
session. With no argument it checks the session's current text. The command
fails when any line has an error.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var text string
		if len(args) == 1 {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			text = string(data)
		} else {
			err := withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
				text = s.Text()
				return false, nil
			})
			if err != nil {
				return err
			}
		}

		res := tree.Parse(text)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d nodes\n", tree.Count(res.Tree))
		writeDiagnostics(out, res.Errors, res.Warnings)
		if res.HasErrors() {
			return fmt.Errorf("%d line error(s)", len(res.Errors))
		}
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the session tree in canonical form",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(e *env, s *session.Session) (bool, error) {
			text := tree.Render(s.Tree())
			fmt.Fprint(cmd.OutOrStdout(), text)
			if renderCopy {
				if err := clipboard.WriteAll(text); err != nil {
					return false, fmt.Errorf("copy to clipboard: %w", err)
				}
				e.log.Info("copied to clipboard", "bytes", len(text))
			}
			return false, nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the session text with its diagnostics and state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
			out := cmd.OutOrStdout()
			if showIDs {
				tree.WalkPaths(s.Tree(), func(n *tree.Node, p string) {
					fmt.Fprintf(out, "%s\t%s\n", n.ID, p)
				})
				return false, nil
			}

			text := s.Text()
			fmt.Fprint(out, text)
			if text != "" && !strings.HasSuffix(text, "\n") {
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, "---")
			fmt.Fprintf(out, "%d characters, %d lines, %d nodes\n",
				utf8.RuneCountInString(text), len(strings.Split(text, "\n")), tree.Count(s.Tree()))
			writeDiagnostics(out, s.Errors(), s.Warnings())

			h := s.History()
			fmt.Fprintf(out, "view: %s  undo: %d  redo: %d\n", s.View(), h.UndoDepth(), h.RedoDepth())
			if id := s.SelectedNode(); id != "" {
				fmt.Fprintf(out, "selected: %s\n", describeNode(s.Tree(), id))
			}
			if id := s.SelectedFile(); id != "" {
				fmt.Fprintf(out, "open file: %s\n", describeNode(s.Tree(), id))
			}
			return false, nil
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set [file|-]",
	Short: "Replace the session text from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		data, err := readInput(cmd, name)
		if err != nil {
			return err
		}
		return withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
			s.SetText(string(data))
			summarize(cmd.OutOrStdout(), s)
			return true, nil
		})
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Restore the text before the last change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
			if !s.Undo() {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to undo")
				return false, nil
			}
			fmt.Fprint(cmd.OutOrStdout(), s.Text())
			return true, nil
		})
	},
}

var redoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Re-apply the last undone change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
			if !s.Redo() {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to redo")
				return false, nil
			}
			fmt.Fprint(cmd.OutOrStdout(), s.Text())
			return true, nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Go back to the default text and drop history, selection and view",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
			s.Reset()
			fmt.Fprint(cmd.OutOrStdout(), s.Text())
			return true, nil
		})
	},
}

var templateCmd = &cobra.Command{
	Use:   "template [name]",
	Short: "Load a starter layout as an undoable edit, or list the templates",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			for _, name := range tree.TemplateNames() {
				fmt.Fprintln(out, name)
			}
			return nil
		}
		text, ok := tree.Template(args[0])
		if !ok {
			return fmt.Errorf("unknown template %q (have %s)", args[0], strings.Join(tree.TemplateNames(), ", "))
		}
		return withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
			s.SetText(text)
			fmt.Fprint(out, s.Text())
			return true, nil
		})
	},
}

func writeDiagnostics(w io.Writer, errs, warnings []string) {
	for _, e := range errs {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	for _, wn := range warnings {
		fmt.Fprintf(w, "warning: %s\n", wn)
	}
}

// summarize reports the outcome of a text edit.
func summarize(w io.Writer, s *session.Session) {
	fmt.Fprintf(w, "%d nodes, %d errors, %d warnings\n", tree.Count(s.Tree()), len(s.Errors()), len(s.Warnings()))
	writeDiagnostics(w, s.Errors(), s.Warnings())
}

func describeNode(roots []*tree.Node, id string) string {
	var desc string
	tree.WalkPaths(roots, func(n *tree.Node, p string) {
		if n.ID == id {
			desc = p
		}
	})
	if desc == "" {
		return id
	}
	return desc + " (" + id + ")"
}
