package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/treeforge/api"
	"github.com/agentic-research/treeforge/internal/session"
	"github.com/agentic-research/treeforge/internal/tree"
)

var (
	addParent  string
	addFolder  bool
	addComment string
	addContent string

	updName     string
	updKind     string
	updComment  string
	updContent  string
	updExpanded bool

	selectFile  bool
	selectClear bool
)

func init() {
	addCmd.Flags().StringVarP(&addParent, "parent", "p", "", "Parent folder id or path (default: add a root)")
	addCmd.Flags().BoolVar(&addFolder, "folder", false, "Create a folder instead of a file")
	addCmd.Flags().StringVar(&addComment, "comment", "", "Trailing comment")
	addCmd.Flags().StringVar(&addContent, "content", "", "Text payload for a file")

	updateCmd.Flags().StringVar(&updName, "name", "", "New name")
	updateCmd.Flags().StringVar(&updKind, "kind", "", "file or folder")
	updateCmd.Flags().StringVar(&updComment, "comment", "", "Comment (empty removes it)")
	updateCmd.Flags().StringVar(&updContent, "content", "", "Text payload for a file")
	updateCmd.Flags().BoolVar(&updExpanded, "expanded", true, "Expanded state shown by tree views")

	selectCmd.Flags().BoolVar(&selectFile, "file", false, "Open the node as the current file")
	selectCmd.Flags().BoolVar(&selectClear, "clear", false, "Clear the selection")

	rootCmd.AddCommand(addCmd, updateCmd, rmCmd, selectCmd, contentCmd, uploadCmd, viewCmd)
}

// resolve looks a node up by id or path.
func resolve(s *session.Session, ref string) (*tree.Node, error) {
	n := tree.Resolve(s.Tree(), ref)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", tree.ErrNotFound, ref)
	}
	return n, nil
}

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a file or folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(e *env, s *session.Session) (bool, error) {
			parentID := ""
			if addParent != "" {
				p, err := resolve(s, addParent)
				if err != nil {
					return false, err
				}
				if !p.IsFolder() {
					return false, fmt.Errorf("%w: %s is a file", tree.ErrInvalidNode, addParent)
				}
				parentID = p.ID
			}
			kind := tree.File
			if addFolder {
				kind = tree.Folder
			}
			n, err := s.AddNode(parentID, tree.Spec{
				DisplayName: args[0],
				Kind:        kind,
				Comment:     addComment,
				Content:     addContent,
			})
			if err != nil {
				return false, err
			}
			e.log.Debug("node added", "id", n.ID, "parent", parentID)
			fmt.Fprintln(cmd.OutOrStdout(), n.ID)
			return true, nil
		})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <node>",
	Short: "Rename, re-kind, comment or fill a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch tree.Patch
		flags := cmd.Flags()
		if flags.Changed("name") {
			patch.DisplayName = &updName
		}
		if flags.Changed("kind") {
			k, ok := tree.ParseKind(updKind)
			if !ok {
				return fmt.Errorf("kind must be file or folder, got %q", updKind)
			}
			patch.Kind = &k
		}
		if flags.Changed("comment") {
			patch.Comment = &updComment
		}
		if flags.Changed("content") {
			patch.Content = &updContent
		}
		if flags.Changed("expanded") {
			patch.Expanded = &updExpanded
		}

		return withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
			n, err := resolve(s, args[0])
			if err != nil {
				return false, err
			}
			if _, err := s.UpdateNode(n.ID, patch); err != nil {
				return false, err
			}
			fmt.Fprint(cmd.OutOrStdout(), s.Text())
			return true, nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <node>",
	Aliases: []string{"delete"},
	Short:   "Delete a node and everything under it",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
			n, err := resolve(s, args[0])
			if err != nil {
				return false, err
			}
			s.DeleteNode(n.ID)
			fmt.Fprint(cmd.OutOrStdout(), s.Text())
			return true, nil
		})
	},
}

var selectCmd = &cobra.Command{
	Use:   "select [node]",
	Short: "Select a node, or open a file with --file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if selectClear == (len(args) == 1) {
			return fmt.Errorf("give a node or --clear")
		}
		return withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
			if selectClear {
				if selectFile {
					s.SelectFile("")
				} else {
					s.SelectNode("")
					s.SelectFile("")
				}
				return true, nil
			}
			n, err := resolve(s, args[0])
			if err != nil {
				return false, err
			}
			if selectFile {
				if !s.SelectFile(n.ID) {
					return false, fmt.Errorf("%s is not a file", args[0])
				}
			} else {
				s.SelectNode(n.ID)
			}
			fmt.Fprintln(cmd.OutOrStdout(), describeNode(s.Tree(), n.ID))
			return true, nil
		})
	},
}

var contentCmd = &cobra.Command{
	Use:   "content <file-node> [file|-]",
	Short: "Set the text payload of a file node",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := ""
		if len(args) == 2 {
			src = args[1]
		}
		data, err := readInput(cmd, src)
		if err != nil {
			return err
		}
		return withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
			n, err := resolve(s, args[0])
			if err != nil {
				return false, err
			}
			if !s.SetContent(n.ID, string(data)) {
				return false, fmt.Errorf("%s is not a file", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d bytes of content on %s\n", len(data), describeNode(s.Tree(), n.ID))
			return true, nil
		})
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file-node> <path>",
	Short: "Attach a binary payload to a file node",
	Long:  "The payload is packaged in place of the node's content and comment.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args[1])
		if err != nil {
			return err
		}
		return withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
			n, err := resolve(s, args[0])
			if err != nil {
				return false, err
			}
			if !s.UploadPayload(n.ID, data) {
				return false, fmt.Errorf("%s is not a file", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d bytes to %s\n", len(data), describeNode(s.Tree(), n.ID))
			return true, nil
		})
	},
}

var viewCmd = &cobra.Command{
	Use:   "view [mode]",
	Short: "Show or change the view mode",
	Long:  fmt.Sprintf("Modes: %v. The mode is stored with the session for front-ends to read.", api.ViewModes),
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), s.View())
				return false, nil
			}
			v, err := api.ParseViewMode(args[0])
			if err != nil {
				return false, err
			}
			if err := s.SetView(v); err != nil {
				return false, err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return true, nil
		})
	},
}
