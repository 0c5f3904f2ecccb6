package cmd

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentic-research/treeforge/internal/export"
	"github.com/agentic-research/treeforge/internal/session"
)

var exportFormat string

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "json or yaml")
	rootCmd.AddCommand(exportCmd, queryCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the session as a JSON or YAML document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		return withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
			data, err := export.Encode(export.FromSession(s), f)
			if err != nil {
				return false, err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return false, err
		})
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <jsonpath>",
	Short: "Evaluate a JSONPath expression against the exported document",
	Example: `  treeforge query '$.nodes[*].name'
  treeforge query '$..[?(@.kind == "file")].name'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(_ *env, s *session.Session) (bool, error) {
			results, err := export.Query(export.FromSession(s), args[0])
			if err != nil {
				return false, err
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				if str, ok := r.(string); ok {
					fmt.Fprintln(out, str)
					continue
				}
				fmt.Fprintln(out, oj.JSON(r, &oj.Options{Sort: true}))
			}
			return false, nil
		})
	},
}
