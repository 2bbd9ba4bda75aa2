package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewPatternsCommand creates the patterns command.
func NewPatternsCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	var (
		query      string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "patterns <topics|participants|frequency>",
		Short: "Analyze recurring patterns across meetings",
		Long: `Analyze recurring patterns across the meeting history.

Examples:
  granola-mcp patterns topics
  granola-mcp patterns participants --query "november 2025"
  granola-mcp patterns frequency`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := deps.loadAndBuild(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Service.AnalyzePatterns(cmd.Context(), args[0], query)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s across %d meeting(s)\n", report.Type, report.Meetings)
			for _, entry := range report.Entries {
				fmt.Fprintf(out, "%6d  %s\n", entry.Count, entry.Key)
			}
			if len(report.Pairs) > 0 {
				fmt.Fprintln(out, "\nfrequent pairs:")
				for _, pair := range report.Pairs {
					fmt.Fprintf(out, "%6d  %s\n", pair.Count, strings.Join([]string{pair.A, pair.B}, " + "))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "narrow the meetings analyzed, e.g. \"last week\"")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}
