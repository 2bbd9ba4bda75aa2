package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewSearchCommand creates the search command for querying meetings
// from the terminal without an MCP client.
func NewSearchCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search meetings by date or keyword",
		Long: `Search meetings by natural-language query.

Examples:
  granola-mcp search "meetings today"
  granola-mcp search "last week"
  granola-mcp search "november 2025" --limit 20
  granola-mcp search "acme pricing"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := deps.loadAndBuild(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer app.Close()

			resp, err := app.Service.SearchMeetings(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), resp)
			}

			out := cmd.OutOrStdout()
			if resp.Fallback {
				fmt.Fprintln(out, "No direct matches; showing most recent meetings:")
			}
			for _, m := range resp.Meetings {
				line := m.Title
				if m.Start != "" {
					line = m.Start + "  " + line
				}
				if len(m.Tags) > 0 {
					line += "  [" + strings.Join(m.Tags, ", ") + "]"
				}
				fmt.Fprintf(out, "%s  (%s)\n", line, m.ID)
			}
			fmt.Fprintf(out, "%d meeting(s)\n", resp.Count)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default 10)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}
