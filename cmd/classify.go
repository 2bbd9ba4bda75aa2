package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewClassifyCommand creates the classify command for inspecting and
// warming the classification cache from the terminal.
func NewClassifyCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	var all bool

	cmd := &cobra.Command{
		Use:   "classify [meeting-id]",
		Short: "Classify meetings into categories",
		Long: `Classify one meeting, or warm the classification cache for all.

With a meeting ID, classifies that meeting synchronously and prints the
result. With --all, classifies every cached meeting, which may take a
while on a cold cache.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("provide a meeting ID or --all")
			}

			app, err := deps.loadAndBuild(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer app.Close()

			if all {
				resp, err := app.Service.RefreshCache(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "classification started for %d meetings\n", resp.Meetings)
				return nil
			}

			details, err := app.Service.GetMeetingDetails(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), details)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "classify every meeting in the cache")
	return cmd
}
