// Package main provides the granola-mcp entry point.
// granola-mcp serves meeting intelligence over the MCP protocol and
// offers the same queries as terminal commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/granola-mcp/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "granola-mcp",
	Short: "Meeting intelligence server for Granola notes",
	Long: `granola-mcp answers natural-language questions about your meetings.

It reads the local Granola meeting cache, resolves date and keyword
queries, classifies meetings into categories, and optionally merges in
upcoming events from Google Calendar. Run "granola-mcp serve" to expose
everything as MCP tools, or use the subcommands directly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(cmd.NewServeCommand(nil))
	rootCmd.AddCommand(cmd.NewSearchCommand(nil))
	rootCmd.AddCommand(cmd.NewClassifyCommand(nil))
	rootCmd.AddCommand(cmd.NewPatternsCommand(nil))
	rootCmd.AddCommand(cmd.NewAuthCommand(nil))
	rootCmd.AddCommand(cmd.NewVersionCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
