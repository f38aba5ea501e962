package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	overridesCmd.AddCommand(overridesListCmd)
	overridesCmd.AddCommand(overridesSearchCmd)
	rootCmd.AddCommand(overridesCmd)
}

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Inspects the institution override table.",
}

var overridesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists every override entry.",
	Run: func(cmd *cobra.Command, args []string) {
		t := newTable()
		t.AppendHeader(table.Row{"Code", "Region", "Base url", "App name"})
		for _, entry := range newPortal().Overrides().Entries() {
			t.AppendRow(table.Row{entry.Code, entry.Region, entry.BaseUrl, entry.AppName})
		}
		t.Render()
	},
}

var overridesSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Finds override entries that look like the query.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		t := newTable()
		t.AppendHeader(table.Row{"Key", "Similarity"})
		for _, suggestion := range newPortal().Overrides().Search(args[0]) {
			t.AppendRow(table.Row{suggestion.Key, fmt.Sprintf("%.3f", suggestion.Score)})
		}
		t.Render()
	},
}
