package commands

import (
	"os"
	"path/filepath"
	"strings"

	"portalproxy-backend/internal/gradeparse"

	"github.com/spf13/cobra"
)

var parseAsJSON bool

func init() {
	parseCmd.Flags().BoolVar(&parseAsJSON, "json", false, "Treat the file as a json grade response regardless of its extension.")
	rootCmd.AddCommand(parseCmd)
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Runs the grade parser over a saved json or html grade page.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		format := gradeparse.FormatHTML
		if parseAsJSON || strings.EqualFold(filepath.Ext(args[0]), ".json") {
			format = gradeparse.FormatJSON
		}
		printGrades(gradeparse.Parse(gradeparse.Raw{
			Format: format,
			Body:   body,
			Path:   args[0],
		}))
		return nil
	},
}
