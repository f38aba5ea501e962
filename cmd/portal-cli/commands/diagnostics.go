package commands

import (
	"errors"
	"time"

	"portalproxy-backend/internal/diagnostics"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	diagnosticsInstitution string
	diagnosticsDegraded    bool
	diagnosticsLimit       int
)

func init() {
	diagnosticsCmd.Flags().StringVar(&diagnosticsInstitution, "institution", "", "Only show attempts for this institution code.")
	diagnosticsCmd.Flags().BoolVar(&diagnosticsDegraded, "degraded", false, "Only show attempts that parsed no grades.")
	diagnosticsCmd.Flags().IntVarP(&diagnosticsLimit, "limit", "n", 50, "The maximum number of attempts to show.")
	rootCmd.AddCommand(diagnosticsCmd)
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Lists recent grade parse attempts from the diagnostics database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := readConfig()
		if !cfg.Diagnostics.Database.Enabled() {
			return errors.New("no diagnostics database configured in config.json5")
		}
		db, err := cfg.Diagnostics.Database.OpenDB(diagnostics.Schema)
		if err != nil {
			return err
		}
		defer db.Close()

		attempts, err := diagnostics.NewStore(db).Recent(cmd.Context(), diagnostics.Filter{
			Institution:  diagnosticsInstitution,
			DegradedOnly: diagnosticsDegraded,
			Limit:        diagnosticsLimit,
		})
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Time", "Institution", "Base url", "Path", "Strategy", "Records", "Degraded"})
		for _, a := range attempts {
			institution := a.Institution
			if a.Region != "" {
				institution += "/" + a.Region
			}
			t.AppendRow(table.Row{
				a.CreatedAt.Local().Format(time.DateTime),
				institution,
				a.BaseUrl,
				a.Path,
				a.Strategy,
				a.RecordCount,
				a.Degraded,
			})
		}
		t.Render()
		return nil
	},
}
