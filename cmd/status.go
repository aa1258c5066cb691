package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwbgen/mwbgen/internal/report"
)

var statusCmd = &cobra.Command{
	Use:   "status [report.json]",
	Short: "Show the report of the last generate run",
	Long: `Print the JSON report written by generate as text. Without an argument the
report path from the config file is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}

		path := cfg.Output.Report
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return errors.New("no report path given and output.report is not configured")
		}

		rep, err := report.ReadJSON(path)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.FormatText(rep))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
