package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwbgen/mwbgen/internal/engine"
	"github.com/mwbgen/mwbgen/internal/report"
)

var (
	generatePivots       []string
	generateDryRun       bool
	generateAllowIgnored bool
	generateReport       string
	generateReportFormat string
)

var generateCmd = &cobra.Command{
	Use:   "generate <model.mwb>",
	Short: "Generate Laravel migrations and models",
	Long: `Generate one migration per table, ordered so that referenced tables are
created first, and one Eloquent model per table that needs one. Nothing is
written when the model cannot be fully resolved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		e := engine.New(cfg, logger)
		e.Pivots = generatePivots
		e.DryRun = generateDryRun
		e.AllowIgnoredRefs = generateAllowIgnored

		out := cmd.OutOrStdout()
		rep, err := e.Run(cmd.Context(), args[0], func(done, total int, table string) {
			fmt.Fprintf(out, "\r%s", report.ProgressLine(done, total, table))
			if done == total {
				fmt.Fprintln(out)
			}
		})
		if err != nil {
			return fmt.Errorf("generating from %s: %w", args[0], err)
		}

		fmt.Fprint(out, report.Styled(rep))

		reportPath := generateReport
		if reportPath == "" {
			reportPath = cfg.Output.Report
		}
		if reportPath != "" {
			write := report.WriteJSON
			switch generateReportFormat {
			case "json":
			case "text":
				write = report.WriteText
			default:
				return fmt.Errorf("unknown report format %q (want json or text)", generateReportFormat)
			}
			if err := write(rep, reportPath); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			fmt.Fprintf(out, "Report written to %s\n", reportPath)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringSliceVar(&generatePivots, "pivots", nil, "tables to treat as pivot tables (comma separated)")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "resolve and render without writing files")
	generateCmd.Flags().BoolVar(&generateAllowIgnored, "allow-ignored-refs", false, "drop foreign keys to ignored tables instead of failing")
	generateCmd.Flags().StringVar(&generateReport, "report", "", "write a run report to this path")
	generateCmd.Flags().StringVar(&generateReportFormat, "report-format", "json", "report format (json, text)")
	rootCmd.AddCommand(generateCmd)
}
