package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwbgen/mwbgen/internal/engine"
)

var (
	inspectPivots       []string
	inspectAllowIgnored bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <model.mwb>",
	Short: "Print the resolved schema without writing files",
	Long:  `Load and resolve the model, then print every table as YAML followed by the migration order.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		e := engine.New(cfg, logger)
		e.Pivots = inspectPivots
		e.AllowIgnoredRefs = inspectAllowIgnored

		m, err := e.Load(args[0])
		if err != nil {
			return fmt.Errorf("loading %s: %w", args[0], err)
		}
		plan, err := e.Plan(m)
		if err != nil {
			return err
		}

		data, err := m.ToYAML()
		if err != nil {
			return fmt.Errorf("marshaling schema: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, string(data))
		fmt.Fprintln(out)
		fmt.Fprintln(out, "# "+m.Summary())
		fmt.Fprintln(out, "# migration order:")
		for i, t := range plan {
			fmt.Fprintf(out, "#   %d. %s\n", i+1, t.Name)
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringSliceVar(&inspectPivots, "pivots", nil, "tables to treat as pivot tables (comma separated)")
	inspectCmd.Flags().BoolVar(&inspectAllowIgnored, "allow-ignored-refs", false, "drop foreign keys to ignored tables instead of failing")
	rootCmd.AddCommand(inspectCmd)
}
