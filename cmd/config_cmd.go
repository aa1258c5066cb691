package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwbgen/mwbgen/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Create and view the mwbgen configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)
		def := config.Default()

		fmt.Println("mwbgen Configuration Setup")
		fmt.Println("==========================")
		fmt.Println()

		cfg := config.Default()
		cfg.Output.Migrations = prompt(reader, "Migrations directory", def.Output.Migrations)
		cfg.Output.Models = prompt(reader, "Models directory", def.Output.Models)
		cfg.Laravel.Namespace = prompt(reader, "Model namespace", def.Laravel.Namespace)
		if pivots := prompt(reader, "Pivot tables (comma separated)", ""); pivots != "" {
			for _, p := range strings.Split(pivots, ",") {
				if p = strings.TrimSpace(p); p != "" {
					cfg.Pivots = append(cfg.Pivots, p)
				}
			}
		}
		cfg.Formatter.Enabled = strings.HasPrefix(strings.ToLower(prompt(reader, "Run code formatter (y/n)", "y")), "y")
		if cfg.Formatter.Enabled {
			cfg.Formatter.Command = prompt(reader, "Formatter command", def.Formatter.Command)
		}
		fmt.Println()

		cfgPath := config.ExpandHome(config.DefaultPath)
		if cfgFile != "" {
			cfgPath = cfgFile
		}

		if err := cfg.Save(cfgPath); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Printf("Config written to %s\n", cfgPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(); err != nil {
			return err
		}
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		fmt.Println("Current configuration:")
		fmt.Println()
		fmt.Printf("  Output:\n")
		fmt.Printf("    Migrations:     %s\n", cfg.Output.Migrations)
		fmt.Printf("    Models:         %s\n", cfg.Output.Models)
		fmt.Printf("    Report:         %s\n", valueOr(cfg.Output.Report, "(none)"))
		fmt.Println()
		fmt.Printf("  Laravel:\n")
		fmt.Printf("    Namespace:      %s\n", cfg.Laravel.Namespace)
		fmt.Printf("    Pivots:         %s\n", valueOr(strings.Join(cfg.Pivots, ", "), "(auto-detect)"))
		fmt.Println()
		fmt.Printf("  Formatter:\n")
		fmt.Printf("    Enabled:        %t\n", cfg.Formatter.Enabled)
		fmt.Printf("    Command:        %s\n", cfg.Formatter.Command)
		fmt.Println()
		fmt.Printf("  Logging:\n")
		fmt.Printf("    Level:          %s\n", cfg.Logging.Level)
		fmt.Printf("    Directory:      %s\n", cfg.Logging.Directory)

		return nil
	},
}

func prompt(reader *bufio.Reader, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("  %s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("  %s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
