package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crate-media/crate/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configTestCmd = &cobra.Command{
	Use:   "test [path]",
	Short: "Validate configuration file",
	Long:  "Validates config syntax, field values, and environment variable substitution.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigTest,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configTestCmd)
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		path = "config.toml"
	}

	fmt.Printf("Validating %s...\n\n", path)

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Println("Validation errors:")
		for _, e := range errs {
			fmt.Printf("  - %s\n", e)
		}
		return fmt.Errorf("configuration invalid")
	}

	fmt.Println("Configuration Summary:")
	fmt.Printf("  Library:   %s\n", cfg.Library.Directory)
	fmt.Printf("  Database:  %s\n", cfg.Library.Database)
	fmt.Printf("  State:     %s\n", cfg.Library.StateFile)
	fmt.Printf("  Transfer:  %s\n", cfg.Import.Mode())
	fmt.Printf("  Log level: %s\n", cfg.Log.Level)
	fmt.Println("\nConfiguration valid!")
	return nil
}
