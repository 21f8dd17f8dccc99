package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crate-media/crate/internal/state"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previously imported path groups",
	Long:  "Lists every path group recorded by past imports, the set incremental imports skip.",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	st, err := state.Open(cfg.Library.StateFile, log)
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer func() { _ = st.Close() }()

	groups := st.History()
	if len(groups) == 0 {
		fmt.Println("No imports recorded.")
		return nil
	}
	for _, g := range groups {
		fmt.Println(strings.Join(g, "; "))
	}
	return nil
}
