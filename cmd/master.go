package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csouto/channel-scout/internal/clock/system"
	"github.com/csouto/channel-scout/internal/master"
)

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Maintain the master channel ledger",
}

var masterDedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Collapse duplicate ledger rows, keeping the newest",
	RunE: func(*cobra.Command, []string) error {
		ledger := master.New(cfg.Master.Path, system.New(), logger)
		removed, err := ledger.Deduplicate()
		if err != nil {
			return err
		}
		if removed == 0 {
			fmt.Println("No duplicates found.")
			return nil
		}
		fmt.Printf("Removed %d duplicate rows.\n", removed)
		return nil
	},
}

var masterStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger row counts",
	RunE: func(*cobra.Command, []string) error {
		ledger := master.New(cfg.Master.Path, system.New(), logger)
		rows, err := ledger.Rows()
		if err != nil {
			return err
		}
		withEmail := 0
		for _, row := range rows {
			if row["has_email"] == "true" {
				withEmail++
			}
		}
		fmt.Printf("Channels:   %d\n", len(rows))
		fmt.Printf("With email: %d\n", withEmail)
		return nil
	},
}

func init() {
	masterCmd.AddCommand(masterDedupeCmd, masterStatsCmd)
	rootCmd.AddCommand(masterCmd)
}
