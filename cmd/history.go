package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/csouto/channel-scout/internal/clock/system"
	"github.com/csouto/channel-scout/internal/history"
)

var (
	pruneMaxAge int
	pruneForce  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and maintain the crawl history document",
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history size and cached channel counts",
	RunE: func(*cobra.Command, []string) error {
		stats := newHistoryStore().Stats(cfg.Cleanup.MaxAgeDays)
		if !stats.Exists {
			fmt.Println("No history document yet.")
			return nil
		}
		fmt.Printf("Sessions:        %d\n", stats.SessionCount)
		fmt.Printf("Cached channels: %d\n", stats.CachedChannels)
		fmt.Printf("Older than %dd:  %d\n", cfg.Cleanup.MaxAgeDays, stats.SessionsToExpire)
		if stats.OldestSession != "" {
			fmt.Printf("Oldest session:  %s (%d days ago)\n", stats.OldestSession, stats.OldestAgeDays)
		}
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove sessions older than the retention window",
	RunE: func(*cobra.Command, []string) error {
		maxAge := pruneMaxAge
		if maxAge == 0 {
			maxAge = cfg.Cleanup.MaxAgeDays
		}
		result, err := newHistoryStore().Prune(maxAge, pruneForce)
		if err != nil {
			return err
		}
		if result.Skipped {
			fmt.Println("Prune skipped:", result.Reason)
			return nil
		}
		fmt.Printf("Removed %d sessions, kept %d.\n", result.Removed, result.Kept)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset the history document to empty",
	RunE: func(*cobra.Command, []string) error {
		if err := newHistoryStore().Clear(); err != nil {
			return err
		}
		fmt.Println("History cleared.")
		return nil
	},
}

func newHistoryStore() *history.Store {
	return history.New(cfg.History.Path, system.New(), logger, history.Options{
		Cooldown: time.Duration(cfg.Cleanup.CooldownDays) * 24 * time.Hour,
	})
}

func init() {
	historyPruneCmd.Flags().IntVar(&pruneMaxAge, "max-age", 0, "retention window in days")
	historyPruneCmd.Flags().BoolVar(&pruneForce, "force", false, "ignore the cleanup cooldown")
	historyCmd.AddCommand(historyStatsCmd, historyPruneCmd, historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}
