package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"meridian/internal/runindex"
	"meridian/internal/runinit"
	"meridian/pkg/models"
)

var (
	runsStatus    string
	runsLimit     int
	runsOlderThan time.Duration
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Query the run index",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := runindex.Open(runindex.DefaultPath(runsDir))
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}

		runs, err := db.List(models.RunStatus(runsStatus), runsLimit)
		if err != nil {
			return err
		}
		payload := map[string]any{"runs": runs}
		return emit(payload, func() {
			if len(runs) == 0 {
				fmt.Println("no runs indexed")
				return
			}
			for _, r := range runs {
				fmt.Printf("%-14s %-9s %-10s %s  %s\n",
					r.ID, r.Status, r.Stage, r.CreatedAt.Format("2006-01-02 15:04"), r.Root)
			}
		})
	},
}

var runsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop old terminal runs from the index",
	Long: `Remove completed and failed runs older than --older-than from the
index. Run roots and the runs ledger are never touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEnabled(); err != nil {
			return err
		}
		db, err := runindex.Open(runindex.DefaultPath(runsDir))
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}

		count, err := db.PurgeOlderThan(runsOlderThan)
		if err != nil {
			return err
		}
		payload := map[string]any{"purged": count}
		return emit(payload, func() {
			fmt.Printf("purged %d runs from the index\n", count)
		})
	},
}

var runsReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the index from the runs ledger",
	Long: `Drop the index contents and reload every run from runs-ledger.jsonl,
taking current stage and status from each run's manifest. Recovers a
deleted or stale index; the ledger and manifests stay untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := runindex.Open(runindex.DefaultPath(runsDir))
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}

		count, err := db.Rebuild(runinit.LedgerPath(runsDir))
		if err != nil {
			return err
		}
		payload := map[string]any{"indexed": count}
		return emit(payload, func() {
			fmt.Printf("reindexed %d runs\n", count)
		})
	},
}

func init() {
	runsListCmd.Flags().StringVar(&runsStatus, "status", "", "Filter by status (running, completed, failed)")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum rows")
	runsPurgeCmd.Flags().DurationVar(&runsOlderThan, "older-than", 30*24*time.Hour, "Age cutoff")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsPurgeCmd)
	runsCmd.AddCommand(runsReindexCmd)
}
