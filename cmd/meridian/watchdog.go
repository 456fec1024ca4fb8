package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"meridian/internal/watchdog"
)

var watchdogCmd = &cobra.Command{
	Use:   "watchdog",
	Short: "Check the run against its stage timeout",
	Long: `Compare the current stage's elapsed wall-clock time against its fixed
budget. An exceeded budget force-fails the run and writes
CHECKPOINT.md; the failure is terminal and nothing is retried here.`,
	RunE: runWatchdog,
}

func runWatchdog(cmd *cobra.Command, args []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}
	layout, err := runLayout()
	if err != nil {
		return err
	}
	report, rerr := watchdog.Check(layout, runID, time.Now().UTC())
	if rerr != nil {
		return rerr
	}
	if report.TimedOut {
		touchIndex(report.Stage, report.RunStatus)
	}

	return emit(report, func() {
		if report.TimedOut {
			fmt.Printf("run force-failed: stage %s exceeded %s (ran %s)\n",
				report.Stage, report.Budget, report.Elapsed.Round(time.Second))
			fmt.Printf("checkpoint: %s\n", layout.Checkpoint())
			return
		}
		if report.Budget > 0 {
			fmt.Printf("stage %s within budget: %s of %s\n",
				report.Stage, report.Elapsed.Round(time.Second), report.Budget)
		} else {
			fmt.Printf("run is %s; nothing to watch\n", report.RunStatus)
		}
	})
}
