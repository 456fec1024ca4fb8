package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"meridian/internal/config"
	"meridian/internal/runfs"
	"meridian/internal/runlog"
	"meridian/pkg/reserr"
)

var (
	jsonOutput bool
	verbose    bool
	runsDir    string
	runID      string

	cfg  *config.Config
	prov config.Provenance
)

var rootCmd = &cobra.Command{
	Use:   "meridian",
	Short: "Deterministic research run orchestrator",
	Long: `Meridian drives multi-wave research runs through a fixed pipeline:
perspective planning, research waves, a pivot decision, citation
validation, bounded summaries, synthesis and review.

Every artifact lives as a plain file under the run root; every mutation
is revision-checked and audited. Meridian never generates research
content itself: external workers produce the markdown, meridian
validates, gates and advances.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
		prov = p
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		exitErr(err)
	}
}

// defaultRunsDir places runs under XDG data, mirroring where the run index
// lives.
func defaultRunsDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "meridian", "runs")
}

// runLayout resolves the layout for the --run flag.
func runLayout() (runfs.Layout, error) {
	if runID == "" {
		return runfs.Layout{}, reserr.New(reserr.CodeInvalidArgs, "--run is required")
	}
	root := filepath.Join(runsDir, runID)
	if _, err := os.Stat(root); err != nil {
		return runfs.Layout{}, reserr.Newf(reserr.CodeNotFound, "run %s not found under %s", runID, runsDir)
	}
	return runfs.New(root), nil
}

// debugLogger returns the run's debug logger. Without --verbose, or when
// the log file cannot be opened, it degrades to a no-op.
func debugLogger(layout runfs.Layout) *runlog.Logger {
	if !verbose {
		l, _ := runlog.New("")
		return l
	}
	l, err := runlog.New(layout.DebugLog())
	if err != nil {
		l, _ = runlog.New("")
	}
	return l
}

// requireEnabled rejects mutating commands when the kill switch is off.
func requireEnabled() error {
	if !cfg.Enabled {
		return reserr.New(reserr.CodeDisabled, "meridian is disabled by configuration")
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable envelopes")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Write debug lines to the run's logs/debug.log")
	rootCmd.PersistentFlags().StringVar(&runsDir, "runs-dir", defaultRunsDir(), "Directory run roots live under")
	rootCmd.PersistentFlags().StringVar(&runID, "run", "", "Run id to operate on")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(advanceCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(waveCmd)
	rootCmd.AddCommand(pivotCmd)
	rootCmd.AddCommand(citationsCmd)
	rootCmd.AddCommand(summariesCmd)
	rootCmd.AddCommand(synthesisCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(watchdogCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
