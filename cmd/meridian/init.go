package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"meridian/internal/runfs"
	"meridian/internal/runindex"
	"meridian/internal/runinit"
	"meridian/pkg/models"
)

var (
	initMode        string
	initSensitivity string
	initRunID       string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new research run",
	Long: `Create a run root with its manifest, gates and retry documents,
record it in the shared runs ledger and the run index.

Calling init again with the same --id is a no-op and reports created:false.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}

	res, rerr := runinit.Init(runinit.Options{
		RunID:       initRunID,
		RunsDir:     runsDir,
		Mode:        models.RunMode(initMode),
		Sensitivity: models.Sensitivity(initSensitivity),
		Config:      cfg,
		Provenance:  prov,
	})
	if rerr != nil {
		return rerr
	}

	if res.Created {
		indexRun(res)
	}

	return emit(res, func() {
		if res.Created {
			fmt.Printf("created run %s at %s\n", res.RunID, res.Root)
		} else {
			fmt.Printf("run %s already exists at %s\n", res.RunID, res.Root)
		}
	})
}

// indexRun mirrors the new run into the sqlite index. The ledger already
// holds the authoritative record, so an index failure never fails init;
// runs reindex recovers the row later.
func indexRun(res *runinit.Result) {
	log := debugLogger(runfs.New(res.Root))
	defer log.Close()

	db, err := runindex.Open(runindex.DefaultPath(runsDir))
	if err != nil {
		log.Log("run not indexed: %v", err)
		return
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Log("run not indexed: %v", err)
		return
	}
	now := time.Now().UTC()
	mode := models.RunMode(initMode)
	if mode == "" {
		mode = models.RunMode(cfg.DefaultMode)
	}
	if err := db.Record(runindex.Run{
		ID:        res.RunID,
		Root:      res.Root,
		Mode:      mode,
		Status:    models.RunRunning,
		Stage:     models.StageInit,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		log.Log("run not indexed: %v", err)
	}
}

func init() {
	initCmd.Flags().StringVar(&initRunID, "id", "", "Run id (generated when empty)")
	initCmd.Flags().StringVar(&initMode, "mode", "", "Run mode: standard or deep")
	initCmd.Flags().StringVar(&initSensitivity, "sensitivity", "", "Redaction profile: normal or restricted")
}
