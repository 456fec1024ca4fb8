package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"meridian/internal/runindex"
	"meridian/internal/stage"
	"meridian/pkg/models"
)

var (
	advanceNext     string
	advanceRevision int
)

var advanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Advance the run to its next stage",
	Long: `Compute the next stage, evaluate its preconditions and commit the
transition through a single revision-checked manifest patch.

The pivot stage branches on the persisted pivot decision. The review
stage needs --next synthesis or --next finalize. Pass --expected-revision
to enable the optimistic lock against concurrent callers.`,
	RunE: runAdvance,
}

func runAdvance(cmd *cobra.Command, args []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}
	layout, err := runLayout()
	if err != nil {
		return err
	}

	req := stage.AdvanceRequest{RequestedNext: models.Stage(advanceNext)}
	if cmd.Flags().Changed("expected-revision") {
		rev := advanceRevision
		req.ExpectedRevision = &rev
	}

	log := debugLogger(layout)
	defer log.Close()

	res, aerr := stage.New(layout, runID).Advance(req)
	if aerr != nil {
		log.Log("advance blocked: %s", aerr.Message)
		return aerr
	}
	log.Log("advance %s -> %s revision %d", res.From, res.To, res.Revision)
	touchIndex(res.To, res.RunStatus)

	return emit(res, func() {
		fmt.Printf("advanced %s -> %s (revision %d)\n", res.From, res.To, res.Revision)
		for _, c := range res.Trace {
			mark := "ok"
			if !c.OK {
				mark = "FAILED"
			}
			fmt.Printf("  %-8s %-32s %s\n", c.Kind, c.Target, mark)
		}
		if res.RunStatus == models.RunCompleted {
			fmt.Println("run completed")
		}
	})
}

// touchIndex refreshes the sqlite index; index staleness is never fatal
// since the ledger and manifest stay authoritative.
func touchIndex(s models.Stage, status models.RunStatus) {
	db, err := runindex.Open(runindex.DefaultPath(runsDir))
	if err != nil {
		return
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return
	}
	_ = db.Touch(runID, status, s, time.Now().UTC())
}

func init() {
	advanceCmd.Flags().StringVar(&advanceNext, "next", "", "Requested next stage (review only)")
	advanceCmd.Flags().IntVar(&advanceRevision, "expected-revision", 0, "Expected manifest revision")
}
