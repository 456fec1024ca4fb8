package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meridian/internal/docstore"
	"meridian/internal/gatekeeper"
	"meridian/internal/review"
	"meridian/internal/stage"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

var reviewBundlePath string

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Submit a review bundle and run revision control",
	Long: `Ingest the reviewer's findings/directives bundle, commit gate F from
its decision, and choose exactly one revision action: advance to
finalize, revise back to synthesis, or escalate when the iteration cap
is hit.`,
	RunE: runReview,
}

func runReview(cmd *cobra.Command, args []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}
	layout, err := runLayout()
	if err != nil {
		return err
	}
	if reviewBundlePath == "" {
		return reserr.New(reserr.CodeInvalidArgs, "--bundle file is required")
	}

	data, ferr := os.ReadFile(reviewBundlePath)
	if ferr != nil {
		return reserr.Wrap(reserr.CodeNotFound, "read review bundle", ferr)
	}
	var bundle models.ReviewBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return reserr.Wrap(reserr.CodeInvalidJSON, "parse review bundle", err)
	}

	if ierr := review.Ingest(layout, runID, bundle); ierr != nil {
		return ierr
	}

	engine := gatekeeper.New(layout, runID)
	gateF := models.GateFail
	if bundle.Decision == models.ReviewPass {
		gateF = models.GatePass
	}
	digest := docstore.Digest(bundle.Decision, bundle.Iteration)
	if _, uerr := engine.Update(models.GateF, gatekeeper.Result{
		Status: gateF,
		Notes:  fmt.Sprintf("reviewer decision: %s", bundle.Decision),
		Metrics: map[string]float64{
			"iteration": float64(bundle.Iteration),
			"findings":  float64(len(bundle.Findings)),
		},
		EvaluatedArtifacts: []string{"review/review-bundle.json"},
	}, digest, nil); uerr != nil {
		return uerr
	}

	gateE, serr := engine.Status(models.GateE)
	if serr != nil {
		return serr
	}
	manifest, merr := stage.New(layout, runID).ReadManifest()
	if merr != nil {
		return merr
	}

	outcome := review.Decide(&bundle, gateE, manifest.Limits.MaxReviewIterations)
	if cerr := review.Commit(layout, runID, outcome, bundle.Directives); cerr != nil {
		return cerr
	}

	return emit(outcome, func() {
		fmt.Printf("iteration %d: %s -> %s\n", outcome.Iteration, outcome.Decision, outcome.Action)
		fmt.Println(outcome.Reason)
	})
}

func init() {
	reviewCmd.Flags().StringVar(&reviewBundlePath, "bundle", "", "Review bundle JSON file")
}
