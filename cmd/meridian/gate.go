package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"meridian/internal/citations"
	"meridian/internal/docstore"
	"meridian/internal/gatekeeper"
	"meridian/internal/review"
	"meridian/internal/runfs"
	"meridian/internal/stage"
	"meridian/internal/summary"
	"meridian/internal/synthesis"
	"meridian/internal/wave"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

var retryNote string

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Inspect, evaluate and retry quality gates",
}

var gateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the gate table",
	RunE: func(cmd *cobra.Command, args []string) error {
		layout, err := runLayout()
		if err != nil {
			return err
		}
		doc, gerr := gatekeeper.New(layout, runID).Read()
		if gerr != nil {
			return gerr
		}
		return emit(doc, func() { displayGates(doc) })
	},
}

var gateEvalCmd = &cobra.Command{
	Use:   "eval <A|B|C|D|E|F>",
	Short: "Evaluate a gate from on-disk artifacts",
	Long: `Recompute a gate's status from the artifacts it reads and commit the
result through a single gates-document patch. Gate computations are
pure; re-running one on unchanged artifacts reproduces the same status
and metrics.`,
	Args: cobra.ExactArgs(1),
	RunE: runGateEval,
}

func runGateEval(cmd *cobra.Command, args []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}
	layout, err := runLayout()
	if err != nil {
		return err
	}
	id := models.GateID(strings.ToUpper(args[0]))
	if !id.Valid() {
		return reserr.Newf(reserr.CodeInvalidArgs, "unknown gate %q", args[0])
	}

	res, eerr := evalGate(layout, id)
	if eerr != nil {
		return eerr
	}

	digest := docstore.Digest(string(id), res.Metrics, res.EvaluatedArtifacts)
	doc, uerr := gatekeeper.New(layout, runID).Update(id, *res, digest, nil)
	if uerr != nil {
		return uerr
	}

	payload := map[string]any{
		"gate":     id,
		"status":   res.Status,
		"metrics":  res.Metrics,
		"revision": doc.Revision,
	}
	return emit(payload, func() {
		fmt.Printf("gate %s: %s\n", id, res.Status)
		for k, v := range res.Metrics {
			fmt.Printf("  %s = %g\n", k, v)
		}
		for _, w := range res.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	})
}

// evalGate dispatches to the per-gate computation.
func evalGate(layout runfs.Layout, id models.GateID) (*gatekeeper.Result, *reserr.Error) {
	switch id {
	case models.GateA:
		return evalGateA(layout)
	case models.GateB:
		return evalGateB(layout)
	case models.GateC:
		return evalGateC(layout)
	case models.GateD:
		return evalGateD(layout)
	case models.GateE:
		return evalGateE(layout)
	case models.GateF:
		return evalGateF(layout)
	}
	return nil, reserr.Newf(reserr.CodeInvalidArgs, "unknown gate %q", id)
}

// Gate A: the perspectives plan exists, validates and fits the wave cap.
func evalGateA(layout runfs.Layout) (*gatekeeper.Result, *reserr.Error) {
	doc, rerr := wave.ReadPerspectives(layout)
	if rerr != nil {
		if rerr.Code == reserr.CodeNotFound {
			return &gatekeeper.Result{
				Status:             models.GateFail,
				FailureCode:        reserr.CodeMissingArtifact,
				Notes:              "perspectives plan has not been loaded",
				EvaluatedArtifacts: []string{"perspectives.json"},
			}, nil
		}
		return &gatekeeper.Result{
			Status:             models.GateFail,
			FailureCode:        rerr.Code,
			Notes:              rerr.Message,
			EvaluatedArtifacts: []string{"perspectives.json"},
		}, nil
	}
	return &gatekeeper.Result{
		Status: models.GatePass,
		Metrics: map[string]float64{
			"perspectives": float64(len(doc.Perspectives)),
		},
		EvaluatedArtifacts: []string{"perspectives.json"},
	}, nil
}

// Gate B: contract compliance across wave-1 outputs.
func evalGateB(layout runfs.Layout) (*gatekeeper.Result, *reserr.Error) {
	doc, rerr := wave.ReadPerspectives(layout)
	if rerr != nil {
		return nil, rerr
	}
	var reports []*wave.Report
	for _, p := range doc.Perspectives {
		report, verr := wave.ValidateOutput(layout, p, 1)
		if verr != nil {
			return nil, verr
		}
		reports = append(reports, report)
	}
	res := wave.GateB(reports)
	return &res, nil
}

// Gate C: citation validation rates.
func evalGateC(layout runfs.Layout) (*gatekeeper.Result, *reserr.Error) {
	records, rerr := citations.ReadRecords(layout.Citations())
	if rerr != nil && rerr.Code != reserr.CodeNotFound {
		return nil, rerr
	}
	res := citations.GateC(readNormalizedURLs(layout), records)
	return &res, nil
}

// Gate D: summary coverage within caps.
func evalGateD(layout runfs.Layout) (*gatekeeper.Result, *reserr.Error) {
	doc, rerr := wave.ReadPerspectives(layout)
	if rerr != nil {
		return nil, rerr
	}
	manifest, merr := stage.New(layout, runID).ReadManifest()
	if merr != nil {
		return nil, merr
	}
	expected := make([]string, 0, len(doc.Perspectives))
	for _, p := range doc.Perspectives {
		expected = append(expected, p.ID)
	}
	res := summary.GateD(layout, expected, manifest.Limits.SummaryFileKB, manifest.Limits.SummaryTotalKB)
	return &res, nil
}

// Gate E: synthesis structure and citation discipline.
func evalGateE(layout runfs.Layout) (*gatekeeper.Result, *reserr.Error) {
	records, rerr := citations.ReadRecords(layout.Citations())
	if rerr != nil && rerr.Code != reserr.CodeNotFound {
		return nil, rerr
	}
	res := synthesis.GateE(layout, citations.ValidatedCIDs(records))
	return &res, nil
}

// Gate F: the reviewer's verdict.
func evalGateF(layout runfs.Layout) (*gatekeeper.Result, *reserr.Error) {
	bundle, rerr := review.Read(layout)
	if rerr != nil {
		if rerr.Code == reserr.CodeNotFound {
			return &gatekeeper.Result{
				Status:             models.GateFail,
				FailureCode:        reserr.CodeMissingArtifact,
				Notes:              "no review bundle submitted",
				EvaluatedArtifacts: []string{"review/review-bundle.json"},
			}, nil
		}
		return nil, rerr
	}
	status := models.GateFail
	if bundle.Decision == models.ReviewPass {
		status = models.GatePass
	}
	return &gatekeeper.Result{
		Status: status,
		Notes:  fmt.Sprintf("reviewer decision: %s", bundle.Decision),
		Metrics: map[string]float64{
			"iteration":  float64(bundle.Iteration),
			"findings":   float64(len(bundle.Findings)),
			"directives": float64(len(bundle.Directives)),
		},
		EvaluatedArtifacts: []string{"review/review-bundle.json"},
	}, nil
}

func readNormalizedURLs(layout runfs.Layout) []string {
	data, err := os.ReadFile(layout.NormalizedURLs())
	if err != nil {
		return nil
	}
	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			urls = append(urls, line)
		}
	}
	return urls
}

var gateRetryCmd = &cobra.Command{
	Use:   "retry <A|B|C|D|E|F>",
	Short: "Record a capped retry attempt against a gate",
	Long: `Record one retry attempt in the retry ledger. Every attempt needs a
--note describing what changed since the last evaluation. Caps are
fixed per gate; exceeding one returns RETRY_EXHAUSTED.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEnabled(); err != nil {
			return err
		}
		layout, err := runLayout()
		if err != nil {
			return err
		}
		id := models.GateID(strings.ToUpper(args[0]))
		if !id.Valid() {
			return reserr.Newf(reserr.CodeInvalidArgs, "unknown gate %q", args[0])
		}
		used, rerr := gatekeeper.New(layout, runID).RecordRetry(id, retryNote)
		if rerr != nil {
			return rerr
		}
		payload := map[string]any{"gate": id, "used": used, "cap": models.RetryCap(id)}
		return emit(payload, func() {
			fmt.Printf("gate %s retry recorded (%d of %d used)\n", id, used, models.RetryCap(id))
		})
	},
}

func init() {
	gateRetryCmd.Flags().StringVar(&retryNote, "note", "", "What changed since the last attempt (required)")
	gateCmd.AddCommand(gateShowCmd)
	gateCmd.AddCommand(gateEvalCmd)
	gateCmd.AddCommand(gateRetryCmd)
}
