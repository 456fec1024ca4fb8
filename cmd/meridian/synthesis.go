package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meridian/internal/citations"
	"meridian/internal/docstore"
	"meridian/internal/gatekeeper"
	"meridian/internal/synthesis"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

var synthesisCmd = &cobra.Command{
	Use:   "synthesis",
	Short: "Check the final synthesis and commit gate E",
	Long: `Evaluate synthesis/final-synthesis.md: required sections, uncited
numeric claims, citation utilization and duplication. The result is
committed as gate E; utilization and duplication breaches surface as
warnings on a soft gate.`,
	RunE: runSynthesis,
}

func runSynthesis(cmd *cobra.Command, args []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}
	layout, err := runLayout()
	if err != nil {
		return err
	}
	records, rerr := citations.ReadRecords(layout.Citations())
	if rerr != nil && rerr.Code != reserr.CodeNotFound {
		return rerr
	}

	res := synthesis.GateE(layout, citations.ValidatedCIDs(records))
	digest := docstore.Digest(res.Metrics, res.EvaluatedArtifacts)
	doc, uerr := gatekeeper.New(layout, runID).Update(models.GateE, res, digest, nil)
	if uerr != nil {
		return uerr
	}

	payload := map[string]any{
		"status":   res.Status,
		"metrics":  res.Metrics,
		"warnings": res.Warnings,
		"revision": doc.Revision,
	}
	return emit(payload, func() {
		fmt.Printf("gate E: %s\n", res.Status)
		if res.Notes != "" {
			fmt.Println(res.Notes)
		}
		for _, w := range res.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	})
}
