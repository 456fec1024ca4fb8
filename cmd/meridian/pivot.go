package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meridian/internal/pivot"
	"meridian/internal/wave"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

var pivotGapsPath string

var pivotCmd = &cobra.Command{
	Use:   "pivot",
	Short: "Decide whether a second research wave runs",
}

var pivotDecideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Evaluate the pivot ladder and commit the decision",
	Long: `Collect gaps, evaluate the decision ladder and commit pivot.json.

Gaps come from each wave-1 output's Gaps section by default; pass
--gaps with a JSON file of explicit gap objects to override. The
decision is write-once: re-deciding an already-pivoted run is refused.`,
	RunE: runPivotDecide,
}

func runPivotDecide(cmd *cobra.Command, args []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}
	layout, err := runLayout()
	if err != nil {
		return err
	}

	var gaps []models.Gap
	var perspectives []models.Perspective
	if pivotGapsPath != "" {
		explicit, gerr := readExplicitGaps(pivotGapsPath)
		if gerr != nil {
			return gerr
		}
		deduped, derr := pivot.CollectExplicit(explicit)
		if derr != nil {
			return derr
		}
		gaps = deduped
	} else {
		doc, rerr := wave.ReadPerspectives(layout)
		if rerr != nil {
			return rerr
		}
		collected, cerr := pivot.CollectFromWave(layout, doc.Perspectives)
		if cerr != nil {
			return cerr
		}
		gaps = collected
		perspectives = doc.Perspectives
	}
	gaps = pivot.Rank(gaps)

	decision := pivot.Decide(gaps)
	digest := pivot.InputsDigest(layout, perspectives, gaps)
	committed, cerr := pivot.Commit(layout, runID, gaps, decision, digest)
	if cerr != nil {
		return cerr
	}

	return emit(committed, func() {
		verdict := "skip wave 2"
		if committed.Wave2Required {
			verdict = "run wave 2"
		}
		fmt.Printf("%s (%s): %s\n", verdict, committed.RuleHit, committed.Explanation)
		for _, id := range committed.SelectedGapIDs {
			fmt.Printf("  selected: %s\n", id)
		}
	})
}

func readExplicitGaps(path string) ([]models.Gap, *reserr.Error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, reserr.Wrap(reserr.CodeNotFound, "read gaps file", err)
	}
	var gaps []models.Gap
	if err := json.Unmarshal(data, &gaps); err != nil {
		return nil, reserr.Wrap(reserr.CodeInvalidJSON, "parse gaps file", err)
	}
	return gaps, nil
}

var pivotShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the committed pivot decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		layout, err := runLayout()
		if err != nil {
			return err
		}
		doc, rerr := pivot.Read(layout)
		if rerr != nil {
			return rerr
		}
		return emit(doc, func() {
			fmt.Printf("wave2_required=%t rule=%s\n%s\n", doc.Wave2Required, doc.RuleHit, doc.Explanation)
			for _, g := range doc.Gaps {
				fmt.Printf("  (%s) %s: %s\n", g.Priority, g.ID, g.Text)
			}
		})
	},
}

func init() {
	pivotDecideCmd.Flags().StringVar(&pivotGapsPath, "gaps", "", "Explicit gaps JSON file")
	pivotCmd.AddCommand(pivotDecideCmd)
	pivotCmd.AddCommand(pivotShowCmd)
}
