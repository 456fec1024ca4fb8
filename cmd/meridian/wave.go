package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meridian/internal/pivot"
	"meridian/internal/runfs"
	"meridian/internal/stage"
	"meridian/internal/wave"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

var (
	waveSpecPath string
	waveNum      int
)

var waveCmd = &cobra.Command{
	Use:   "wave",
	Short: "Plan research waves and validate their outputs",
}

var wavePlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build deterministic wave assignments",
	Long: `For wave 1, load the perspectives spec (--spec, yaml) and emit one
prompt and output path per perspective. For wave 2, derive the
perspective set from the committed pivot decision's selected gaps.`,
	RunE: runWavePlan,
}

func runWavePlan(cmd *cobra.Command, args []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}
	layout, err := runLayout()
	if err != nil {
		return err
	}
	manifest, merr := stage.New(layout, runID).ReadManifest()
	if merr != nil {
		return merr
	}

	var doc *models.PerspectivesDoc
	var selected []string
	switch waveNum {
	case 1:
		if waveSpecPath != "" {
			loaded, lerr := wave.LoadSpec(layout, runID, waveSpecPath, manifest.Limits.MaxWave1Perspectives)
			if lerr != nil {
				return lerr
			}
			doc = loaded
		} else {
			read, rerr := wave.ReadPerspectives(layout)
			if rerr != nil {
				return rerr
			}
			doc = read
		}
	case 2:
		read, rerr := wave.ReadPerspectives(layout)
		if rerr != nil {
			return rerr
		}
		doc = read
		ids, serr := wave2Perspectives(layout, manifest.Limits.MaxWave2Perspectives)
		if serr != nil {
			return serr
		}
		selected = ids
	default:
		return reserr.Newf(reserr.CodeInvalidArgs, "wave must be 1 or 2, got %d", waveNum)
	}

	assignments, perr := wave.Plan(layout, doc, waveNum, selected)
	if perr != nil {
		return perr
	}
	payload := map[string]any{"wave": waveNum, "assignments": assignments}
	return emit(payload, func() {
		fmt.Printf("wave %d: %d assignments\n", waveNum, len(assignments))
		for _, a := range assignments {
			fmt.Printf("  %s -> %s\n", a.PerspectiveID, a.OutputPath)
		}
	})
}

// wave2Perspectives maps the pivot's selected gaps back to the wave-1
// perspectives that reported them, deduplicated and capped.
func wave2Perspectives(layout runfs.Layout, maxPerspectives int) ([]string, *reserr.Error) {
	decision, rerr := pivot.Read(layout)
	if rerr != nil {
		return nil, rerr
	}
	if !decision.Wave2Required {
		return nil, reserr.New(reserr.CodeLifecycleRuleViolation,
			"pivot decided wave 2 is not required")
	}
	byID := map[string]models.Gap{}
	for _, g := range decision.Gaps {
		byID[g.ID] = g
	}
	seen := map[string]bool{}
	var ids []string
	for _, gapID := range decision.SelectedGapIDs {
		gap, ok := byID[gapID]
		if !ok || gap.Perspective == "" || seen[gap.Perspective] {
			continue
		}
		seen[gap.Perspective] = true
		ids = append(ids, gap.Perspective)
	}
	if len(ids) > maxPerspectives {
		ids = ids[:maxPerspectives]
	}
	return ids, nil
}

var waveValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate wave outputs against their contracts",
	Long: `Run each perspective's prompt contract against its produced markdown
and print one report per perspective. Nothing is committed here; run
"meridian gate --id B" to evaluate wave health from these reports.`,
	RunE: runWaveValidate,
}

func runWaveValidate(cmd *cobra.Command, args []string) error {
	if err := requireEnabled(); err != nil {
		return err
	}
	layout, err := runLayout()
	if err != nil {
		return err
	}
	doc, rerr := wave.ReadPerspectives(layout)
	if rerr != nil {
		return rerr
	}

	var reports []*wave.Report
	for _, p := range doc.Perspectives {
		report, verr := wave.ValidateOutput(layout, p, waveNum)
		if verr != nil {
			return verr
		}
		reports = append(reports, report)
	}

	payload := map[string]any{"wave": waveNum, "reports": reports}
	return emit(payload, func() {
		for _, r := range reports {
			state := "clean"
			switch {
			case !r.Produced:
				state = "missing"
			case !r.Clean():
				state = fmt.Sprintf("%d violations", len(r.Violations))
			}
			fmt.Printf("  %-24s %s\n", r.PerspectiveID, state)
		}
	})
}

func init() {
	wavePlanCmd.Flags().StringVar(&waveSpecPath, "spec", "", "Perspectives spec yaml (wave 1 only)")
	waveCmd.PersistentFlags().IntVar(&waveNum, "wave", 1, "Wave number (1 or 2)")
	waveCmd.AddCommand(wavePlanCmd)
	waveCmd.AddCommand(waveValidateCmd)
}
