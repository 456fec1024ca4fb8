package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"meridian/internal/gatekeeper"
	"meridian/internal/stage"
	"meridian/internal/tui"
	"meridian/internal/watchdog"
	"meridian/pkg/models"
)

var statusTUI bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run state",
	Long: `Display the run's stage, status, gate table and stage clock.

With --tui, open a live dashboard that refreshes as external workers
write artifacts.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	layout, err := runLayout()
	if err != nil {
		return err
	}
	if statusTUI {
		return tui.Run(layout, runID)
	}

	manifest, merr := stage.New(layout, runID).ReadManifest()
	if merr != nil {
		return merr
	}
	gates, gerr := gatekeeper.New(layout, runID).Read()
	if gerr != nil {
		return gerr
	}

	payload := map[string]any{
		"run_id":   manifest.RunID,
		"status":   manifest.Status,
		"stage":    manifest.Stage,
		"mode":     manifest.Mode,
		"revision": manifest.Revision,
		"gates":    gates.Gates,
	}
	return emit(payload, func() {
		displayManifest(manifest)
		displayGates(gates)
	})
}

func displayManifest(m *models.Manifest) {
	statusColor := color.New(color.FgGreen)
	switch m.Status {
	case models.RunFailed:
		statusColor = color.New(color.FgRed)
	case models.RunCompleted:
		statusColor = color.New(color.FgHiGreen)
	}

	fmt.Printf("run %s  ", m.RunID)
	statusColor.Printf("%s", m.Status)
	fmt.Printf("  stage=%s mode=%s revision=%d\n", m.Stage, m.Mode, m.Revision)

	if m.Status == models.RunRunning {
		if budget, ok := watchdog.Timeout(m.Stage); ok {
			elapsed := time.Since(m.StageStartedAt).Round(time.Second)
			fmt.Printf("stage clock %s of %s\n", elapsed, budget)
		}
	}
	if len(m.Failures) > 0 {
		last := m.Failures[len(m.Failures)-1]
		color.Red("last failure: [%s] %s", last.Kind, last.Message)
	}
}

func displayGates(doc *models.GatesDoc) {
	fmt.Println("\ngates:")
	for _, id := range models.AllGates() {
		gate, ok := doc.Gates[id]
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %s  %-7s (%s)", id, gate.Status, gate.Kind)
		switch gate.Status {
		case models.GatePass:
			color.Green(line)
		case models.GateFail:
			color.Red(line)
		case models.GateWarn:
			color.Yellow(line)
		default:
			fmt.Println(line)
		}
	}
}

func init() {
	statusCmd.Flags().BoolVar(&statusTUI, "tui", false, "Open the live dashboard")
}
