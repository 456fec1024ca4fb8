package summary

import (
	"os"

	"meridian/internal/gatekeeper"
	"meridian/internal/runfs"
	"meridian/pkg/models"
)

// Gate D coverage threshold.
const gateDMinCoverage = 0.90

// GateD checks that enough expected perspectives produced an on-disk summary
// within the per-file cap. The total cap is re-checked against the sum of
// covered files so a pack edited after commit still gets caught.
func GateD(layout runfs.Layout, expected []string, fileCapKB, totalCapKB int) gatekeeper.Result {
	fileCap := int64(fileCapKB * 1024)
	totalCap := int64(totalCapKB * 1024)

	var covered int
	var total int64
	var warnings []string
	for _, id := range expected {
		info, err := os.Stat(layout.Summary(id))
		if err != nil {
			warnings = append(warnings, "missing summary: "+id)
			continue
		}
		if info.Size() > fileCap {
			warnings = append(warnings, "oversize summary: "+id)
			continue
		}
		covered++
		total += info.Size()
	}

	coverage := 0.0
	if len(expected) > 0 {
		coverage = float64(covered) / float64(len(expected))
	}

	status := models.GatePass
	if coverage < gateDMinCoverage || total > totalCap {
		status = models.GateFail
	}

	return gatekeeper.Result{
		Status: status,
		Metrics: map[string]float64{
			"expected":    float64(len(expected)),
			"covered":     float64(covered),
			"coverage":    coverage,
			"total_bytes": float64(total),
		},
		Warnings:           warnings,
		EvaluatedArtifacts: []string{"summaries/summary-pack.json"},
	}
}
