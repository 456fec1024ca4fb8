// Package synthesis evaluates the final synthesis markdown against gate E.
package synthesis

import (
	"fmt"
	"os"
	"strings"

	"meridian/internal/gatekeeper"
	"meridian/internal/mdscan"
	"meridian/internal/runfs"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// RequiredSections are the H2 headings every synthesis must carry.
var RequiredSections = []string{"Summary", "Key Findings", "Evidence", "Caveats"}

// Warning thresholds. These surface as warnings on a soft gate, never as
// hard failures.
const (
	minUtilizationRate = 0.5
	maxDuplicationRate = 0.5
)

// GateE reads final-synthesis.md and checks structure and citation
// discipline. A numeric claim counts as cited when its own line or the next
// non-blank line carries a citation marker.
func GateE(layout runfs.Layout, validCIDs map[string]bool) gatekeeper.Result {
	data, err := os.ReadFile(layout.FinalSynthesis())
	if err != nil {
		return gatekeeper.Result{
			Status:             models.GateFail,
			FailureCode:        reserr.CodeMissingArtifact,
			Notes:              "final synthesis not found",
			EvaluatedArtifacts: []string{"synthesis/final-synthesis.md"},
		}
	}

	lines := mdscan.Lines(string(data))
	headings := mdscan.Headings(lines)

	var missing []string
	for _, section := range RequiredSections {
		found := false
		for _, h := range headings {
			if strings.EqualFold(h, section) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, section)
		}
	}

	uncited := countUncitedNumericClaims(lines)

	occurrences := 0
	cited := map[string]bool{}
	for _, line := range lines {
		for _, cid := range mdscan.CitationMarkers(line) {
			occurrences++
			if validCIDs[cid] {
				cited[cid] = true
			}
		}
	}

	utilization := 0.0
	if len(validCIDs) > 0 {
		utilization = float64(len(cited)) / float64(len(validCIDs))
	}
	duplication := 0.0
	if occurrences > 0 {
		duplication = 1 - float64(len(cited))/float64(occurrences)
	}

	var warnings []string
	if utilization < minUtilizationRate {
		warnings = append(warnings, fmt.Sprintf("low citation utilization: %.2f", utilization))
	}
	if duplication > maxDuplicationRate {
		warnings = append(warnings, fmt.Sprintf("high citation duplication: %.2f", duplication))
	}

	status := models.GatePass
	var failureCode reserr.Code
	var notes string
	switch {
	case len(missing) > 0:
		status = models.GateFail
		failureCode = reserr.CodeMissingRequiredSection
		notes = "missing sections: " + strings.Join(missing, ", ")
	case uncited > 0:
		status = models.GateFail
		notes = fmt.Sprintf("%d uncited numeric claims", uncited)
	case len(warnings) > 0:
		status = models.GateWarn
	}

	return gatekeeper.Result{
		Status:      status,
		FailureCode: failureCode,
		Notes:       notes,
		Warnings:    warnings,
		Metrics: map[string]float64{
			"missing_sections":       float64(len(missing)),
			"uncited_numeric_claims": float64(uncited),
			"marker_occurrences":     float64(occurrences),
			"distinct_cids_cited":    float64(len(cited)),
			"utilization_rate":       utilization,
			"duplication_rate":       duplication,
		},
		EvaluatedArtifacts: []string{"synthesis/final-synthesis.md"},
	}
}

// countUncitedNumericClaims counts non-heading number-bearing lines with no
// citation marker on the line itself or on the next non-blank line.
func countUncitedNumericClaims(lines []string) int {
	count := 0
	for i, line := range lines {
		if mdscan.IsHeading(line) || !mdscan.HasNumber(line) {
			continue
		}
		if mdscan.HasCitationMarker(line) {
			continue
		}
		next := ""
		for j := i + 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) != "" {
				next = lines[j]
				break
			}
		}
		if !mdscan.HasCitationMarker(next) {
			count++
		}
	}
	return count
}
