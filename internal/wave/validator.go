package wave

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

// Violation is one contract breach found in a wave output.
type Violation struct {
	// Code is the content error code.
	Code reserr.Code `json:"code"`
	// Message describes the breach.
	Message string `json:"message"`
	// Line is the 1-based line, when the breach has a position.
	Line int `json:"line,omitempty"`
}

// Report is the validator's verdict on one perspective's output.
type Report struct {
	PerspectiveID string      `json:"perspective_id"`
	Wave          int         `json:"wave"`
	Path          string      `json:"path"`
	Produced      bool        `json:"produced"`
	WordCount     int         `json:"word_count"`
	SourceCount   int         `json:"source_count"`
	Violations    []Violation `json:"violations,omitempty"`
}

// Clean reports whether the output exists and satisfies its contract.
func (r *Report) Clean() bool {
	return r.Produced && len(r.Violations) == 0
}

// ValidateOutput checks one perspective's markdown against its contract.
// A missing file is reported on the Report, not as an operation error, so
// Gate B can aggregate coverage across the wave.
func ValidateOutput(layout runfs.Layout, p models.Perspective, waveNum int) (*Report, *reserr.Error) {
	path := layout.WaveOutput(waveNum, p.ID)
	report := &Report{PerspectiveID: p.ID, Wave: waveNum, Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return report, nil
		}
		return nil, reserr.Wrap(reserr.CodeWriteFailed, "read wave output", err)
	}
	report.Produced = true
	lines := mdscan.Lines(string(data))
	report.WordCount = mdscan.WordCount(lines)

	if report.WordCount > p.Contract.MaxWords {
		report.Violations = append(report.Violations, Violation{
			Code: reserr.CodeTooManyWords,
			Message: fmt.Sprintf("%d words exceed the %d-word contract",
				report.WordCount, p.Contract.MaxWords),
		})
	}

	for _, section := range p.Contract.RequiredSections {
		if _, _, ok := mdscan.Section(lines, section); !ok {
			report.Violations = append(report.Violations, Violation{
				Code:    reserr.CodeMissingRequiredSection,
				Message: fmt.Sprintf("required section %q is missing", section),
			})
		}
	}

	body, start, ok := mdscan.Section(lines, "Sources")
	if ok {
		count, violations := checkSources(body, start)
		report.SourceCount = count
		report.Violations = append(report.Violations, violations...)
		if count > p.Contract.MaxSources {
			report.Violations = append(report.Violations, Violation{
				Code: reserr.CodeTooManySources,
				Message: fmt.Sprintf("%d sources exceed the %d-source contract",
					count, p.Contract.MaxSources),
			})
		}
	}
	return report, nil
}

// checkSources enforces the Sources bullet grammar: every non-blank line is
// a "- " bullet and every bullet carries exactly one absolute http(s) URL.
func checkSources(body []string, start int) (int, []Violation) {
	var violations []Violation
	count := 0
	for i, line := range body {
		lineNo := start + i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "- ") {
			violations = append(violations, Violation{
				Code:    reserr.CodeMalformedSources,
				Message: "Sources entries must be '- <url>' bullets",
				Line:    lineNo,
			})
			continue
		}
		urls := mdscan.URLs(trimmed)
		if len(urls) != 1 {
			violations = append(violations, Violation{
				Code:    reserr.CodeMalformedSources,
				Message: fmt.Sprintf("source bullet must contain exactly one absolute URL, found %d", len(urls)),
				Line:    lineNo,
			})
			continue
		}
		count++
	}
	return count, violations
}

// GateB aggregates a wave's validator reports into the soft Gate B verdict.
// All outputs produced and clean passes; at least half produced and clean
// warns; anything less fails.
func GateB(reports []*Report) gatekeeper.Result {
	expected := len(reports)
	produced := 0
	clean := 0
	var warnings []string
	var artifacts []string
	for _, r := range reports {
		artifacts = append(artifacts, r.Path)
		if r.Produced {
			produced++
		} else {
			warnings = append(warnings, fmt.Sprintf("%s: no output produced", r.PerspectiveID))
		}
		if r.Clean() {
			clean++
		} else if r.Produced {
			for _, v := range r.Violations {
				warnings = append(warnings, fmt.Sprintf("%s: %s", r.PerspectiveID, v.Message))
			}
		}
	}

	metrics := map[string]float64{
		"expected": float64(expected),
		"produced": float64(produced),
		"clean":    float64(clean),
	}
	if expected > 0 {
		metrics["clean_rate"] = float64(clean) / float64(expected)
	}

	res := gatekeeper.Result{
		Metrics:            metrics,
		EvaluatedArtifacts: artifacts,
		Warnings:           warnings,
	}
	switch {
	case expected == 0:
		res.Status = models.GateFail
		res.Notes = "no perspectives planned for this wave"
	case clean == expected:
		res.Status = models.GatePass
	case clean*2 >= expected:
		res.Status = models.GateWarn
		res.Notes = fmt.Sprintf("%d of %d outputs violate their contract", expected-clean, expected)
	default:
		res.Status = models.GateFail
		res.Notes = fmt.Sprintf("only %d of %d outputs are clean", clean, expected)
	}
	return res
}
