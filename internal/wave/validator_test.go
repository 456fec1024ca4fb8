package wave

import (
	"os"
	"testing"

	"meridian/internal/runfs"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

func contractPerspective(id string, maxWords, maxSources int) models.Perspective {
	return models.Perspective{
		ID:    id,
		Track: "policy",
		Focus: "test focus",
		Contract: models.PromptContract{
			MaxWords:         maxWords,
			MaxSources:       maxSources,
			RequiredSections: []string{"Summary", "Sources", "Gaps"},
		},
	}
}

func writeWaveOutput(t *testing.T, layout runfs.Layout, wave int, id, content string) {
	t.Helper()
	if err := os.WriteFile(layout.WaveOutput(wave, id), []byte(content), 0o644); err != nil {
		t.Fatalf("writing wave output: %v", err)
	}
}

const cleanOutput = `# Report

## Summary

Short summary of findings.

## Sources

- https://example.com/a
- https://example.org/b

## Gaps

- (P1) coverage of EU rules is thin #regulation
`

func TestValidateOutput_Clean(t *testing.T) {
	layout := testLayout(t)
	writeWaveOutput(t, layout, 1, "p-a", cleanOutput)

	report, err := ValidateOutput(layout, contractPerspective("p-a", 500, 5), 1)
	if err != nil {
		t.Fatalf("ValidateOutput() error: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("report not clean: %+v", report.Violations)
	}
	if report.SourceCount != 2 {
		t.Errorf("SourceCount = %d, want 2", report.SourceCount)
	}
}

func TestValidateOutput_MissingFile(t *testing.T) {
	layout := testLayout(t)
	report, err := ValidateOutput(layout, contractPerspective("p-a", 500, 5), 1)
	if err != nil {
		t.Fatalf("ValidateOutput() error: %v", err)
	}
	if report.Produced {
		t.Error("Produced = true for a missing file")
	}
	if report.Clean() {
		t.Error("a missing output must not be clean")
	}
}

func TestValidateOutput_Violations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		p       models.Perspective
		want    reserr.Code
	}{
		{
			name:    "too many words",
			content: cleanOutput,
			p:       contractPerspective("p-a", 3, 5),
			want:    reserr.CodeTooManyWords,
		},
		{
			name:    "missing section",
			content: "## Summary\n\ntext\n\n## Sources\n\n- https://example.com/a\n",
			p:       contractPerspective("p-a", 500, 5),
			want:    reserr.CodeMissingRequiredSection,
		},
		{
			name:    "too many sources",
			content: cleanOutput,
			p:       contractPerspective("p-a", 500, 1),
			want:    reserr.CodeTooManySources,
		},
		{
			name: "non-bullet source line",
			content: `## Summary

text

## Sources

see https://example.com/a

## Gaps
`,
			p:    contractPerspective("p-a", 500, 5),
			want: reserr.CodeMalformedSources,
		},
		{
			name: "bullet without url",
			content: `## Summary

text

## Sources

- the example homepage

## Gaps
`,
			p:    contractPerspective("p-a", 500, 5),
			want: reserr.CodeMalformedSources,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout := testLayout(t)
			writeWaveOutput(t, layout, 1, tt.p.ID, tt.content)
			report, err := ValidateOutput(layout, tt.p, 1)
			if err != nil {
				t.Fatalf("ValidateOutput() error: %v", err)
			}
			for _, v := range report.Violations {
				if v.Code == tt.want {
					return
				}
			}
			t.Errorf("violations %+v missing code %s", report.Violations, tt.want)
		})
	}
}

func TestGateB_Thresholds(t *testing.T) {
	clean := &Report{PerspectiveID: "p-a", Produced: true}
	dirty := &Report{PerspectiveID: "p-b", Produced: true, Violations: []Violation{{Code: reserr.CodeTooManyWords, Message: "over budget"}}}
	missing := &Report{PerspectiveID: "p-c"}

	tests := []struct {
		name    string
		reports []*Report
		want    models.GateStatus
	}{
		{"all clean", []*Report{clean, clean}, models.GatePass},
		{"half clean", []*Report{clean, dirty}, models.GateWarn},
		{"mostly broken", []*Report{clean, dirty, missing, missing}, models.GateFail},
		{"empty wave", nil, models.GateFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := GateB(tt.reports)
			if res.Status != tt.want {
				t.Errorf("status = %s, want %s", res.Status, tt.want)
			}
		})
	}
}

func TestGateB_WarningsNameThePerspective(t *testing.T) {
	res := GateB([]*Report{
		{PerspectiveID: "p-a", Produced: true},
		{PerspectiveID: "p-b"},
	})
	if len(res.Warnings) == 0 {
		t.Fatal("expected a warning for the missing output")
	}
	if res.Warnings[0] != "p-b: no output produced" {
		t.Errorf("warning = %q", res.Warnings[0])
	}
}
