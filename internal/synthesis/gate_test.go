package synthesis

import (
	"os"
	"path/filepath"
	"testing"

	"meridian/internal/runfs"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

func writeSynthesis(t *testing.T, content string) runfs.Layout {
	t.Helper()
	layout := runfs.New(filepath.Join(t.TempDir(), "run-syn"))
	for _, dir := range layout.Dirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(layout.FinalSynthesis(), []byte(content), 0o644); err != nil {
		t.Fatalf("writing synthesis: %v", err)
	}
	return layout
}

const goodSynthesis = `# Synthesis

## Summary

The market is consolidating.

## Key Findings

Revenue grew 14% year over year [@cid_aaa].

## Evidence

Three of four vendors raised prices in 2025 [@cid_bbb].

## Caveats

Private company figures are estimates.
`

var twoCIDs = map[string]bool{"cid_aaa": true, "cid_bbb": true}

func TestGateE_Pass(t *testing.T) {
	layout := writeSynthesis(t, goodSynthesis)
	res := GateE(layout, twoCIDs)
	if res.Status != models.GatePass {
		t.Fatalf("status = %s, want pass (notes %q, warnings %v)", res.Status, res.Notes, res.Warnings)
	}
	if res.Metrics["distinct_cids_cited"] != 2 {
		t.Errorf("distinct_cids_cited = %v, want 2", res.Metrics["distinct_cids_cited"])
	}
}

func TestGateE_MissingFile(t *testing.T) {
	layout := runfs.New(filepath.Join(t.TempDir(), "run-syn"))
	res := GateE(layout, twoCIDs)
	if res.Status != models.GateFail {
		t.Fatalf("status = %s, want fail", res.Status)
	}
	if res.FailureCode != reserr.CodeMissingArtifact {
		t.Errorf("failure code = %s, want MISSING_ARTIFACT", res.FailureCode)
	}
}

func TestGateE_MissingSection(t *testing.T) {
	layout := writeSynthesis(t, `## Summary

text

## Key Findings

text [@cid_aaa]

## Evidence

text [@cid_bbb]
`)
	res := GateE(layout, twoCIDs)
	if res.Status != models.GateFail {
		t.Fatalf("status = %s, want fail", res.Status)
	}
	if res.FailureCode != reserr.CodeMissingRequiredSection {
		t.Errorf("failure code = %s", res.FailureCode)
	}
	if res.Metrics["missing_sections"] != 1 {
		t.Errorf("missing_sections = %v, want 1 (Caveats)", res.Metrics["missing_sections"])
	}
}

func TestGateE_UncitedNumericClaim(t *testing.T) {
	layout := writeSynthesis(t, `## Summary

Margins fell to 8% across the segment.

## Key Findings

text [@cid_aaa]

## Evidence

text [@cid_bbb]

## Caveats

none
`)
	res := GateE(layout, twoCIDs)
	if res.Status != models.GateFail {
		t.Fatalf("status = %s, want fail", res.Status)
	}
	if res.Metrics["uncited_numeric_claims"] != 1 {
		t.Errorf("uncited_numeric_claims = %v, want 1", res.Metrics["uncited_numeric_claims"])
	}
}

func TestGateE_NextLineCitationCounts(t *testing.T) {
	layout := writeSynthesis(t, `## Summary

Margins fell to 8% across the segment.

[@cid_aaa]

## Key Findings

text [@cid_bbb]

## Evidence

text [@cid_aaa]

## Caveats

none
`)
	res := GateE(layout, twoCIDs)
	if res.Status != models.GatePass {
		t.Fatalf("status = %s, want pass with next-line citation", res.Status)
	}
}

func TestGateE_LowUtilizationWarns(t *testing.T) {
	layout := writeSynthesis(t, goodSynthesis)
	pool := map[string]bool{
		"cid_aaa": true, "cid_bbb": true, "cid_ccc": true,
		"cid_ddd": true, "cid_eee": true,
	}
	res := GateE(layout, pool)
	if res.Status != models.GateWarn {
		t.Fatalf("status = %s, want warn at 2/5 utilization", res.Status)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a utilization warning")
	}
}

func TestGateE_HighDuplicationWarns(t *testing.T) {
	layout := writeSynthesis(t, `## Summary

text [@cid_aaa] [@cid_aaa] [@cid_aaa]

## Key Findings

text [@cid_aaa]

## Evidence

text [@cid_aaa]

## Caveats

none
`)
	res := GateE(layout, map[string]bool{"cid_aaa": true})
	if res.Status != models.GateWarn {
		t.Fatalf("status = %s, want warn at high duplication", res.Status)
	}
}
