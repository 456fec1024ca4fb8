package pivot

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

func TestParseGaps(t *testing.T) {
	gaps, err := ParseGaps(`## Gaps

- (P0) no primary data on pricing #pricing #data
- (P2) EU coverage is shallow
`, "p-market")
	if err != nil {
		t.Fatalf("ParseGaps() error: %v", err)
	}
	want := []models.Gap{
		{
			ID:          "p-market-g1",
			Priority:    models.GapP0,
			Text:        "no primary data on pricing",
			Tags:        []string{"pricing", "data"},
			Perspective: "p-market",
		},
		{
			ID:          "p-market-g2",
			Priority:    models.GapP2,
			Text:        "EU coverage is shallow",
			Perspective: "p-market",
		},
	}
	if diff := cmp.Diff(want, gaps); diff != "" {
		t.Errorf("gaps mismatch (-want +gaps):\n%s", diff)
	}
}

func TestParseGaps_EmptySection(t *testing.T) {
	gaps, err := ParseGaps("## Gaps\n\n", "p-a")
	if err != nil {
		t.Fatalf("ParseGaps() error: %v", err)
	}
	if len(gaps) != 0 {
		t.Errorf("got %d gaps, want 0", len(gaps))
	}
}

func TestParseGaps_Failures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    reserr.Code
	}{
		{"no gaps section", "## Summary\n\ntext\n", reserr.CodeGapsSectionNotFound},
		{"non-bullet line", "## Gaps\n\nplain text\n", reserr.CodeGapsParseFailed},
		{"missing priority", "## Gaps\n\n- fix the pricing data\n", reserr.CodeGapsParseFailed},
		{"bad priority", "## Gaps\n\n- (P7) fix the pricing data\n", reserr.CodeGapsParseFailed},
		{"tags only", "## Gaps\n\n- (P1) #pricing\n", reserr.CodeGapsParseFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGaps(tt.content, "p-a")
			if err == nil || err.Code != tt.want {
				t.Fatalf("error = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestParseGaps_ReportsLineNumber(t *testing.T) {
	_, err := ParseGaps("## Gaps\n\n- (P1) fine #ok\nbroken line\n", "p-a")
	if err == nil {
		t.Fatal("expected parse failure")
	}
	if err.Details["line"] != 4 {
		t.Errorf("line = %v, want 4", err.Details["line"])
	}
}

func TestCollectExplicit_DedupAndValidate(t *testing.T) {
	gaps, err := CollectExplicit([]models.Gap{
		{ID: "g-1", Priority: models.GapP2},
		{ID: "g-1", Priority: models.GapP2},
		{ID: "g-2", Priority: models.GapP0},
	})
	if err != nil {
		t.Fatalf("CollectExplicit() error: %v", err)
	}
	if len(gaps) != 2 {
		t.Fatalf("got %d gaps, want 2 after dedup", len(gaps))
	}
	if gaps[0].ID != "g-2" {
		t.Errorf("first gap = %s, want P0 gap g-2 ranked first", gaps[0].ID)
	}

	_, err = CollectExplicit([]models.Gap{{ID: "g-1", Priority: "P9"}})
	if err == nil || err.Code != reserr.CodeInvalidArgs {
		t.Fatalf("error = %v, want INVALID_ARGS", err)
	}
}

func TestRank_StableWithinPriority(t *testing.T) {
	ranked := Rank([]models.Gap{
		{ID: "b", Priority: models.GapP1},
		{ID: "a", Priority: models.GapP1},
		{ID: "c", Priority: models.GapP0},
	})
	got := []string{ranked[0].ID, ranked[1].ID, ranked[2].ID}
	want := []string{"c", "a", "b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rank order mismatch (-want +got):\n%s", diff)
	}
}
