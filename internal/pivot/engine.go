package pivot

import (
	"fmt"
	"os"
	"time"

	"meridian/internal/docstore"
	"meridian/internal/runfs"
	"meridian/internal/schema"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// Rule names for the decision ladder. The ladder is evaluated top to
// bottom; the first satisfied rule wins.
const (
	RuleP0             = "Wave2Required.P0"
	RuleP1Pair         = "Wave2Required.P1Pair"
	RuleVolume         = "Wave2Required.Volume"
	RuleNoGaps         = "Wave2Skip.NoGaps"
	RuleBelowThreshold = "Wave2Skip.BelowThreshold"
)

// Decision is the computed pivot outcome before persistence.
type Decision struct {
	Wave2Required  bool     `json:"wave2_required"`
	RuleHit        string   `json:"rule_hit"`
	Explanation    string   `json:"explanation"`
	SelectedGapIDs []string `json:"selected_gap_ids,omitempty"`
}

// Decide applies the rule ladder to a ranked gap list. Pure and
// deterministic: the same gaps always produce the same decision.
func Decide(gaps []models.Gap) Decision {
	counts := map[models.GapPriority]int{}
	for _, g := range gaps {
		counts[g.Priority]++
	}
	total := len(gaps)

	switch {
	case counts[models.GapP0] >= 1:
		return Decision{
			Wave2Required:  true,
			RuleHit:        RuleP0,
			Explanation:    fmt.Sprintf("%d P0 gap(s) demand a second wave.", counts[models.GapP0]),
			SelectedGapIDs: selectGaps(gaps),
		}
	case counts[models.GapP1] >= 2:
		return Decision{
			Wave2Required:  true,
			RuleHit:        RuleP1Pair,
			Explanation:    fmt.Sprintf("%d P1 gaps together demand a second wave.", counts[models.GapP1]),
			SelectedGapIDs: selectGaps(gaps),
		}
	case total >= 4 && counts[models.GapP1]+counts[models.GapP2] >= 3:
		return Decision{
			Wave2Required: true,
			RuleHit:       RuleVolume,
			Explanation: fmt.Sprintf("%d gaps with %d at P1/P2 demand a second wave.",
				total, counts[models.GapP1]+counts[models.GapP2]),
			SelectedGapIDs: selectGaps(gaps),
		}
	case total == 0:
		return Decision{
			RuleHit:     RuleNoGaps,
			Explanation: "Wave 1 left no gaps; a second wave would add nothing.",
		}
	default:
		return Decision{
			RuleHit: RuleBelowThreshold,
			Explanation: fmt.Sprintf("%d gap(s) below every trigger threshold; skipping wave 2.",
				total),
		}
	}
}

// selectGaps picks the gap ids wave 2 must address: all P0/P1 gaps, or the
// first three ranked gaps when no gap reaches P1.
func selectGaps(gaps []models.Gap) []string {
	var ids []string
	for _, g := range gaps {
		if g.Priority == models.GapP0 || g.Priority == models.GapP1 {
			ids = append(ids, g.ID)
		}
	}
	if len(ids) > 0 {
		return ids
	}
	for i, g := range gaps {
		if i == 3 {
			break
		}
		ids = append(ids, g.ID)
	}
	return ids
}

// InputsDigest hashes everything the decision was derived from: each
// wave-1 output's bytes in perspective order, then the ranked gap list.
// A missing output contributes nothing rather than aborting; collection
// already failed loudly if an output was required.
func InputsDigest(layout runfs.Layout, perspectives []models.Perspective, gaps []models.Gap) string {
	inputs := make([]any, 0, len(perspectives)+1)
	for _, p := range perspectives {
		data, err := os.ReadFile(layout.WaveOutput(1, p.ID))
		if err != nil {
			continue
		}
		inputs = append(inputs, data)
	}
	inputs = append(inputs, gaps)
	return docstore.Digest(inputs...)
}

// Commit persists the pivot decision. A run has exactly one pivot
// decision; writing over an existing one is refused.
func Commit(layout runfs.Layout, runID string, gaps []models.Gap, decision Decision, inputsDigest string) (*models.PivotDoc, *reserr.Error) {
	if _, err := os.Stat(layout.Pivot()); err == nil {
		return nil, reserr.New(reserr.CodeAlreadyExistsConflict,
			"pivot decision already recorded").
			With("path", layout.Pivot())
	}
	doc := models.PivotDoc{
		SchemaVersion:  models.PivotSchemaVersion,
		RunID:          runID,
		DecidedAt:      time.Now().UTC(),
		Gaps:           gaps,
		Wave2Required:  decision.Wave2Required,
		RuleHit:        decision.RuleHit,
		Explanation:    decision.Explanation,
		SelectedGapIDs: decision.SelectedGapIDs,
		InputsDigest:   inputsDigest,
	}
	raw, derr := docstore.ToDocument(doc)
	if derr != nil {
		return nil, derr
	}
	raw["revision"] = float64(0)
	if raw["gaps"] == nil {
		raw["gaps"] = []any{}
	}
	if verr := schema.Pivot(raw); verr != nil {
		return nil, verr
	}
	if werr := docstore.WriteJSON(layout.Pivot(), raw); werr != nil {
		return nil, werr
	}
	if aerr := docstore.AppendAudit(layout.AuditLog(), docstore.AuditEvent{
		Kind:           "pivot.decide",
		RunID:          runID,
		Path:           layout.Pivot(),
		Reason:         decision.RuleHit + ": " + decision.Explanation,
		RevisionBefore: -1,
		RevisionAfter:  0,
		InputsDigest:   inputsDigest,
		At:             time.Now().UTC(),
	}); aerr != nil {
		return nil, aerr
	}
	return &doc, nil
}

// Read loads and validates the pivot decision.
func Read(layout runfs.Layout) (*models.PivotDoc, *reserr.Error) {
	raw, rerr := docstore.ReadDocument(layout.Pivot())
	if rerr != nil {
		return nil, rerr
	}
	if verr := schema.Pivot(raw); verr != nil {
		return nil, verr
	}
	var doc models.PivotDoc
	if ferr := docstore.FromDocument(raw, &doc); ferr != nil {
		return nil, ferr
	}
	return &doc, nil
}
