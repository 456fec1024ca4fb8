package citations

import (
	"meridian/internal/gatekeeper"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// Gate C thresholds over distinct normalized URLs.
const (
	gateCMinValidated   = 0.90
	gateCMaxInvalidRate = 0.10
)

// GateC evaluates citation validation health. Validated means the record
// carries any terminal status other than invalid; uncategorized means a
// distinct extracted URL has no record at all. Zero extracted URLs fails
// outright.
func GateC(normalizedURLs []string, records []models.CitationRecord) gatekeeper.Result {
	distinct := map[string]bool{}
	for _, u := range normalizedURLs {
		distinct[u] = true
	}
	if len(distinct) == 0 {
		return gatekeeper.Result{
			Status:      models.GateFail,
			FailureCode: reserr.CodeNoURLsExtracted,
			Notes:       "no URLs extracted from wave outputs",
			Metrics: map[string]float64{
				"distinct": 0,
			},
		}
	}

	byURL := map[string]models.CitationRecord{}
	for _, rec := range records {
		byURL[rec.URL] = rec
	}

	var validated, invalid, uncategorized int
	for u := range distinct {
		rec, ok := byURL[u]
		if !ok {
			uncategorized++
			continue
		}
		if rec.Status == models.CitationInvalid {
			invalid++
		} else {
			validated++
		}
	}

	total := float64(len(distinct))
	validatedRate := float64(validated) / total
	invalidRate := float64(invalid) / total
	uncategorizedRate := float64(uncategorized) / total

	status := models.GatePass
	if validatedRate < gateCMinValidated || invalidRate > gateCMaxInvalidRate || uncategorized > 0 {
		status = models.GateFail
	}

	return gatekeeper.Result{
		Status: status,
		Metrics: map[string]float64{
			"distinct":           total,
			"validated":          float64(validated),
			"invalid":            float64(invalid),
			"uncategorized":      float64(uncategorized),
			"validated_rate":     validatedRate,
			"invalid_rate":       invalidRate,
			"uncategorized_rate": uncategorizedRate,
		},
		EvaluatedArtifacts: []string{"citations/citations.jsonl", "citations/normalized-urls.txt"},
	}
}
