package citations

import (
	"os"
	"sort"

	"meridian/internal/mdscan"
	"meridian/internal/runfs"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// Candidate is one extracted URL with its provenance.
type Candidate struct {
	// URL is the raw extracted URL.
	URL string `json:"url"`
	// FoundBy records the wave, perspective and line it came from.
	FoundBy models.FoundBy `json:"found_by"`
}

// Extract scans the Sources sections of each wave's outputs for absolute
// http(s) URLs. Wave 2 files are included only when includeWave2 is set.
// Files without a Sources section contribute nothing; extraction is not
// where contracts are enforced.
func Extract(layout runfs.Layout, perspectives []models.Perspective, includeWave2 bool) ([]Candidate, *reserr.Error) {
	waves := []int{1}
	if includeWave2 {
		waves = append(waves, 2)
	}
	var candidates []Candidate
	for _, waveNum := range waves {
		for _, p := range perspectives {
			path := layout.WaveOutput(waveNum, p.ID)
			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return nil, reserr.Wrap(reserr.CodeWriteFailed, "read wave output", err)
			}
			lines := mdscan.Lines(string(data))
			body, start, ok := mdscan.Section(lines, "Sources")
			if !ok {
				continue
			}
			for i, line := range body {
				for _, u := range mdscan.URLs(line) {
					candidates = append(candidates, Candidate{
						URL: u,
						FoundBy: models.FoundBy{
							Wave:        waveNum,
							Perspective: p.ID,
							Line:        start + i + 1,
						},
					})
				}
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].FoundBy, candidates[j].FoundBy
		if a.Wave != b.Wave {
			return a.Wave < b.Wave
		}
		if a.Perspective != b.Perspective {
			return a.Perspective < b.Perspective
		}
		return a.Line < b.Line
	})
	return candidates, nil
}
