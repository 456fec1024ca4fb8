// Package pivot collects post-wave-1 gaps and decides whether a second
// research wave is warranted. Gaps arrive either explicitly or parsed from
// the required "Gaps" section of each wave-1 output; the decision itself is
// a deterministic rule ladder over priority counts.
package pivot

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"meridian/internal/mdscan"
	"meridian/internal/runfs"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// gapBullet matches "(P0..P3) <text>" after the bullet dash. Tags trail
// the text as "#tag" words.
var gapBullet = regexp.MustCompile(`^\((P[0-3])\)\s+(.+)$`)

// ParseGaps extracts the gap list from one wave-1 markdown file. A missing
// Gaps section or a malformed bullet is a hard failure: silently dropping a
// gap would corrupt the pivot decision.
func ParseGaps(content, perspectiveID string) ([]models.Gap, *reserr.Error) {
	lines := mdscan.Lines(content)
	body, start, ok := mdscan.Section(lines, "Gaps")
	if !ok {
		return nil, reserr.Newf(reserr.CodeGapsSectionNotFound,
			"output of %s has no Gaps section", perspectiveID).
			With("perspective", perspectiveID)
	}

	var gaps []models.Gap
	seq := 0
	for i, line := range body {
		lineNo := start + i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "- ") {
			return nil, reserr.Newf(reserr.CodeGapsParseFailed,
				"line %d of %s Gaps section is not a bullet", lineNo, perspectiveID).
				With("perspective", perspectiveID).
				With("line", lineNo)
		}
		m := gapBullet.FindStringSubmatch(strings.TrimPrefix(trimmed, "- "))
		if m == nil {
			return nil, reserr.Newf(reserr.CodeGapsParseFailed,
				"line %d of %s does not match '- (P0..P3) <text> #tag...'", lineNo, perspectiveID).
				With("perspective", perspectiveID).
				With("line", lineNo)
		}
		seq++
		text, tags := splitTags(m[2])
		if text == "" {
			return nil, reserr.Newf(reserr.CodeGapsParseFailed,
				"line %d of %s has an empty gap description", lineNo, perspectiveID).
				With("perspective", perspectiveID).
				With("line", lineNo)
		}
		gaps = append(gaps, models.Gap{
			ID:          fmt.Sprintf("%s-g%d", perspectiveID, seq),
			Priority:    models.GapPriority(m[1]),
			Text:        text,
			Tags:        tags,
			Perspective: perspectiveID,
		})
	}
	return gaps, nil
}

// splitTags separates trailing #tag words from the gap text.
func splitTags(s string) (string, []string) {
	fields := strings.Fields(s)
	var tags []string
	end := len(fields)
	for end > 0 && strings.HasPrefix(fields[end-1], "#") {
		tag := strings.TrimPrefix(fields[end-1], "#")
		if tag != "" {
			tags = append([]string{tag}, tags...)
		}
		end--
	}
	return strings.Join(fields[:end], " "), tags
}

// CollectFromWave parses gaps from every wave-1 output of the given
// perspectives. All files must parse; the first failure aborts.
func CollectFromWave(layout runfs.Layout, perspectives []models.Perspective) ([]models.Gap, *reserr.Error) {
	var all []models.Gap
	for _, p := range perspectives {
		path := layout.WaveOutput(1, p.ID)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, reserr.Newf(reserr.CodeOutputNotFound,
					"wave-1 output for %s not found", p.ID).
					With("perspective", p.ID).
					With("path", path)
			}
			return nil, reserr.Wrap(reserr.CodeWriteFailed, "read wave output", err)
		}
		gaps, perr := ParseGaps(string(data), p.ID)
		if perr != nil {
			return nil, perr
		}
		all = append(all, gaps...)
	}
	return Rank(all), nil
}

// CollectExplicit validates an explicitly supplied gap list, deduplicating
// by gap id (first occurrence wins).
func CollectExplicit(gaps []models.Gap) ([]models.Gap, *reserr.Error) {
	seen := map[string]bool{}
	var out []models.Gap
	for i, g := range gaps {
		if g.ID == "" {
			return nil, reserr.Newf(reserr.CodeInvalidArgs, "gap %d has no id", i)
		}
		if !g.Priority.Valid() {
			return nil, reserr.Newf(reserr.CodeInvalidArgs,
				"gap %s has invalid priority %q", g.ID, g.Priority).
				With("gap_id", g.ID)
		}
		if seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		out = append(out, g)
	}
	return Rank(out), nil
}

// Rank sorts gaps by priority then id.
func Rank(gaps []models.Gap) []models.Gap {
	sorted := make([]models.Gap, len(gaps))
	copy(sorted, gaps)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority.Rank() != sorted[j].Priority.Rank() {
			return sorted[i].Priority.Rank() < sorted[j].Priority.Rank()
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
