package citations

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"meridian/internal/docstore"
	"meridian/internal/schema"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// WriteArtifacts materializes every citations/ artifact from an outcome:
// extracted-urls.txt, normalized-urls.txt, url-map.json, found-by.json,
// citations.jsonl and the human-readable validated-citations.md. Re-running
// the pipeline rewrites the artifacts; url-map.json keeps its revision
// counter moving forward across reruns.
func (p *Pipeline) WriteArtifacts(outcome *Outcome) *reserr.Error {
	layout := p.Layout

	var extracted strings.Builder
	for _, item := range outcome.Items {
		extracted.WriteString(item.Original)
		extracted.WriteByte('\n')
	}
	if werr := docstore.WriteBytes(layout.ExtractedURLs(), []byte(extracted.String())); werr != nil {
		return werr
	}

	normalized := make([]string, 0, len(outcome.Records))
	for _, rec := range outcome.Records {
		normalized = append(normalized, rec.URL)
	}
	sort.Strings(normalized)
	if werr := docstore.WriteBytes(layout.NormalizedURLs(),
		[]byte(strings.Join(normalized, "\n")+"\n")); werr != nil {
		return werr
	}

	if werr := p.writeURLMap(outcome.Items); werr != nil {
		return werr
	}

	foundBy := map[string][]models.FoundBy{}
	for _, rec := range outcome.Records {
		foundBy[rec.CID] = rec.FoundBy
	}
	if werr := docstore.WriteJSON(layout.FoundBy(), foundBy); werr != nil {
		return werr
	}

	var jsonl strings.Builder
	for _, rec := range outcome.Records {
		raw, derr := docstore.ToDocument(rec)
		if derr != nil {
			return derr
		}
		if verr := schema.CitationRecord(raw); verr != nil {
			return verr
		}
		line, err := json.Marshal(rec)
		if err != nil {
			return reserr.Wrap(reserr.CodeWriteFailed, "marshal citation record", err)
		}
		jsonl.Write(line)
		jsonl.WriteByte('\n')
	}
	if werr := docstore.WriteBytes(layout.Citations(), []byte(jsonl.String())); werr != nil {
		return werr
	}

	if werr := docstore.WriteBytes(layout.CitationReport(),
		[]byte(renderReport(p.RunID, outcome))); werr != nil {
		return werr
	}

	return docstore.AppendAudit(layout.AuditLog(), docstore.AuditEvent{
		Kind:   "citations.validate",
		RunID:  p.RunID,
		Path:   layout.Citations(),
		Reason: fmt.Sprintf("validated %d distinct urls from %d candidates", outcome.Distinct, outcome.Extracted),
		At:     time.Now().UTC(),
	})
}

// writeURLMap writes url-map.json, carrying the revision forward when the
// document already exists.
func (p *Pipeline) writeURLMap(items []models.URLMapItem) *reserr.Error {
	revision := 0
	if existing, rerr := docstore.ReadDocument(p.Layout.URLMap()); rerr == nil {
		if prev, verr := docstore.Revision(existing); verr == nil {
			revision = prev + 1
		}
	}
	doc := models.URLMapDoc{
		SchemaVersion: models.URLMapSchemaVersion,
		RunID:         p.RunID,
		Items:         items,
		Revision:      revision,
	}
	raw, derr := docstore.ToDocument(doc)
	if derr != nil {
		return derr
	}
	if raw["items"] == nil {
		raw["items"] = []any{}
	}
	if verr := schema.URLMap(raw); verr != nil {
		return verr
	}
	return docstore.WriteJSON(p.Layout.URLMap(), raw)
}

// renderReport renders the human-readable validation report.
func renderReport(runID string, outcome *Outcome) string {
	counts := map[models.CitationStatus]int{}
	for _, rec := range outcome.Records {
		counts[rec.Status]++
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Validated citations: %s\n\n", runID)
	fmt.Fprintf(&b, "%d URLs extracted, %d distinct after normalization.\n\n",
		outcome.Extracted, outcome.Distinct)
	b.WriteString("| status | count |\n|---|---|\n")
	for _, status := range []models.CitationStatus{
		models.CitationValid, models.CitationPaywalled, models.CitationBlocked,
		models.CitationMismatch, models.CitationInvalid,
	} {
		fmt.Fprintf(&b, "| %s | %d |\n", status, counts[status])
	}
	b.WriteString("\n## Records\n\n")
	for _, rec := range outcome.Records {
		fmt.Fprintf(&b, "- `%s` %s: %s", rec.CID[:12], rec.Status, rec.URL)
		if rec.Title != "" {
			fmt.Fprintf(&b, " (%s)", rec.Title)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ReadRecords parses citations.jsonl. A malformed line fails the read.
func ReadRecords(path string) ([]models.CitationRecord, *reserr.Error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, reserr.Newf(reserr.CodeNotFound, "citations not found: %s", path)
		}
		return nil, reserr.Wrap(reserr.CodeWriteFailed, "read citations", err)
	}
	var records []models.CitationRecord
	for i, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var rec models.CitationRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, reserr.Wrap(reserr.CodeInvalidJSONL, "parse citation record", err).
				With("line", i+1)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ValidatedCIDs returns the set of cids whose records are valid.
func ValidatedCIDs(records []models.CitationRecord) map[string]bool {
	out := map[string]bool{}
	for _, rec := range records {
		if rec.Status == models.CitationValid {
			out[rec.CID] = true
		}
	}
	return out
}
