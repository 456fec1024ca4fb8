package citations

import (
	"fmt"
	"net/url"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"meridian/internal/runfs"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// Fixture supplies offline validation results for one normalized URL.
type Fixture struct {
	Status     models.CitationStatus `yaml:"status"`
	HTTPStatus int                   `yaml:"http_status"`
	Title      string                `yaml:"title"`
	Publisher  string                `yaml:"publisher"`
}

// LoadFixtures reads an offline fixture table: a yaml map from normalized
// URL to fixture.
func LoadFixtures(path string) (map[string]Fixture, *reserr.Error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, reserr.Newf(reserr.CodeNotFound, "fixture table not found: %s", path)
		}
		return nil, reserr.Wrap(reserr.CodeWriteFailed, "read fixture table", err)
	}
	fixtures := map[string]Fixture{}
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, reserr.Wrap(reserr.CodeInvalidArgs, "parse fixture table", err)
	}
	for u, f := range fixtures {
		if !f.Status.Valid() {
			return nil, reserr.Newf(reserr.CodeInvalidArgs,
				"fixture for %s has unknown status %q", u, f.Status).With("url", u)
		}
	}
	return fixtures, nil
}

// Pipeline validates extracted candidates and materializes the citations
// artifacts.
type Pipeline struct {
	Layout runfs.Layout
	RunID  string
	// Offline selects fixture-backed validation.
	Offline bool
	// Tier is the online classification scheme: fetch, progressive or
	// browser. The online path is a stub pending real fetch wiring; the
	// tier is recorded so a future fetcher knows what was promised.
	Tier string
	// StripAllParams drops every query parameter from persisted URLs
	// (restricted sensitivity).
	StripAllParams bool
	// Fixtures backs offline validation, keyed by normalized URL.
	Fixtures map[string]Fixture
}

// Outcome is the pipeline's in-memory result.
type Outcome struct {
	// Items maps each original URL to its canonical form and cid.
	Items []models.URLMapItem
	// Records holds one citation record per distinct normalized URL.
	Records []models.CitationRecord
	// Extracted counts raw candidates; Distinct counts normalized URLs.
	Extracted int
	Distinct  int
}

// Run normalizes, deduplicates and validates the candidates.
func (p *Pipeline) Run(candidates []Candidate) (*Outcome, *reserr.Error) {
	type entry struct {
		record models.CitationRecord
		order  int
		// cleanSeen is set once any variant arrives without embedded
		// credentials; credential taint is per source URL, and a clean
		// sighting of the same canonical URL still validates.
		cleanSeen bool
	}
	byNormalized := map[string]*entry{}
	var items []models.URLMapItem

	for _, c := range candidates {
		persisted, wasRedacted := Redact(c.URL, p.StripAllParams)
		hadCredentials := HasCredentials(c.URL)

		normalized, nerr := Normalize(persisted)
		if nerr != nil {
			// Unparsable or non-http(s): keep a deterministic invalid
			// record keyed on the redacted original.
			normalized = persisted
		}
		cid := CID(normalized)
		items = append(items, models.URLMapItem{
			Original:   persisted,
			Normalized: normalized,
			CID:        cid,
		})

		e, ok := byNormalized[normalized]
		if !ok {
			e = &entry{
				order: len(byNormalized),
				record: models.CitationRecord{
					SchemaVersion: models.URLMapSchemaVersion,
					CID:           cid,
					URL:           normalized,
					Redacted:      wasRedacted || hadCredentials,
				},
			}
			byNormalized[normalized] = e
		}
		if wasRedacted || hadCredentials {
			e.record.Redacted = true
		}
		if !hadCredentials {
			e.cleanSeen = true
		}
		e.record.FoundBy = append(e.record.FoundBy, c.FoundBy)

		if nerr != nil {
			e.record.Status = models.CitationInvalid
		}
	}

	entries := make([]*entry, 0, len(byNormalized))
	for _, e := range byNormalized {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	for _, e := range entries {
		if e.record.Status != "" {
			continue // unparsable, already invalid
		}
		if !e.cleanSeen {
			// Every sighting embedded credentials; the URL is never
			// fetched and never valid.
			e.record.Status = models.CitationInvalid
			continue
		}
		if p.Offline {
			p.applyFixture(&e.record)
		} else {
			p.classifyOnline(&e.record)
		}
	}

	outcome := &Outcome{
		Items:     items,
		Extracted: len(candidates),
		Distinct:  len(entries),
	}
	for _, e := range entries {
		outcome.Records = append(outcome.Records, e.record)
	}
	return outcome, nil
}

// applyFixture resolves a record against the offline fixture table. A
// normalized URL with no fixture is invalid: offline runs must declare
// their world completely.
func (p *Pipeline) applyFixture(rec *models.CitationRecord) {
	f, ok := p.Fixtures[rec.URL]
	if !ok {
		rec.Status = models.CitationInvalid
		return
	}
	rec.Status = f.Status
	rec.HTTPStatus = f.HTTPStatus
	rec.Title = f.Title
	rec.Publisher = f.Publisher
}

// classifyOnline is the online validation stub. Real fetching
// (fetch -> progressive scrape -> browser render, selected by Tier) is an
// extension point; until it is wired, private and local hosts are invalid
// and everything else is blocked pending a real fetch.
func (p *Pipeline) classifyOnline(rec *models.CitationRecord) {
	u, err := url.Parse(rec.URL)
	if err != nil || privateHost(u.Hostname()) {
		rec.Status = models.CitationInvalid
		return
	}
	rec.Status = models.CitationBlocked
	rec.Title = fmt.Sprintf("pending %s validation", p.Tier)
}
