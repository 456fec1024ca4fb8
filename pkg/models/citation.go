package models

// URLMapSchemaVersion is the current url-map document schema.
const URLMapSchemaVersion = "1"

// CitationStatus classifies a validated citation URL.
type CitationStatus string

const (
	// CitationValid means the URL resolved and matched expectations.
	CitationValid CitationStatus = "valid"
	// CitationPaywalled means the URL resolved behind a paywall.
	CitationPaywalled CitationStatus = "paywalled"
	// CitationBlocked means fetching was refused (robots, 403, or the
	// online stub deferring to a real fetcher).
	CitationBlocked CitationStatus = "blocked"
	// CitationMismatch means content did not match the citing claim.
	CitationMismatch CitationStatus = "mismatch"
	// CitationInvalid means the URL is unusable as evidence.
	CitationInvalid CitationStatus = "invalid"
)

// Valid returns true if the status is a known value.
func (s CitationStatus) Valid() bool {
	switch s {
	case CitationValid, CitationPaywalled, CitationBlocked, CitationMismatch, CitationInvalid:
		return true
	default:
		return false
	}
}

// URLMapItem links one original URL to its canonical form and content id.
// Many originals can map to one normalized URL.
type URLMapItem struct {
	// Original is the URL exactly as extracted (after redaction).
	Original string `json:"original"`
	// Normalized is the canonical form.
	Normalized string `json:"normalized"`
	// CID is the content id derived from the normalized URL.
	CID string `json:"cid"`
}

// URLMapDoc is the persisted url-map document.
type URLMapDoc struct {
	SchemaVersion string       `json:"schema_version"`
	RunID         string       `json:"run_id"`
	Items         []URLMapItem `json:"items"`
	Revision      int          `json:"revision"`
}

// FoundBy records where a URL was cited.
type FoundBy struct {
	// Wave is 1 or 2.
	Wave int `json:"wave"`
	// Perspective is the perspective id whose output cited the URL.
	Perspective string `json:"perspective"`
	// Line is the 1-based line number in the wave markdown.
	Line int `json:"line"`
}

// CitationRecord is one validated citation, one per unique normalized URL.
// Credentials and sensitive query parameters are stripped before any field
// is persisted.
type CitationRecord struct {
	SchemaVersion string `json:"schema_version"`
	// CID is the content id.
	CID string `json:"cid"`
	// URL is the redacted normalized URL.
	URL string `json:"url"`
	// Status is the validation outcome.
	Status CitationStatus `json:"status"`
	// HTTPStatus is the observed status code, when known.
	HTTPStatus int `json:"http_status,omitempty"`
	// Title is the page title, when known.
	Title string `json:"title,omitempty"`
	// Publisher is the publishing site or organization, when known.
	Publisher string `json:"publisher,omitempty"`
	// FoundBy lists every wave/perspective/line that cited the URL.
	FoundBy []FoundBy `json:"found_by"`
	// Redacted is true when credentials or sensitive params were stripped.
	Redacted bool `json:"redacted,omitempty"`
}
