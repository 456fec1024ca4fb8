// Package review ingests reviewer bundles and drives revision control.
package review

import (
	"fmt"
	"time"

	"meridian/internal/docstore"
	"meridian/internal/runfs"
	"meridian/internal/schema"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// Ingest validates a reviewer bundle and persists it as review-bundle.json.
// The bundle's iteration must be the next one for the run; re-submitting the
// same iteration is a conflict so a stale reviewer cannot clobber a newer
// bundle.
func Ingest(layout runfs.Layout, runID string, bundle models.ReviewBundle) *reserr.Error {
	if !bundle.Decision.Valid() {
		return reserr.Newf(reserr.CodeInvalidArgs, "unknown review decision %q", bundle.Decision)
	}
	if len(bundle.Findings) > models.MaxReviewEntries {
		return reserr.Newf(reserr.CodeInvalidArgs,
			"too many findings: %d, cap is %d", len(bundle.Findings), models.MaxReviewEntries).
			With("findings", len(bundle.Findings))
	}
	if len(bundle.Directives) > models.MaxReviewEntries {
		return reserr.Newf(reserr.CodeInvalidArgs,
			"too many directives: %d, cap is %d", len(bundle.Directives), models.MaxReviewEntries).
			With("directives", len(bundle.Directives))
	}
	if bundle.Iteration < 1 {
		return reserr.New(reserr.CodeInvalidArgs, "iteration must be at least 1")
	}

	if prev, rerr := Read(layout); rerr == nil && bundle.Iteration <= prev.Iteration {
		return reserr.Newf(reserr.CodeAlreadyExistsConflict,
			"iteration %d already reviewed", bundle.Iteration).
			With("iteration", bundle.Iteration).
			With("latest", prev.Iteration)
	}

	bundle.SchemaVersion = models.ReviewSchemaVersion
	bundle.RunID = runID
	if bundle.CreatedAt.IsZero() {
		bundle.CreatedAt = time.Now().UTC()
	}
	if bundle.Findings == nil {
		bundle.Findings = []models.Finding{}
	}
	if bundle.Directives == nil {
		bundle.Directives = []models.Directive{}
	}

	raw, derr := docstore.ToDocument(bundle)
	if derr != nil {
		return derr
	}
	if verr := schema.ReviewBundle(raw); verr != nil {
		return verr
	}
	if werr := docstore.WriteJSON(layout.ReviewBundle(), raw); werr != nil {
		return werr
	}

	return docstore.AppendAudit(layout.AuditLog(), docstore.AuditEvent{
		Kind:   "review.ingest",
		RunID:  runID,
		Path:   layout.ReviewBundle(),
		Reason: fmt.Sprintf("iteration %d: %s", bundle.Iteration, bundle.Decision),
		At:     time.Now().UTC(),
	})
}

// Read loads and validates the latest review bundle.
func Read(layout runfs.Layout) (*models.ReviewBundle, *reserr.Error) {
	raw, rerr := docstore.ReadDocument(layout.ReviewBundle())
	if rerr != nil {
		return nil, rerr
	}
	if verr := schema.ReviewBundle(raw); verr != nil {
		return nil, verr
	}
	var bundle models.ReviewBundle
	if derr := docstore.FromDocument(raw, &bundle); derr != nil {
		return nil, derr
	}
	return &bundle, nil
}
