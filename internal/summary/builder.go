// Package summary assembles the bounded per-perspective summary pack and
// evaluates gate D. Summaries may only cite validated citation ids; no raw
// URL survives into the pack.
package summary

import (
	"fmt"
	"sort"
	"time"

	"meridian/internal/docstore"
	"meridian/internal/mdscan"
	"meridian/internal/runfs"
	"meridian/internal/schema"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// Builder stages summaries in memory and commits them only after every
// per-file and aggregate check passes. A failed Add or Commit leaves the
// summaries directory untouched.
type Builder struct {
	Layout runfs.Layout
	RunID  string

	// FileCapKB bounds each summary file.
	FileCapKB int
	// TotalCapKB bounds the whole pack.
	TotalCapKB int
	// ValidCIDs is the validated citation pool.
	ValidCIDs map[string]bool

	staged map[string]stagedSummary
}

type stagedSummary struct {
	content []byte
	cids    []string
}

// Add validates one perspective's summary markdown and stages it. The file
// cap, raw-URL rule, and known-cid rule are all enforced here so a bad
// summary is rejected before anything touches disk.
func (b *Builder) Add(perspectiveID string, content []byte) *reserr.Error {
	if perspectiveID == "" {
		return reserr.New(reserr.CodeInvalidArgs, "perspective id is required")
	}
	if b.staged == nil {
		b.staged = map[string]stagedSummary{}
	}
	if _, dup := b.staged[perspectiveID]; dup {
		return reserr.Newf(reserr.CodeAlreadyExistsConflict,
			"summary already staged for %s", perspectiveID)
	}

	capBytes := b.FileCapKB * 1024
	if len(content) > capBytes {
		return reserr.Newf(reserr.CodeSizeCapExceeded,
			"summary for %s is %d bytes, cap is %d", perspectiveID, len(content), capBytes).
			With("perspective", perspectiveID).
			With("size_bytes", len(content)).
			With("cap_bytes", capBytes)
	}

	seen := map[string]bool{}
	var cids []string
	for i, line := range mdscan.Lines(string(content)) {
		if urls := mdscan.URLs(line); len(urls) > 0 {
			return reserr.Newf(reserr.CodeRawURLNotAllowed,
				"summary for %s contains a raw URL on line %d", perspectiveID, i+1).
				With("perspective", perspectiveID).
				With("line", i+1)
		}
		for _, cid := range mdscan.CitationMarkers(line) {
			if !b.ValidCIDs[cid] {
				return reserr.Newf(reserr.CodeUnknownCID,
					"summary for %s cites unknown id %s on line %d", perspectiveID, cid, i+1).
					With("perspective", perspectiveID).
					With("cid", cid).
					With("line", i+1)
			}
			if !seen[cid] {
				seen[cid] = true
				cids = append(cids, cid)
			}
		}
	}
	sort.Strings(cids)

	b.staged[perspectiveID] = stagedSummary{content: content, cids: cids}
	return nil
}

// Commit checks the aggregate cap, then writes every staged summary and the
// summary pack document. Nothing is written when the aggregate cap fails.
func (b *Builder) Commit() (*models.SummaryPackDoc, *reserr.Error) {
	if len(b.staged) == 0 {
		return nil, reserr.New(reserr.CodeInvalidArgs, "no summaries staged")
	}

	ids := make([]string, 0, len(b.staged))
	total := 0
	for id, s := range b.staged {
		ids = append(ids, id)
		total += len(s.content)
	}
	sort.Strings(ids)

	totalCap := b.TotalCapKB * 1024
	if total > totalCap {
		return nil, reserr.Newf(reserr.CodeSizeCapExceeded,
			"summary pack is %d bytes, cap is %d", total, totalCap).
			With("size_bytes", total).
			With("cap_bytes", totalCap)
	}

	entries := make([]models.SummaryEntry, 0, len(ids))
	for _, id := range ids {
		s := b.staged[id]
		path := b.Layout.Summary(id)
		if werr := docstore.WriteBytes(path, s.content); werr != nil {
			return nil, werr
		}
		entries = append(entries, models.SummaryEntry{
			PerspectiveID: id,
			Path:          fmt.Sprintf("summaries/%s.md", id),
			SizeBytes:     len(s.content),
			CIDs:          s.cids,
		})
	}

	doc := models.SummaryPackDoc{
		SchemaVersion: models.SummaryPackSchemaVersion,
		RunID:         b.RunID,
		BuiltAt:       time.Now().UTC(),
		Entries:       entries,
		TotalBytes:    total,
		Revision:      0,
	}
	if existing, rerr := docstore.ReadDocument(b.Layout.SummaryPack()); rerr == nil {
		if prev, verr := docstore.Revision(existing); verr == nil {
			doc.Revision = prev + 1
		}
	}

	raw, derr := docstore.ToDocument(doc)
	if derr != nil {
		return nil, derr
	}
	if verr := schema.SummaryPack(raw); verr != nil {
		return nil, verr
	}
	if werr := docstore.WriteJSON(b.Layout.SummaryPack(), raw); werr != nil {
		return nil, werr
	}

	auditErr := docstore.AppendAudit(b.Layout.AuditLog(), docstore.AuditEvent{
		Kind:   "summaries.commit",
		RunID:  b.RunID,
		Path:   b.Layout.SummaryPack(),
		Reason: fmt.Sprintf("committed %d summaries, %d bytes", len(entries), total),
		At:     time.Now().UTC(),
	})
	if auditErr != nil {
		return nil, auditErr
	}
	return &doc, nil
}

// ReadPack loads and validates summary-pack.json.
func ReadPack(layout runfs.Layout) (*models.SummaryPackDoc, *reserr.Error) {
	raw, rerr := docstore.ReadDocument(layout.SummaryPack())
	if rerr != nil {
		return nil, rerr
	}
	if verr := schema.SummaryPack(raw); verr != nil {
		return nil, verr
	}
	var doc models.SummaryPackDoc
	if derr := docstore.FromDocument(raw, &doc); derr != nil {
		return nil, derr
	}
	return &doc, nil
}
