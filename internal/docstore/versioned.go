package docstore

import (
	"time"

	"meridian/pkg/reserr"
)

// ValidateFunc structurally validates a document after a patch merge.
type ValidateFunc func(Document) *reserr.Error

// VersionedDocument binds a document path to its schema validator, its
// immutable top-level fields and the audit log it reports to. It is the
// single write path for the manifest, gates, url-map and retry documents.
type VersionedDocument struct {
	// Path is the absolute document path.
	Path string
	// Kind names the document in audit events (e.g. "manifest").
	Kind string
	// RunID stamps audit events.
	RunID string
	// AuditLog is the absolute path of the run's audit log.
	AuditLog string
	// Immutable lists top-level keys no patch may touch.
	Immutable []string
	// Validate checks the merged document; nil means no validation.
	Validate ValidateFunc
}

// PatchRequest describes one mutation.
type PatchRequest struct {
	// Patch is the RFC 7396 merge patch to apply.
	Patch Document
	// ExpectedRevision enables the optimistic lock when non-nil.
	ExpectedRevision *int
	// Reason is recorded in the audit event. Required.
	Reason string
	// InputsDigest hashes the inputs behind the mutation, when relevant.
	InputsDigest string
}

// Patch applies a merge patch to the document with optimistic locking.
// On success the document's revision has been bumped by exactly one, the
// result re-validated and an audit event appended.
func (d *VersionedDocument) Patch(req PatchRequest) (Document, *reserr.Error) {
	if req.Reason == "" {
		return nil, reserr.New(reserr.CodeInvalidArgs, "patch reason is required")
	}
	doc, rerr := ReadDocument(d.Path)
	if rerr != nil {
		return nil, rerr
	}
	rev, rerr := Revision(doc)
	if rerr != nil {
		return nil, rerr
	}
	if req.ExpectedRevision != nil && *req.ExpectedRevision != rev {
		return nil, reserr.Newf(reserr.CodeRevisionMismatch,
			"expected revision %d but document is at %d", *req.ExpectedRevision, rev).
			With("expected_revision", *req.ExpectedRevision).
			With("actual_revision", rev)
	}
	for _, field := range d.Immutable {
		if _, touched := req.Patch[field]; touched {
			return nil, reserr.Newf(reserr.CodeImmutableField,
				"field %q cannot be patched", field).With("field", field)
		}
	}
	if _, touched := req.Patch["revision"]; touched {
		return nil, reserr.New(reserr.CodeImmutableField,
			"revision is managed by the store and cannot be patched").
			With("field", "revision")
	}

	merged, ok := MergePatch(doc, req.Patch).(Document)
	if !ok {
		return nil, reserr.New(reserr.CodeInvalidArgs, "merge patch must be a JSON object")
	}
	merged["revision"] = float64(rev + 1)

	if d.Validate != nil {
		if verr := d.Validate(merged); verr != nil {
			return nil, verr
		}
	}
	if werr := WriteJSON(d.Path, merged); werr != nil {
		return nil, werr
	}
	if d.AuditLog != "" {
		aerr := AppendAudit(d.AuditLog, AuditEvent{
			Kind:           d.Kind + ".patch",
			RunID:          d.RunID,
			Path:           d.Path,
			Reason:         req.Reason,
			RevisionBefore: rev,
			RevisionAfter:  rev + 1,
			InputsDigest:   req.InputsDigest,
			At:             time.Now().UTC(),
		})
		if aerr != nil {
			return nil, aerr
		}
	}
	return merged, nil
}

// Read loads the document and checks nothing beyond JSON shape; schema
// checking on read is the validator's job via ReadValidated.
func (d *VersionedDocument) Read() (Document, *reserr.Error) {
	return ReadDocument(d.Path)
}

// ReadValidated loads the document and runs the schema validator.
func (d *VersionedDocument) ReadValidated() (Document, *reserr.Error) {
	doc, rerr := ReadDocument(d.Path)
	if rerr != nil {
		return nil, rerr
	}
	if d.Validate != nil {
		if verr := d.Validate(doc); verr != nil {
			return nil, verr
		}
	}
	return doc, nil
}
