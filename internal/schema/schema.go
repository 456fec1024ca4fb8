// Package schema holds pure structural validators for every Meridian
// document type. Validators receive parsed JSON objects and return a typed
// error naming the first violated constraint; they never touch the disk.
package schema

import (
	"fmt"
	"strings"

	"meridian/internal/docstore"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// fail builds a SCHEMA_VALIDATION_FAILED error for a field.
func fail(doc, field, reason string) *reserr.Error {
	return reserr.Newf(reserr.CodeSchemaValidationFailed, "%s: field %q %s", doc, field, reason).
		With("document", doc).
		With("field", field)
}

func str(m docstore.Document, key string) (string, bool) {
	v, ok := m[key].(string)
	return v, ok
}

func num(m docstore.Document, key string) (float64, bool) {
	v, ok := m[key].(float64)
	return v, ok
}

func obj(m docstore.Document, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

func arr(m docstore.Document, key string) ([]any, bool) {
	v, ok := m[key].([]any)
	return v, ok
}

// requireVersion checks the schema_version tag on every document read.
func requireVersion(doc docstore.Document, name, want string) *reserr.Error {
	v, ok := str(doc, "schema_version")
	if !ok || v == "" {
		return fail(name, "schema_version", "is required")
	}
	if v != want {
		return reserr.Newf(reserr.CodeSchemaValidationFailed,
			"%s: unsupported schema_version %q (want %q)", name, v, want).
			With("document", name).
			With("schema_version", v)
	}
	return nil
}

func requireRevision(doc docstore.Document, name string) *reserr.Error {
	v, ok := num(doc, "revision")
	if !ok {
		return fail(name, "revision", "must be a number")
	}
	if v < 0 || v != float64(int(v)) {
		return fail(name, "revision", "must be a non-negative integer")
	}
	return nil
}

// Manifest validates the manifest document.
func Manifest(doc docstore.Document) *reserr.Error {
	const name = "manifest"
	if err := requireVersion(doc, name, models.ManifestSchemaVersion); err != nil {
		return err
	}
	if v, ok := str(doc, "run_id"); !ok || v == "" {
		return fail(name, "run_id", "is required")
	}
	if v, ok := str(doc, "status"); !ok || !models.RunStatus(v).Valid() {
		return fail(name, "status", "must be running, completed or failed")
	}
	if v, ok := str(doc, "mode"); !ok || !models.RunMode(v).Valid() {
		return fail(name, "mode", "must be standard or deep")
	}
	if v, ok := str(doc, "sensitivity"); !ok || !models.Sensitivity(v).Valid() {
		return fail(name, "sensitivity", "must be normal or restricted")
	}
	if v, ok := str(doc, "stage"); !ok || !models.Stage(v).Valid() {
		return fail(name, "stage", "must be a known stage")
	}
	if _, ok := str(doc, "created_at"); !ok {
		return fail(name, "created_at", "is required")
	}
	if _, ok := str(doc, "stage_started_at"); !ok {
		return fail(name, "stage_started_at", "is required")
	}
	if _, ok := obj(doc, "artifacts"); !ok {
		return fail(name, "artifacts", "must be an object")
	}
	if _, ok := obj(doc, "limits"); !ok {
		return fail(name, "limits", "must be an object")
	}
	if hist, ok := doc["stage_history"]; ok && hist != nil {
		entries, ok := hist.([]any)
		if !ok {
			return fail(name, "stage_history", "must be an array")
		}
		for i, e := range entries {
			rec, ok := e.(map[string]any)
			if !ok {
				return fail(name, fmt.Sprintf("stage_history[%d]", i), "must be an object")
			}
			for _, k := range []string{"from", "to", "at", "inputs_digest"} {
				if v, ok := rec[k].(string); !ok || v == "" {
					return fail(name, fmt.Sprintf("stage_history[%d].%s", i, k), "is required")
				}
			}
		}
	}
	return requireRevision(doc, name)
}

// Gates validates the gates document: exactly six gates A-F with legal
// kind/status pairs.
func Gates(doc docstore.Document) *reserr.Error {
	const name = "gates"
	if err := requireVersion(doc, name, models.GatesSchemaVersion); err != nil {
		return err
	}
	if v, ok := str(doc, "run_id"); !ok || v == "" {
		return fail(name, "run_id", "is required")
	}
	gates, ok := obj(doc, "gates")
	if !ok {
		return fail(name, "gates", "must be an object")
	}
	if len(gates) != len(models.AllGates()) {
		return fail(name, "gates", fmt.Sprintf("must contain exactly %d gates", len(models.AllGates())))
	}
	for _, id := range models.AllGates() {
		raw, present := gates[string(id)]
		if !present {
			return fail(name, "gates."+string(id), "is required")
		}
		g, ok := raw.(map[string]any)
		if !ok {
			return fail(name, "gates."+string(id), "must be an object")
		}
		kind, _ := g["kind"].(string)
		if models.GateKind(kind) != models.KindOf(id) {
			return fail(name, "gates."+string(id)+".kind",
				fmt.Sprintf("must be %q", models.KindOf(id)))
		}
		status, _ := g["status"].(string)
		if !models.GateStatus(status).Valid() {
			return fail(name, "gates."+string(id)+".status", "must be a known status")
		}
		if models.GateStatus(status) == models.GateWarn && models.KindOf(id) == models.GateHard {
			return reserr.Newf(reserr.CodeSchemaValidationFailed,
				"gates: hard gate %s cannot be warn", id).
				With("gate", string(id))
		}
		if models.GateStatus(status) != models.GateNotRun {
			if ts, ok := g["updated_at"].(string); !ok || ts == "" {
				return fail(name, "gates."+string(id)+".updated_at",
					"is required once the gate has run")
			}
		}
	}
	return requireRevision(doc, name)
}

// Perspectives validates the perspectives document.
func Perspectives(doc docstore.Document) *reserr.Error {
	const name = "perspectives"
	if err := requireVersion(doc, name, models.PerspectivesSchemaVersion); err != nil {
		return err
	}
	if v, ok := str(doc, "run_id"); !ok || v == "" {
		return fail(name, "run_id", "is required")
	}
	list, ok := arr(doc, "perspectives")
	if !ok || len(list) == 0 {
		return fail(name, "perspectives", "must be a non-empty array")
	}
	seen := map[string]bool{}
	for i, raw := range list {
		p, ok := raw.(map[string]any)
		if !ok {
			return fail(name, fmt.Sprintf("perspectives[%d]", i), "must be an object")
		}
		id, _ := p["id"].(string)
		if id == "" {
			return fail(name, fmt.Sprintf("perspectives[%d].id", i), "is required")
		}
		if seen[id] {
			return reserr.Newf(reserr.CodeSchemaValidationFailed,
				"perspectives: duplicate id %q", id).With("id", id)
		}
		seen[id] = true
		contract, ok := p["contract"].(map[string]any)
		if !ok {
			return fail(name, fmt.Sprintf("perspectives[%d].contract", i), "must be an object")
		}
		if v, ok := contract["max_words"].(float64); !ok || v <= 0 {
			return fail(name, fmt.Sprintf("perspectives[%d].contract.max_words", i), "must be positive")
		}
		if v, ok := contract["max_sources"].(float64); !ok || v <= 0 {
			return fail(name, fmt.Sprintf("perspectives[%d].contract.max_sources", i), "must be positive")
		}
	}
	return requireRevision(doc, name)
}

// Pivot validates the pivot decision document.
func Pivot(doc docstore.Document) *reserr.Error {
	const name = "pivot"
	if err := requireVersion(doc, name, models.PivotSchemaVersion); err != nil {
		return err
	}
	if v, ok := str(doc, "run_id"); !ok || v == "" {
		return fail(name, "run_id", "is required")
	}
	if _, ok := doc["wave2_required"].(bool); !ok {
		return fail(name, "wave2_required", "must be a boolean")
	}
	if v, ok := str(doc, "rule_hit"); !ok || v == "" {
		return fail(name, "rule_hit", "is required")
	}
	if v, ok := str(doc, "inputs_digest"); !ok || v == "" {
		return fail(name, "inputs_digest", "is required")
	}
	gaps, ok := arr(doc, "gaps")
	if !ok && doc["gaps"] != nil {
		return fail(name, "gaps", "must be an array")
	}
	for i, raw := range gaps {
		g, ok := raw.(map[string]any)
		if !ok {
			return fail(name, fmt.Sprintf("gaps[%d]", i), "must be an object")
		}
		pr, _ := g["priority"].(string)
		if !models.GapPriority(pr).Valid() {
			return fail(name, fmt.Sprintf("gaps[%d].priority", i), "must be P0..P3")
		}
		if id, _ := g["id"].(string); id == "" {
			return fail(name, fmt.Sprintf("gaps[%d].id", i), "is required")
		}
	}
	return requireRevision(doc, name)
}

// URLMap validates the url-map document.
func URLMap(doc docstore.Document) *reserr.Error {
	const name = "url-map"
	if err := requireVersion(doc, name, models.URLMapSchemaVersion); err != nil {
		return err
	}
	items, ok := arr(doc, "items")
	if !ok && doc["items"] != nil {
		return fail(name, "items", "must be an array")
	}
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			return fail(name, fmt.Sprintf("items[%d]", i), "must be an object")
		}
		for _, k := range []string{"original", "normalized", "cid"} {
			if v, _ := item[k].(string); v == "" {
				return fail(name, fmt.Sprintf("items[%d].%s", i, k), "is required")
			}
		}
		if cid, _ := item["cid"].(string); !strings.HasPrefix(cid, "cid_") {
			return fail(name, fmt.Sprintf("items[%d].cid", i), "must start with cid_")
		}
	}
	return requireRevision(doc, name)
}

// CitationRecord validates a single citations.jsonl record.
func CitationRecord(doc docstore.Document) *reserr.Error {
	const name = "citation"
	if v, _ := str(doc, "cid"); !strings.HasPrefix(v, "cid_") {
		return fail(name, "cid", "must start with cid_")
	}
	if v, ok := str(doc, "url"); !ok || v == "" {
		return fail(name, "url", "is required")
	}
	if v, _ := str(doc, "status"); !models.CitationStatus(v).Valid() {
		return fail(name, "status", "must be valid, paywalled, blocked, mismatch or invalid")
	}
	if u, _ := str(doc, "url"); hasUserinfo(u) {
		return reserr.New(reserr.CodeSchemaValidationFailed,
			"citation: url must not carry credentials").With("field", "url")
	}
	return nil
}

// hasUserinfo reports whether a URL's authority component carries
// credentials.
func hasUserinfo(u string) bool {
	rest, ok := strings.CutPrefix(u, "https://")
	if !ok {
		rest, ok = strings.CutPrefix(u, "http://")
	}
	if !ok {
		return false
	}
	host := rest
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		host = rest[:i]
	}
	return strings.Contains(host, "@")
}

// SummaryPack validates the summary-pack document.
func SummaryPack(doc docstore.Document) *reserr.Error {
	const name = "summary-pack"
	if err := requireVersion(doc, name, models.SummaryPackSchemaVersion); err != nil {
		return err
	}
	if v, ok := str(doc, "run_id"); !ok || v == "" {
		return fail(name, "run_id", "is required")
	}
	entries, ok := arr(doc, "entries")
	if !ok {
		return fail(name, "entries", "must be an array")
	}
	for i, raw := range entries {
		e, ok := raw.(map[string]any)
		if !ok {
			return fail(name, fmt.Sprintf("entries[%d]", i), "must be an object")
		}
		if v, _ := e["perspective_id"].(string); v == "" {
			return fail(name, fmt.Sprintf("entries[%d].perspective_id", i), "is required")
		}
		if v, ok := e["size_bytes"].(float64); !ok || v < 0 {
			return fail(name, fmt.Sprintf("entries[%d].size_bytes", i), "must be non-negative")
		}
	}
	return requireRevision(doc, name)
}

// RetryLedger validates the retry ledger document.
func RetryLedger(doc docstore.Document) *reserr.Error {
	const name = "retries"
	if v, ok := str(doc, "run_id"); !ok || v == "" {
		return fail(name, "run_id", "is required")
	}
	gates, ok := obj(doc, "gates")
	if !ok {
		return fail(name, "gates", "must be an object")
	}
	for id, raw := range gates {
		if !models.GateID(id).Valid() {
			return reserr.Newf(reserr.CodeSchemaValidationFailed,
				"retries: unknown gate %q", id).With("gate", id)
		}
		entry, ok := raw.(map[string]any)
		if !ok {
			return fail(name, "gates."+id, "must be an object")
		}
		attempts, ok := entry["attempts"].([]any)
		if !ok && entry["attempts"] != nil {
			return fail(name, "gates."+id+".attempts", "must be an array")
		}
		for i, a := range attempts {
			rec, ok := a.(map[string]any)
			if !ok {
				return fail(name, fmt.Sprintf("gates.%s.attempts[%d]", id, i), "must be an object")
			}
			if v, _ := rec["note"].(string); strings.TrimSpace(v) == "" {
				return fail(name, fmt.Sprintf("gates.%s.attempts[%d].note", id, i), "is required")
			}
		}
	}
	return requireRevision(doc, name)
}

// ReviewBundle validates the review bundle document.
func ReviewBundle(doc docstore.Document) *reserr.Error {
	const name = "review-bundle"
	if err := requireVersion(doc, name, models.ReviewSchemaVersion); err != nil {
		return err
	}
	if v, ok := str(doc, "run_id"); !ok || v == "" {
		return fail(name, "run_id", "is required")
	}
	if v, _ := str(doc, "decision"); !models.ReviewDecision(v).Valid() {
		return fail(name, "decision", "must be PASS or CHANGES_REQUIRED")
	}
	for _, key := range []string{"findings", "directives"} {
		list, ok := arr(doc, key)
		if !ok && doc[key] != nil {
			return fail(name, key, "must be an array")
		}
		if len(list) > models.MaxReviewEntries {
			return reserr.Newf(reserr.CodeSchemaValidationFailed,
				"review-bundle: %s exceeds %d entries", key, models.MaxReviewEntries).
				With("field", key).
				With("count", len(list))
		}
	}
	return nil
}
