// Package docstore persists Meridian's JSON documents with atomic writes,
// revision-based optimistic locking and an append-only audit log. Documents
// cross this package as generic maps so one patch path serves the manifest,
// gates, url-map and every other versioned document.
package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"meridian/pkg/reserr"
)

// Document is a parsed JSON object.
type Document = map[string]any

// WriteJSON writes v to path atomically: the bytes land in a temp file in
// the same directory which is then renamed over path, so a crash never
// leaves a partially written document. Parent directories are created.
func WriteJSON(path string, v any) *reserr.Error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return reserr.Wrap(reserr.CodeWriteFailed, "marshal document", err)
	}
	return WriteBytes(path, append(data, '\n'))
}

// WriteBytes atomically writes raw bytes to path.
func WriteBytes(path string, data []byte) *reserr.Error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return reserr.Wrap(reserr.CodeWriteFailed, "create directory", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return reserr.Wrap(reserr.CodeWriteFailed, "create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return reserr.Wrap(reserr.CodeWriteFailed, "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return reserr.Wrap(reserr.CodeWriteFailed, "close temp file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return reserr.Wrap(reserr.CodeWriteFailed, "rename temp file", err)
	}
	return nil
}

// ReadDocument reads and parses a JSON document.
func ReadDocument(path string) (Document, *reserr.Error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, reserr.Newf(reserr.CodeNotFound, "document not found: %s", path).
				With("path", path)
		}
		return nil, reserr.Wrap(reserr.CodeWriteFailed, "read document", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, reserr.Wrap(reserr.CodeInvalidJSON, fmt.Sprintf("parse %s", path), err).
			With("path", path)
	}
	return doc, nil
}

// ReadInto reads a JSON document into a typed value.
func ReadInto(path string, v any) *reserr.Error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return reserr.Newf(reserr.CodeNotFound, "document not found: %s", path).
				With("path", path)
		}
		return reserr.Wrap(reserr.CodeWriteFailed, "read document", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return reserr.Wrap(reserr.CodeInvalidJSON, fmt.Sprintf("parse %s", path), err).
			With("path", path)
	}
	return nil
}

// ToDocument converts a typed value to a Document via a JSON round trip.
func ToDocument(v any) (Document, *reserr.Error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, reserr.Wrap(reserr.CodeInvalidJSON, "encode document", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, reserr.Wrap(reserr.CodeInvalidJSON, "decode document", err)
	}
	return doc, nil
}

// FromDocument converts a Document back into a typed value.
func FromDocument(doc Document, v any) *reserr.Error {
	data, err := json.Marshal(doc)
	if err != nil {
		return reserr.Wrap(reserr.CodeInvalidJSON, "encode document", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return reserr.Wrap(reserr.CodeInvalidJSON, "decode document", err)
	}
	return nil
}

// Revision extracts the integer revision field from a document.
func Revision(doc Document) (int, *reserr.Error) {
	raw, ok := doc["revision"]
	if !ok {
		return 0, reserr.New(reserr.CodeSchemaValidationFailed, "document has no revision field")
	}
	f, ok := raw.(float64)
	if !ok {
		return 0, reserr.Newf(reserr.CodeSchemaValidationFailed, "revision is not a number: %T", raw)
	}
	return int(f), nil
}
