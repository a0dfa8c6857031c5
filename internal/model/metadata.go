package model

import (
	"encoding/json"
	"fmt"
)

// MetadataState describes how much of a container's main metadata could
// be decoded.
type MetadataState string

const (
	// MetadataAbsent means the container carried no main metadata.
	MetadataAbsent MetadataState = "absent"

	// MetadataOpaque means metadata exists but could not be decoded; the
	// raw string is kept verbatim for export.
	MetadataOpaque MetadataState = "opaque"

	// MetadataStructured means the metadata parsed into a JSON tree.
	MetadataStructured MetadataState = "structured"
)

// OpaqueReason records why a metadata document is opaque.
type OpaqueReason string

const (
	// OpaqueEncrypted marks "rcc||" payloads. They are never decrypted.
	OpaqueEncrypted OpaqueReason = "encrypted"

	// OpaqueParseFailure marks metadata that failed base64, UTF-8 or JSON
	// decoding.
	OpaqueParseFailure OpaqueReason = "parse-failure"
)

// note returns the human-readable explanation written into exports.
func (r OpaqueReason) note() string {
	switch r {
	case OpaqueEncrypted:
		return "encrypted rcc|| metadata; exported verbatim"
	case OpaqueParseFailure:
		return "failed to parse main metadata as JSON; exported verbatim"
	default:
		return "undecodable metadata"
	}
}

// MetadataDocument is the decoded main metadata of a container.
// It is built once by a parser and only read afterwards.
type MetadataDocument struct {
	State MetadataState

	// Tree holds the parsed JSON object. Only set when State is structured.
	Tree map[string]any

	// Raw holds the undecoded string. Only set when State is opaque.
	Raw string

	// Reason is only set when State is opaque.
	Reason OpaqueReason
}

// AbsentMetadata returns a document for containers without metadata.
func AbsentMetadata() *MetadataDocument {
	return &MetadataDocument{State: MetadataAbsent}
}

// OpaqueMetadata returns a pass-through document carrying raw.
func OpaqueMetadata(raw string, reason OpaqueReason) *MetadataDocument {
	return &MetadataDocument{State: MetadataOpaque, Raw: raw, Reason: reason}
}

// StructuredMetadata wraps a parsed JSON object.
func StructuredMetadata(tree map[string]any) *MetadataDocument {
	return &MetadataDocument{State: MetadataStructured, Tree: tree}
}

// IsAbsent reports whether there is nothing to export.
func (d *MetadataDocument) IsAbsent() bool {
	return d == nil || d.State == MetadataAbsent
}

// Spec returns the top-level "spec" tag (e.g. "chara_card_v3"), or "".
func (d *MetadataDocument) Spec() string {
	if d == nil || d.State != MetadataStructured {
		return ""
	}
	s, _ := d.Tree["spec"].(string)
	return s
}

// Data returns the "data" subtree, or nil when missing or not an object.
func (d *MetadataDocument) Data() map[string]any {
	if d == nil || d.State != MetadataStructured {
		return nil
	}
	data, _ := d.Tree["data"].(map[string]any)
	return data
}

// Export renders the document as pretty-printed JSON (2-space indent).
// Opaque documents export as {"note": ..., "raw_data": ...}.
func (d *MetadataDocument) Export() ([]byte, error) {
	var v any
	switch {
	case d.IsAbsent():
		return nil, fmt.Errorf("no metadata to export")
	case d.State == MetadataOpaque:
		v = map[string]string{
			"note":     d.Reason.note(),
			"raw_data": d.Raw,
		}
	default:
		v = d.Tree
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize metadata: %w", err)
	}
	return data, nil
}
