// Package schema defines the persisted record shapes for scrawl's page mirror.
package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// DocumentRecord represents one source document tracked in the store.
//
// Identity is the document's stable key (its basename), unique across the
// store. ContentFingerprint is the SHA-256 digest of the whole source file as
// of the last successful sync; it is only written after all page work for
// that sync has completed, so an interrupted sync leaves the previous
// fingerprint in place.
type DocumentRecord struct {
	// ===== Identity =====
	Identity string `json:"identity"`

	// ===== Change detection =====
	ContentFingerprint string `json:"content_fingerprint"`

	// ===== Timestamps =====
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// Validate checks if the DocumentRecord has valid field values.
func (d *DocumentRecord) Validate() error {
	if d.Identity == "" {
		return fmt.Errorf("identity is required")
	}
	if d.ContentFingerprint == "" {
		return fmt.Errorf("content_fingerprint is required")
	}
	if d.LastSyncedAt.IsZero() {
		return fmt.Errorf("last_synced_at is required")
	}
	return nil
}

// PageRecord represents one rendered page image belonging to a document.
//
// PageIndex is zero-based and unique in combination with DocumentIdentity.
// Page identity is positional: index 3 in the current render is always
// compared against the stored record at index 3, never matched by content.
type PageRecord struct {
	// ===== Ownership =====
	DocumentIdentity string `json:"document_identity"`
	PageIndex        int    `json:"page_index"`

	// ===== Payload =====
	ImageData        []byte `json:"-"`
	ImageFingerprint string `json:"image_fingerprint"`

	// ===== Enrichment (best-effort, may be empty) =====
	OCRText string `json:"ocr_text,omitempty"`

	// ===== Timestamps =====
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Validate checks if the PageRecord has valid field values.
func (p *PageRecord) Validate() error {
	if p.DocumentIdentity == "" {
		return fmt.Errorf("document_identity is required")
	}
	if p.PageIndex < 0 {
		return fmt.Errorf("page_index must be >= 0 (got %d)", p.PageIndex)
	}
	if len(p.ImageData) == 0 {
		return fmt.Errorf("image_data is required")
	}
	if p.ImageFingerprint == "" {
		return fmt.Errorf("image_fingerprint is required")
	}
	if p.LastUpdatedAt.IsZero() {
		return fmt.Errorf("last_updated_at is required")
	}
	return nil
}

// OCRResult is the enrichment payload stored alongside a page image.
// It is serialized to JSON in the pages table's ocr_text column.
type OCRResult struct {
	Text             string  `json:"text"`
	Confidence       float64 `json:"confidence"`
	ProcessingTimeMS int64   `json:"processing_time_ms"`
	Engine           string  `json:"engine"`
	Model            string  `json:"model,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// Marshal serializes the result to its stored JSON form.
func (r *OCRResult) Marshal() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ocr result: %w", err)
	}
	return string(data), nil
}

// UnmarshalOCRResult parses the stored JSON form of an enrichment payload.
func UnmarshalOCRResult(data string) (*OCRResult, error) {
	var r OCRResult
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("failed to parse ocr result: %w", err)
	}
	return &r, nil
}
