// Package ocr provides best-effort text extraction for stored page images.
//
// Extraction is an enrichment layered on top of page sync: engines may fail,
// and the sync engine records a degraded result instead of aborting the page
// write. The Stub engine is the documented fallback when no vision-capable
// service is configured.
package ocr

import (
	"context"
	"fmt"

	"github.com/steveyegge/scrawl/internal/schema"
)

// Stub is the no-op extraction engine. It always succeeds and returns a
// placeholder result, keeping the enrichment column populated with a valid
// payload when no real engine is configured.
type Stub struct{}

// NewStub creates the fallback extraction engine.
func NewStub() *Stub {
	return &Stub{}
}

// ExtractPage returns a placeholder result identifying the page.
func (s *Stub) ExtractPage(_ context.Context, _ []byte, pageNumber int, documentName string) (*schema.OCRResult, error) {
	return &schema.OCRResult{
		Text:       fmt.Sprintf("stub extraction - page %d of %s", pageNumber, documentName),
		Confidence: 1.0,
		Engine:     "stub",
	}, nil
}
