package render

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/steveyegge/scrawl/internal/sync"
)

// PDFRenderer renders a PDF into one single-page PDF payload per page using
// pdfcpu. Payloads are opaque bytes to the rest of the system; the sync
// engine only ever fingerprints and stores them.
type PDFRenderer struct {
	logger *log.Logger
}

// NewPDFRenderer creates a PDF renderer.
// If logger is nil, a default logger writing to stderr is used.
func NewPDFRenderer(logger *log.Logger) *PDFRenderer {
	if logger == nil {
		logger = log.New(os.Stderr, "[render] ", log.LstdFlags)
	}
	return &PDFRenderer{logger: logger}
}

// Render implements Renderer.
//
// The source is validated, its page count determined, and each page split
// into its own payload in ascending page order. Any pdfcpu failure maps to
// sync.ErrSourceUnreadable.
func (r *PDFRenderer) Render(ctx context.Context, path string) (*Result, error) {
	docBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", sync.ErrSourceUnreadable, path, err)
	}

	if err := api.ValidateFile(path, nil); err != nil {
		return nil, fmt.Errorf("%w: %s is not a valid PDF: %v", sync.ErrSourceUnreadable, path, err)
	}

	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get page count of %s: %v", sync.ErrSourceUnreadable, path, err)
	}

	r.logger.Printf("Rendering %s: %d pages", filepath.Base(path), pageCount)

	tempDir, err := os.MkdirTemp("", "scrawl-render-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// SplitFile writes <base>_<n>.pdf for n in 1..pageCount.
	if err := api.SplitFile(path, tempDir, 1, nil); err != nil {
		return nil, fmt.Errorf("%w: failed to split %s: %v", sync.ErrSourceUnreadable, path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	pages := make([][]byte, 0, pageCount)
	for pageNumber := 1; pageNumber <= pageCount; pageNumber++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pagePath := filepath.Join(tempDir, fmt.Sprintf("%s_%d.pdf", base, pageNumber))
		pageBytes, err := os.ReadFile(pagePath)
		if err != nil {
			return nil, fmt.Errorf("%w: missing split output for page %d of %s: %v",
				sync.ErrSourceUnreadable, pageNumber, path, err)
		}
		pages = append(pages, pageBytes)
	}

	return &Result{
		DocumentBytes: docBytes,
		Pages:         pages,
	}, nil
}
