package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/steveyegge/scrawl/internal/schema"
	"github.com/steveyegge/scrawl/internal/store"
)

// Enricher extracts best-effort text content from a page image.
//
// Enrichment is layered on top of page sync: an Enricher failure must never
// block the page write itself. pageNumber is 1-based for human-facing output.
type Enricher interface {
	ExtractPage(ctx context.Context, image []byte, pageNumber int, documentName string) (*schema.OCRResult, error)
}

// Options configures a single Sync call.
type Options struct {
	// Force bypasses the document-level fingerprint short-circuit and
	// re-evaluates every page. Page-level fingerprint comparison still
	// applies, so unchanged pages are not rewritten.
	Force bool
}

// Status describes the outcome of a Sync call.
type Status int

const (
	// StatusUnchanged means the document fingerprint matched and the
	// short-circuit fired; no page work was performed.
	StatusUnchanged Status = iota
	// StatusSynced means the full page walk completed and the document
	// record was committed.
	StatusSynced
	// StatusAborted means a store failure stopped the sync mid-call.
	// The call is safe to retry; see package doc for why.
	StatusAborted
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusSynced:
		return "synced"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Report enumerates what a Sync call did.
type Report struct {
	Identity       string
	Status         Status
	PageCount      int
	Inserted       int
	Updated        int
	Unchanged      int
	Deleted        int
	ShortCircuited bool
}

// Engine implements the incremental synchronization algorithm: given a fresh
// render and the store's current state for one document identity, it computes
// the minimal set of inserts, updates, and deletes and applies them.
type Engine struct {
	store    *store.Store
	enricher Enricher
	logger   *log.Logger
}

// New creates a sync engine over an open store.
//
// The store must have its schema initialized before the first Sync call.
// enricher may be nil, in which case pages are stored without enrichment.
// If logger is nil, a default logger writing to stderr is used.
func New(st *store.Store, enricher Enricher, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{
		store:    st,
		enricher: enricher,
		logger:   logger,
	}
}

// Sync mirrors one rendered document into the store.
//
// identity is the document's stable key. documentBytes is used only to
// compute the whole-document fingerprint. pages is the ordered sequence of
// rendered page payloads, indices implicit in sequence order starting at 0.
//
// Page processing proceeds strictly in ascending index order. Writes are
// individually idempotent and the document record is committed last, so a
// partially-applied call converges on retry. On a store failure the returned
// Report has StatusAborted and the error wraps ErrStoreWriteFailed.
func (e *Engine) Sync(ctx context.Context, identity string, documentBytes []byte, pages [][]byte, opts Options) (*Report, error) {
	report := &Report{
		Identity:  identity,
		PageCount: len(pages),
	}

	newDocFP := Fingerprint(documentBytes)

	existing, err := e.store.GetDocumentContext(ctx, identity)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		report.Status = StatusAborted
		return report, fmt.Errorf("%w: failed to look up document %s: %v", ErrStoreUnavailable, identity, err)
	}

	// Document-level short-circuit: unchanged documents cost one fingerprint
	// comparison, not N page walks. A provisional row's empty fingerprint
	// never matches, so an interrupted first sync cannot land here.
	if existing != nil && !opts.Force && existing.ContentFingerprint == newDocFP {
		e.logger.Printf("Document unchanged, skipping: %s", identity)
		report.Status = StatusUnchanged
		report.ShortCircuited = true
		return report, nil
	}

	if err := e.store.EnsureDocumentContext(ctx, identity); err != nil {
		report.Status = StatusAborted
		return report, fmt.Errorf("%w: %v", ErrStoreWriteFailed, err)
	}

	e.logger.Printf("Syncing %s: %d pages", identity, len(pages))

	for pageIndex := 0; pageIndex < len(pages); pageIndex++ {
		if err := e.syncPage(ctx, identity, pageIndex, pages[pageIndex], report); err != nil {
			report.Status = StatusAborted
			return report, err
		}
	}

	// Orphan cleanup: the document shrank below previously stored indices.
	deleted, err := e.store.DeletePagesFromContext(ctx, identity, len(pages))
	if err != nil {
		report.Status = StatusAborted
		return report, fmt.Errorf("%w: %v", ErrStoreWriteFailed, err)
	}
	report.Deleted = deleted
	if deleted > 0 {
		e.logger.Printf("Deleted %d orphaned pages for %s", deleted, identity)
	}

	// The document fingerprint is committed only after all page work
	// succeeded, so it always reflects a fully-applied sync.
	doc := &schema.DocumentRecord{
		Identity:           identity,
		ContentFingerprint: newDocFP,
		LastSyncedAt:       time.Now().UTC(),
	}
	if err := e.store.UpsertDocumentContext(ctx, doc); err != nil {
		report.Status = StatusAborted
		return report, fmt.Errorf("%w: %v", ErrStoreWriteFailed, err)
	}

	report.Status = StatusSynced
	e.logger.Printf("Sync complete for %s: inserted=%d updated=%d unchanged=%d deleted=%d",
		identity, report.Inserted, report.Updated, report.Unchanged, report.Deleted)

	return report, nil
}

// syncPage applies the insert/update/skip decision for a single page index.
func (e *Engine) syncPage(ctx context.Context, identity string, pageIndex int, image []byte, report *Report) error {
	newFP := Fingerprint(image)

	existingFP, err := e.store.GetPageFingerprintContext(ctx, identity, pageIndex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWriteFailed, err)
	}

	if existingFP == newFP {
		// Unchanged page: no write, even under force.
		report.Unchanged++
		e.logger.Printf("  Page %d: unchanged, skipping", pageIndex+1)
		return nil
	}

	page := &schema.PageRecord{
		DocumentIdentity: identity,
		PageIndex:        pageIndex,
		ImageData:        image,
		ImageFingerprint: newFP,
		LastUpdatedAt:    time.Now().UTC(),
	}

	if text := e.enrich(ctx, image, pageIndex, identity); text != "" {
		page.OCRText = text
	}

	if err := e.store.UpsertPageContext(ctx, page); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWriteFailed, err)
	}

	if existingFP == "" {
		report.Inserted++
		e.logger.Printf("  Page %d: inserted (%d bytes)", pageIndex+1, len(image))
	} else {
		report.Updated++
		e.logger.Printf("  Page %d: updated (%d bytes)", pageIndex+1, len(image))
	}

	return nil
}

// enrich runs the text-extraction delegate for a page about to be written.
// Failures degrade to a result carrying the error; they never block the page.
func (e *Engine) enrich(ctx context.Context, image []byte, pageIndex int, identity string) string {
	if e.enricher == nil {
		return ""
	}

	result, err := e.enricher.ExtractPage(ctx, image, pageIndex+1, identity)
	if err != nil {
		e.logger.Printf("  Page %d: enrichment failed: %v", pageIndex+1, err)
		result = &schema.OCRResult{
			Engine: "failed",
			Error:  err.Error(),
		}
	}

	payload, err := result.Marshal()
	if err != nil {
		e.logger.Printf("  Page %d: could not serialize enrichment: %v", pageIndex+1, err)
		return ""
	}
	return payload
}
