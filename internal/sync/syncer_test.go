package sync

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/steveyegge/scrawl/internal/schema"
	"github.com/steveyegge/scrawl/internal/store"
)

// newTestEngine opens a fresh store and wraps it in an engine with a
// quiet logger. The store is closed when the test finishes.
func newTestEngine(t *testing.T, enricher Enricher) (*Engine, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	return New(st, enricher, logger), st
}

// pagesOf builds page payloads from short strings.
func pagesOf(contents ...string) [][]byte {
	pages := make([][]byte, len(contents))
	for i, c := range contents {
		pages[i] = []byte(c)
	}
	return pages
}

func TestSync_FirstSyncInsertsAllPages(t *testing.T) {
	engine, st := newTestEngine(t, nil)
	ctx := context.Background()

	pages := pagesOf("page-a", "page-b", "page-c")
	report, err := engine.Sync(ctx, "doc.pdf", []byte("document-v1"), pages, Options{})
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}

	if report.Status != StatusSynced {
		t.Errorf("status = %v, want %v", report.Status, StatusSynced)
	}
	if report.Inserted != 3 || report.Updated != 0 || report.Unchanged != 0 || report.Deleted != 0 {
		t.Errorf("unexpected counts: %+v", report)
	}

	doc, err := st.GetDocument("doc.pdf")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if doc.ContentFingerprint != Fingerprint([]byte("document-v1")) {
		t.Errorf("stored fingerprint does not match document bytes")
	}

	for i, content := range []string{"page-a", "page-b", "page-c"} {
		page, err := st.GetPage("doc.pdf", i)
		if err != nil {
			t.Fatalf("GetPage(%d) failed: %v", i, err)
		}
		if string(page.ImageData) != content {
			t.Errorf("page %d data = %q, want %q", i, page.ImageData, content)
		}
		if page.ImageFingerprint != Fingerprint([]byte(content)) {
			t.Errorf("page %d fingerprint mismatch", i)
		}
	}
}

func TestSync_UnchangedDocumentShortCircuits(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	docBytes := []byte("document-v1")
	pages := pagesOf("page-a", "page-b")

	if _, err := engine.Sync(ctx, "doc.pdf", docBytes, pages, Options{}); err != nil {
		t.Fatalf("first Sync() failed: %v", err)
	}

	report, err := engine.Sync(ctx, "doc.pdf", docBytes, pages, Options{})
	if err != nil {
		t.Fatalf("second Sync() failed: %v", err)
	}
	if !report.ShortCircuited {
		t.Error("expected short circuit on unchanged document")
	}
	if report.Status != StatusUnchanged {
		t.Errorf("status = %v, want %v", report.Status, StatusUnchanged)
	}
	if report.Inserted+report.Updated+report.Unchanged+report.Deleted != 0 {
		t.Errorf("expected no page work, got %+v", report)
	}
}

func TestSync_ForceBypassesShortCircuitOnly(t *testing.T) {
	engine, st := newTestEngine(t, nil)
	ctx := context.Background()

	docBytes := []byte("document-v1")
	pages := pagesOf("page-a", "page-b")

	if _, err := engine.Sync(ctx, "doc.pdf", docBytes, pages, Options{}); err != nil {
		t.Fatalf("first Sync() failed: %v", err)
	}
	before, err := st.GetPage("doc.pdf", 0)
	if err != nil {
		t.Fatalf("GetPage() failed: %v", err)
	}

	report, err := engine.Sync(ctx, "doc.pdf", docBytes, pages, Options{Force: true})
	if err != nil {
		t.Fatalf("forced Sync() failed: %v", err)
	}
	if report.ShortCircuited {
		t.Error("force must bypass the document short-circuit")
	}
	if report.Status != StatusSynced {
		t.Errorf("status = %v, want %v", report.Status, StatusSynced)
	}
	// Page-level comparison still applies: no page rewritten.
	if report.Unchanged != 2 || report.Inserted != 0 || report.Updated != 0 {
		t.Errorf("unexpected counts under force: %+v", report)
	}

	after, err := st.GetPage("doc.pdf", 0)
	if err != nil {
		t.Fatalf("GetPage() after force failed: %v", err)
	}
	if !after.LastUpdatedAt.Equal(before.LastUpdatedAt) {
		t.Error("unchanged page was rewritten under force")
	}
}

func TestSync_ChangedPageUpdatedInPlace(t *testing.T) {
	engine, st := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.Sync(ctx, "doc.pdf", []byte("v1"), pagesOf("page-a", "page-b", "page-c"), Options{}); err != nil {
		t.Fatalf("first Sync() failed: %v", err)
	}

	report, err := engine.Sync(ctx, "doc.pdf", []byte("v2"), pagesOf("page-a", "page-b-edited", "page-c"), Options{})
	if err != nil {
		t.Fatalf("second Sync() failed: %v", err)
	}

	if report.Updated != 1 || report.Unchanged != 2 || report.Inserted != 0 || report.Deleted != 0 {
		t.Errorf("unexpected counts: %+v", report)
	}

	page, err := st.GetPage("doc.pdf", 1)
	if err != nil {
		t.Fatalf("GetPage() failed: %v", err)
	}
	if string(page.ImageData) != "page-b-edited" {
		t.Errorf("page 1 data = %q, want %q", page.ImageData, "page-b-edited")
	}
}

func TestSync_GrowthInsertsNewPages(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.Sync(ctx, "doc.pdf", []byte("v1"), pagesOf("page-a"), Options{}); err != nil {
		t.Fatalf("first Sync() failed: %v", err)
	}

	report, err := engine.Sync(ctx, "doc.pdf", []byte("v2"), pagesOf("page-a", "page-b", "page-c"), Options{})
	if err != nil {
		t.Fatalf("second Sync() failed: %v", err)
	}
	if report.Inserted != 2 || report.Unchanged != 1 || report.Updated != 0 || report.Deleted != 0 {
		t.Errorf("unexpected counts: %+v", report)
	}
}

func TestSync_ShrinkageDeletesOrphans(t *testing.T) {
	tests := []struct {
		name        string
		newPages    [][]byte
		wantDeleted int
		wantIndices []int
	}{
		{"shrink to two", pagesOf("page-a", "page-b"), 2, []int{0, 1}},
		{"shrink to one", pagesOf("page-a"), 3, []int{0}},
		{"shrink to zero", nil, 4, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, st := newTestEngine(t, nil)
			ctx := context.Background()

			if _, err := engine.Sync(ctx, "doc.pdf", []byte("v1"), pagesOf("page-a", "page-b", "page-c", "page-d"), Options{}); err != nil {
				t.Fatalf("first Sync() failed: %v", err)
			}

			report, err := engine.Sync(ctx, "doc.pdf", []byte("v2"), tt.newPages, Options{})
			if err != nil {
				t.Fatalf("second Sync() failed: %v", err)
			}
			if report.Deleted != tt.wantDeleted {
				t.Errorf("deleted = %d, want %d", report.Deleted, tt.wantDeleted)
			}
			if report.Status != StatusSynced {
				t.Errorf("status = %v, want %v", report.Status, StatusSynced)
			}

			indices, err := st.ListPageIndices("doc.pdf")
			if err != nil {
				t.Fatalf("ListPageIndices() failed: %v", err)
			}
			if len(indices) != len(tt.wantIndices) {
				t.Fatalf("indices = %v, want %v", indices, tt.wantIndices)
			}
			for i, idx := range indices {
				if idx != tt.wantIndices[i] {
					t.Errorf("indices[%d] = %d, want %d", i, idx, tt.wantIndices[i])
				}
			}
		})
	}
}

func TestSync_ZeroPageDocumentIsValid(t *testing.T) {
	engine, st := newTestEngine(t, nil)
	ctx := context.Background()

	docBytes := []byte("empty-doc")
	report, err := engine.Sync(ctx, "empty.pdf", docBytes, nil, Options{})
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if report.Status != StatusSynced || report.PageCount != 0 {
		t.Errorf("unexpected report: %+v", report)
	}

	// The document record is still committed so the next sync short-circuits.
	doc, err := st.GetDocument("empty.pdf")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if doc.ContentFingerprint != Fingerprint(docBytes) {
		t.Error("zero-page document fingerprint not committed")
	}

	report, err = engine.Sync(ctx, "empty.pdf", docBytes, nil, Options{})
	if err != nil {
		t.Fatalf("second Sync() failed: %v", err)
	}
	if !report.ShortCircuited {
		t.Error("expected short circuit on unchanged zero-page document")
	}
}

func TestSync_InterruptedSyncConvergesOnRetry(t *testing.T) {
	engine, st := newTestEngine(t, nil)
	ctx := context.Background()

	// Simulate a crash after page 0 was written but before the document
	// fingerprint was committed: provisional document row, one page stored.
	if err := st.EnsureDocument("doc.pdf"); err != nil {
		t.Fatalf("EnsureDocument() failed: %v", err)
	}
	page := &schema.PageRecord{
		DocumentIdentity: "doc.pdf",
		PageIndex:        0,
		ImageData:        []byte("page-a"),
		ImageFingerprint: Fingerprint([]byte("page-a")),
		LastUpdatedAt:    time.Now().UTC(),
	}
	if err := st.UpsertPage(page); err != nil {
		t.Fatalf("UpsertPage() failed: %v", err)
	}

	// Retry of the same sync: the provisional empty fingerprint never
	// short-circuits, the already-written page is skipped, the rest lands.
	report, err := engine.Sync(ctx, "doc.pdf", []byte("v1"), pagesOf("page-a", "page-b"), Options{})
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if report.ShortCircuited {
		t.Error("provisional document row must not short-circuit")
	}
	if report.Unchanged != 1 || report.Inserted != 1 {
		t.Errorf("unexpected counts: %+v", report)
	}

	doc, err := st.GetDocument("doc.pdf")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if doc.ContentFingerprint != Fingerprint([]byte("v1")) {
		t.Error("document fingerprint not committed after retry")
	}
}

// recordingEnricher captures extraction calls and returns canned results.
type recordingEnricher struct {
	calls int
	fail  bool
}

func (r *recordingEnricher) ExtractPage(ctx context.Context, image []byte, pageNumber int, documentName string) (*schema.OCRResult, error) {
	r.calls++
	if r.fail {
		return nil, errors.New("extraction backend down")
	}
	return &schema.OCRResult{Text: "text for page", Engine: "test", Confidence: 0.9}, nil
}

func TestSync_EnrichmentStoredWithPage(t *testing.T) {
	enricher := &recordingEnricher{}
	engine, st := newTestEngine(t, enricher)

	if _, err := engine.Sync(context.Background(), "doc.pdf", []byte("v1"), pagesOf("page-a", "page-b"), Options{}); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if enricher.calls != 2 {
		t.Errorf("enricher called %d times, want 2", enricher.calls)
	}

	result, err := st.GetPageText("doc.pdf", 0)
	if err != nil {
		t.Fatalf("GetPageText() failed: %v", err)
	}
	if result == nil || result.Text != "text for page" || result.Engine != "test" {
		t.Errorf("unexpected enrichment: %+v", result)
	}
}

func TestSync_EnrichmentFailureDoesNotBlockPage(t *testing.T) {
	engine, st := newTestEngine(t, &recordingEnricher{fail: true})

	report, err := engine.Sync(context.Background(), "doc.pdf", []byte("v1"), pagesOf("page-a"), Options{})
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if report.Inserted != 1 {
		t.Errorf("page not inserted despite enrichment failure: %+v", report)
	}

	// The failure is recorded in the enrichment payload, not dropped.
	result, err := st.GetPageText("doc.pdf", 0)
	if err != nil {
		t.Fatalf("GetPageText() failed: %v", err)
	}
	if result == nil || result.Engine != "failed" || result.Error == "" {
		t.Errorf("expected recorded failure, got %+v", result)
	}
}

func TestSync_UnchangedPageSkipsEnrichment(t *testing.T) {
	enricher := &recordingEnricher{}
	engine, _ := newTestEngine(t, enricher)
	ctx := context.Background()

	if _, err := engine.Sync(ctx, "doc.pdf", []byte("v1"), pagesOf("page-a"), Options{}); err != nil {
		t.Fatalf("first Sync() failed: %v", err)
	}
	if _, err := engine.Sync(ctx, "doc.pdf", []byte("v1"), pagesOf("page-a"), Options{Force: true}); err != nil {
		t.Fatalf("forced Sync() failed: %v", err)
	}

	if enricher.calls != 1 {
		t.Errorf("enricher called %d times, want 1 (unchanged pages skip enrichment)", enricher.calls)
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusUnchanged, "unchanged"},
		{StatusSynced, "synced"},
		{StatusAborted, "aborted"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
