// Package store provides the embedded SQLite database backing scrawl's
// page-image mirror.
//
// The database runs in embedded mode using the ncruces/go-sqlite3 driver with
// WAL enabled for concurrent readers during writes.
//
// Schema:
//   - documents: one row per source document, keyed by unique identity
//   - pages: one row per rendered page, keyed by (document, page_index)
//   - Indexes: (document, page_index) lookup plus a secondary index on
//     image_fingerprint for cross-document duplicate discovery
//
// Uniqueness of documents.identity and pages (document_id, page_index) is
// enforced at the storage layer as a last-line integrity guard, independent
// of the sync engine's own bookkeeping.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/steveyegge/scrawl/internal/schema"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection with scrawl-specific functionality.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it will be created; call InitSchema to
// create the tables.
//
// The caller MUST call Close() when done to ensure proper cleanup.
func Open(path string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn: conn,
		path: path,
	}

	// Enable WAL mode for concurrent reads
	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return s, nil
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Path returns the filesystem location of the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// This is idempotent - safe to call multiple times.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY,
		identity TEXT NOT NULL UNIQUE,
		content_fingerprint TEXT NOT NULL,
		last_synced_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY,
		document_id INTEGER NOT NULL,
		page_index INTEGER NOT NULL,
		image_data BLOB NOT NULL,
		image_fingerprint TEXT NOT NULL,
		ocr_text TEXT,
		last_updated_at TEXT NOT NULL,
		UNIQUE (document_id, page_index),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_pages_doc_page
	    ON pages(document_id, page_index);

	-- Secondary index: lets callers discover byte-identical page images
	-- across documents without scanning blobs.
	CREATE INDEX IF NOT EXISTS idx_pages_fingerprint
	    ON pages(image_fingerprint);
	`

	if _, err := s.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// GetDocument retrieves a document record by identity.
// Returns sql.ErrNoRows if no document with that identity exists.
func (s *Store) GetDocument(identity string) (*schema.DocumentRecord, error) {
	return s.GetDocumentContext(context.Background(), identity)
}

// GetDocumentContext retrieves a document record with context support.
func (s *Store) GetDocumentContext(ctx context.Context, identity string) (*schema.DocumentRecord, error) {
	query := `
	SELECT identity, content_fingerprint, last_synced_at
	FROM documents
	WHERE identity = ?
	`

	var doc schema.DocumentRecord
	var syncedAt string

	err := s.conn.QueryRowContext(ctx, query, identity).Scan(
		&doc.Identity,
		&doc.ContentFingerprint,
		&syncedAt,
	)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339, syncedAt); err == nil {
		doc.LastSyncedAt = t
	}

	return &doc, nil
}

// UpsertDocument inserts or updates a document record.
//
// If a document with the same identity exists, its fingerprint and sync
// timestamp are overwritten in place.
func (s *Store) UpsertDocument(doc *schema.DocumentRecord) error {
	return s.UpsertDocumentContext(context.Background(), doc)
}

// UpsertDocumentContext inserts or updates a document with context support.
func (s *Store) UpsertDocumentContext(ctx context.Context, doc *schema.DocumentRecord) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}

	query := `
	INSERT INTO documents (identity, content_fingerprint, last_synced_at)
	VALUES (?, ?, ?)
	ON CONFLICT(identity) DO UPDATE SET
		content_fingerprint = excluded.content_fingerprint,
		last_synced_at = excluded.last_synced_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		doc.Identity,
		doc.ContentFingerprint,
		doc.LastSyncedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.Identity, err)
	}

	return nil
}

// EnsureDocument creates a provisional document row if none exists, leaving
// any existing row untouched.
//
// The provisional row carries an empty content fingerprint, which can never
// equal a real digest: if a first-time sync is interrupted after page writes
// began, the retry will not short-circuit past the half-applied state.
func (s *Store) EnsureDocument(identity string) error {
	return s.EnsureDocumentContext(context.Background(), identity)
}

// EnsureDocumentContext provisions a document row with context support.
func (s *Store) EnsureDocumentContext(ctx context.Context, identity string) error {
	if identity == "" {
		return fmt.Errorf("identity is required")
	}

	query := `
	INSERT OR IGNORE INTO documents (identity, content_fingerprint, last_synced_at)
	VALUES (?, '', ?)
	`
	_, err := s.conn.ExecContext(ctx, query, identity, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to ensure document %s: %w", identity, err)
	}
	return nil
}

// GetPage retrieves a full page record, including the image payload.
// Returns sql.ErrNoRows if the page does not exist.
func (s *Store) GetPage(identity string, pageIndex int) (*schema.PageRecord, error) {
	return s.GetPageContext(context.Background(), identity, pageIndex)
}

// GetPageContext retrieves a full page record with context support.
func (s *Store) GetPageContext(ctx context.Context, identity string, pageIndex int) (*schema.PageRecord, error) {
	query := `
	SELECT d.identity, p.page_index, p.image_data, p.image_fingerprint,
	       COALESCE(p.ocr_text, ''), p.last_updated_at
	FROM pages p
	JOIN documents d ON d.id = p.document_id
	WHERE d.identity = ? AND p.page_index = ?
	`

	var page schema.PageRecord
	var updatedAt string

	err := s.conn.QueryRowContext(ctx, query, identity, pageIndex).Scan(
		&page.DocumentIdentity,
		&page.PageIndex,
		&page.ImageData,
		&page.ImageFingerprint,
		&page.OCRText,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		page.LastUpdatedAt = t
	}

	return &page, nil
}

// GetPageFingerprint retrieves only the stored fingerprint for a page,
// avoiding the blob read on the sync engine's hot comparison path.
// Returns ("", nil) if the page does not exist.
func (s *Store) GetPageFingerprint(identity string, pageIndex int) (string, error) {
	return s.GetPageFingerprintContext(context.Background(), identity, pageIndex)
}

// GetPageFingerprintContext retrieves a page fingerprint with context support.
func (s *Store) GetPageFingerprintContext(ctx context.Context, identity string, pageIndex int) (string, error) {
	query := `
	SELECT p.image_fingerprint
	FROM pages p
	JOIN documents d ON d.id = p.document_id
	WHERE d.identity = ? AND p.page_index = ?
	`

	var fp string
	err := s.conn.QueryRowContext(ctx, query, identity, pageIndex).Scan(&fp)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query page fingerprint: %w", err)
	}
	return fp, nil
}

// UpsertPage inserts or updates a page record.
//
// The owning document row must already exist; the upsert is keyed by
// (document, page_index) so re-applying the same write is idempotent.
func (s *Store) UpsertPage(page *schema.PageRecord) error {
	return s.UpsertPageContext(context.Background(), page)
}

// UpsertPageContext inserts or updates a page with context support.
func (s *Store) UpsertPageContext(ctx context.Context, page *schema.PageRecord) error {
	if err := page.Validate(); err != nil {
		return fmt.Errorf("invalid page: %w", err)
	}

	query := `
	INSERT INTO pages (document_id, page_index, image_data, image_fingerprint, ocr_text, last_updated_at)
	SELECT d.id, ?, ?, ?, ?, ?
	FROM documents d WHERE d.identity = ?
	ON CONFLICT(document_id, page_index) DO UPDATE SET
		image_data = excluded.image_data,
		image_fingerprint = excluded.image_fingerprint,
		ocr_text = excluded.ocr_text,
		last_updated_at = excluded.last_updated_at
	`

	result, err := s.conn.ExecContext(ctx, query,
		page.PageIndex,
		page.ImageData,
		page.ImageFingerprint,
		nullIfEmpty(page.OCRText),
		page.LastUpdatedAt.Format(time.RFC3339),
		page.DocumentIdentity,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert page %s[%d]: %w", page.DocumentIdentity, page.PageIndex, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("failed to upsert page %s[%d]: document not found", page.DocumentIdentity, page.PageIndex)
	}

	return nil
}

// DeletePage removes a single page record.
// Returns nil if the page doesn't exist (idempotent).
func (s *Store) DeletePage(identity string, pageIndex int) error {
	return s.DeletePageContext(context.Background(), identity, pageIndex)
}

// DeletePageContext removes a single page with context support.
func (s *Store) DeletePageContext(ctx context.Context, identity string, pageIndex int) error {
	query := `
	DELETE FROM pages
	WHERE document_id = (SELECT id FROM documents WHERE identity = ?)
	  AND page_index = ?
	`
	_, err := s.conn.ExecContext(ctx, query, identity, pageIndex)
	if err != nil {
		return fmt.Errorf("failed to delete page %s[%d]: %w", identity, pageIndex, err)
	}
	return nil
}

// DeletePagesFrom removes every page whose index is >= pageCount, cleaning
// up orphans after a document shrank. Returns the number of rows deleted.
func (s *Store) DeletePagesFrom(identity string, pageCount int) (int, error) {
	return s.DeletePagesFromContext(context.Background(), identity, pageCount)
}

// DeletePagesFromContext removes orphaned pages with context support.
func (s *Store) DeletePagesFromContext(ctx context.Context, identity string, pageCount int) (int, error) {
	query := `
	DELETE FROM pages
	WHERE document_id = (SELECT id FROM documents WHERE identity = ?)
	  AND page_index >= ?
	`
	result, err := s.conn.ExecContext(ctx, query, identity, pageCount)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphaned pages for %s: %w", identity, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted pages for %s: %w", identity, err)
	}
	return int(affected), nil
}

// ListPageIndices returns the page indices stored for a document,
// in ascending order. An unknown identity yields an empty slice.
func (s *Store) ListPageIndices(identity string) ([]int, error) {
	return s.ListPageIndicesContext(context.Background(), identity)
}

// ListPageIndicesContext returns stored page indices with context support.
func (s *Store) ListPageIndicesContext(ctx context.Context, identity string) ([]int, error) {
	query := `
	SELECT p.page_index
	FROM pages p
	JOIN documents d ON d.id = p.document_id
	WHERE d.identity = ?
	ORDER BY p.page_index ASC
	`

	rows, err := s.conn.QueryContext(ctx, query, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to list page indices: %w", err)
	}
	defer rows.Close()

	var indices []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("failed to scan page index: %w", err)
		}
		indices = append(indices, idx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating page indices: %w", err)
	}

	return indices, nil
}

// PageRef identifies a stored page without carrying its payload.
type PageRef struct {
	DocumentIdentity string
	PageIndex        int
}

// FindPagesByFingerprint returns every stored page whose image fingerprint
// matches, across all documents. Used for duplicate detection.
func (s *Store) FindPagesByFingerprint(fingerprint string) ([]PageRef, error) {
	return s.FindPagesByFingerprintContext(context.Background(), fingerprint)
}

// FindPagesByFingerprintContext finds matching pages with context support.
func (s *Store) FindPagesByFingerprintContext(ctx context.Context, fingerprint string) ([]PageRef, error) {
	query := `
	SELECT d.identity, p.page_index
	FROM pages p
	JOIN documents d ON d.id = p.document_id
	WHERE p.image_fingerprint = ?
	ORDER BY d.identity ASC, p.page_index ASC
	`

	rows, err := s.conn.QueryContext(ctx, query, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages by fingerprint: %w", err)
	}
	defer rows.Close()

	var refs []PageRef
	for rows.Next() {
		var ref PageRef
		if err := rows.Scan(&ref.DocumentIdentity, &ref.PageIndex); err != nil {
			return nil, fmt.Errorf("failed to scan page ref: %w", err)
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating page refs: %w", err)
	}

	return refs, nil
}

// ListDocuments returns the identities of all tracked documents,
// ordered by identity.
func (s *Store) ListDocuments() ([]string, error) {
	return s.ListDocumentsContext(context.Background())
}

// ListDocumentsContext returns tracked documents with context support.
func (s *Store) ListDocumentsContext(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT identity FROM documents ORDER BY identity ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var identities []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return identities, nil
}

// GetPageCount returns the number of pages stored for a document.
func (s *Store) GetPageCount(identity string) (int, error) {
	return s.GetPageCountContext(context.Background(), identity)
}

// GetPageCountContext returns the stored page count with context support.
func (s *Store) GetPageCountContext(ctx context.Context, identity string) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM pages p
	JOIN documents d ON d.id = p.document_id
	WHERE d.identity = ?
	`

	var count int
	if err := s.conn.QueryRowContext(ctx, query, identity).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return count, nil
}

// GetPageText returns the enrichment payload stored for a page, or nil if
// the page has no enrichment. Returns sql.ErrNoRows for a missing page.
func (s *Store) GetPageText(identity string, pageIndex int) (*schema.OCRResult, error) {
	return s.GetPageTextContext(context.Background(), identity, pageIndex)
}

// GetPageTextContext returns a page's enrichment with context support.
func (s *Store) GetPageTextContext(ctx context.Context, identity string, pageIndex int) (*schema.OCRResult, error) {
	query := `
	SELECT p.ocr_text
	FROM pages p
	JOIN documents d ON d.id = p.document_id
	WHERE d.identity = ? AND p.page_index = ?
	`

	var text sql.NullString
	err := s.conn.QueryRowContext(ctx, query, identity, pageIndex).Scan(&text)
	if err != nil {
		return nil, err
	}
	if !text.Valid || text.String == "" {
		return nil, nil
	}

	return schema.UnmarshalOCRResult(text.String)
}

// UpdatePageText replaces the enrichment payload for an existing page
// without touching its image payload or fingerprint.
func (s *Store) UpdatePageText(identity string, pageIndex int, result *schema.OCRResult) error {
	return s.UpdatePageTextContext(context.Background(), identity, pageIndex, result)
}

// UpdatePageTextContext replaces a page's enrichment with context support.
func (s *Store) UpdatePageTextContext(ctx context.Context, identity string, pageIndex int, result *schema.OCRResult) error {
	payload, err := result.Marshal()
	if err != nil {
		return err
	}

	query := `
	UPDATE pages SET ocr_text = ?
	WHERE document_id = (SELECT id FROM documents WHERE identity = ?)
	  AND page_index = ?
	`
	if _, err := s.conn.ExecContext(ctx, query, payload, identity, pageIndex); err != nil {
		return fmt.Errorf("failed to update ocr text for %s[%d]: %w", identity, pageIndex, err)
	}
	return nil
}

// nullIfEmpty converts an empty string to a SQL NULL.
func nullIfEmpty(v string) sql.NullString {
	if v == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: v, Valid: true}
}
