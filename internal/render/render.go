// Package render turns a source document into the ordered page payloads the
// sync engine consumes.
package render

import "context"

// Result is a renderer's output for one document: the source's own bytes
// (for whole-document fingerprinting) and one payload per page, ordered by
// page position starting at index 0.
type Result struct {
	DocumentBytes []byte
	Pages         [][]byte
}

// Renderer produces page payloads from a source document on disk.
//
// Decoding errors are terminal for the document: the caller surfaces them
// and performs no sync. Renderers never retry.
type Renderer interface {
	Render(ctx context.Context, path string) (*Result, error)
}
