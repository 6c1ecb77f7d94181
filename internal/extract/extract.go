// Package extract reads stored page images back out of the database and
// delivers them to files, stdout, or an image-capable terminal.
package extract

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/steveyegge/scrawl/internal/kitty"
	"github.com/steveyegge/scrawl/internal/store"
)

var rangeRE = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)$`)

// ParsePageRange parses a page specification into a sorted, deduplicated
// list of 1-based page numbers.
//
// Examples:
//
//	"1"        -> [1]
//	"1-3"      -> [1 2 3]
//	"1,3,5"    -> [1 3 5]
//	"1-3,7-9"  -> [1 2 3 7 8 9]
func ParsePageRange(spec string) ([]int, error) {
	seen := make(map[int]bool)

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if m := rangeRE.FindStringSubmatch(part); m != nil {
			start, _ := strconv.Atoi(m[1])
			end, _ := strconv.Atoi(m[2])
			if start > end {
				return nil, fmt.Errorf("invalid range: start (%d) > end (%d)", start, end)
			}
			if start < 1 {
				return nil, fmt.Errorf("page numbers must be >= 1, got: %d", start)
			}
			for n := start; n <= end; n++ {
				seen[n] = true
			}
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid page number: %s", part)
		}
		if n < 1 {
			return nil, fmt.Errorf("page numbers must be >= 1, got: %d", n)
		}
		seen[n] = true
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("no valid page numbers specified")
	}

	pages := make([]int, 0, len(seen))
	for n := range seen {
		pages = append(pages, n)
	}
	sort.Ints(pages)
	return pages, nil
}

// DisplayOptions control how extracted images are delivered when no output
// file is given.
type DisplayOptions struct {
	// ForceKitty transmits via the kitty protocol even outside kitty.
	ForceKitty bool
	// NoKitty disables kitty transmission and falls back to raw bytes.
	NoKitty bool
	// Width and Height are terminal cell dimensions (kitty only, 0 = auto).
	Width  int
	Height int
}

// useKitty decides whether inline terminal display applies.
func (d DisplayOptions) useKitty() bool {
	if d.NoKitty {
		return false
	}
	return d.ForceKitty || kitty.IsKittyTerminal()
}

// Extractor reads page images out of the store.
type Extractor struct {
	store  *store.Store
	logger *log.Logger
}

// New creates an extractor over an open store.
// If logger is nil, a default logger writing to stderr is used.
func New(st *store.Store, logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.New(os.Stderr, "[extract] ", 0)
	}
	return &Extractor{store: st, logger: logger}
}

// ExtractPages delivers the requested pages of a document.
//
// outputPath empty means inline terminal display (kitty) or raw stdout;
// multiple pages with an output path are written as numbered files derived
// from the path (base_pageNNN.ext). A requested page missing from the store
// is an error for a single-page request and a logged warning otherwise.
func (e *Extractor) ExtractPages(identity, pagesSpec, outputPath string, opts DisplayOptions) error {
	pages, err := ParsePageRange(pagesSpec)
	if err != nil {
		return err
	}

	if _, err := e.store.GetDocument(identity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("document not found in database: %s", identity)
		}
		return fmt.Errorf("failed to look up document %s: %w", identity, err)
	}

	if len(pages) == 1 {
		pageNumber := pages[0]
		image, err := e.pageImage(identity, pageNumber)
		if err != nil {
			return err
		}
		return e.output(image, outputPath, pageNumber, opts)
	}

	if outputPath == "" {
		if !opts.useKitty() {
			return fmt.Errorf("multiple pages cannot share one stdout stream; specify an output file pattern with -o")
		}
		for _, pageNumber := range pages {
			image, err := e.pageImage(identity, pageNumber)
			if err != nil {
				e.logger.Printf("Warning: page %d not found for %s", pageNumber, identity)
				continue
			}
			if err := e.output(image, "", pageNumber, opts); err != nil {
				return err
			}
		}
		return nil
	}

	ext := filepath.Ext(outputPath)
	if ext == "" {
		ext = ".pdf"
	}
	base := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	dir := filepath.Dir(outputPath)

	for _, pageNumber := range pages {
		image, err := e.pageImage(identity, pageNumber)
		if err != nil {
			e.logger.Printf("Warning: page %d not found for %s", pageNumber, identity)
			continue
		}
		numbered := filepath.Join(dir, fmt.Sprintf("%s_page%03d%s", base, pageNumber, ext))
		if err := e.output(image, numbered, pageNumber, opts); err != nil {
			return err
		}
	}
	return nil
}

// pageImage loads one page payload, converting the 1-based request to the
// store's 0-based index.
func (e *Extractor) pageImage(identity string, pageNumber int) ([]byte, error) {
	page, err := e.store.GetPage(identity, pageNumber-1)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("page %d not found for document: %s", pageNumber, identity)
		}
		return nil, fmt.Errorf("failed to load page %d of %s: %w", pageNumber, identity, err)
	}
	return page.ImageData, nil
}

// output delivers one image to a file, the terminal, or raw stdout.
func (e *Extractor) output(image []byte, outputPath string, pageNumber int, opts DisplayOptions) error {
	if outputPath != "" {
		if err := os.WriteFile(outputPath, image, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outputPath, err)
		}
		e.logger.Printf("Page %d written to: %s", pageNumber, outputPath)
		return nil
	}

	if opts.useKitty() {
		if err := kitty.Display(os.Stdout, image, opts.Width, opts.Height); err != nil {
			return err
		}
		e.logger.Printf("Page %d displayed in terminal", pageNumber)
		return nil
	}

	// Raw binary only goes to a pipe or redirect, never a live terminal.
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("refusing to write binary image data to a terminal; redirect stdout or use -o")
	}

	if _, err := os.Stdout.Write(image); err != nil {
		return fmt.Errorf("failed to write image to stdout: %w", err)
	}
	return nil
}
