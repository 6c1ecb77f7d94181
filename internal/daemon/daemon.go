package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/steveyegge/scrawl/internal/render"
	syncpkg "github.com/steveyegge/scrawl/internal/sync"
)

// Broadcaster receives sync reports for fan-out to observers.
// The dashboard server implements this; a nil Broadcaster is a no-op.
type Broadcaster interface {
	BroadcastSyncReport(report *syncpkg.Report)
}

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long to wait after the last file event before
	// re-syncing. This batches rapid editor writes together.
	DebounceInterval time.Duration

	// Broadcaster publishes each sync report. May be nil.
	Broadcaster Broadcaster

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 250 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon watches one source document and re-syncs its page mirror on change.
type Daemon struct {
	path     string
	renderer render.Renderer
	engine   *syncpkg.Engine
	config   *Config
	watcher  *FileWatcher
}

// New creates a new Daemon instance.
//
// path is the source document to watch. The engine must be backed by an open
// store with its schema initialized. If config is nil, DefaultConfig is used.
func New(path string, renderer render.Renderer, engine *syncpkg.Engine, config *Config) (*Daemon, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	return &Daemon{
		path:     path,
		renderer: renderer,
		engine:   engine,
		config:   config,
		watcher:  watcher,
	}, nil
}

// Run performs an initial sync, then watches the source file and re-syncs on
// every debounced change. It blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.config.Logger.Printf("Starting daemon for %s", d.path)

	if err := d.syncOnce(ctx); err != nil {
		return fmt.Errorf("initial sync failed: %w", err)
	}

	if err := d.watcher.Start(d.path); err != nil {
		return err
	}
	defer d.watcher.Stop()

	d.config.Logger.Printf("Watching: %s", d.path)

	var debounce *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			d.config.Logger.Println("Daemon stopping")
			return nil

		case event, ok := <-d.watcher.Events():
			if !ok {
				return nil
			}
			if event.Op == OpRemove {
				d.config.Logger.Printf("Source removed: %s (waiting for it to reappear)", d.path)
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(d.config.DebounceInterval)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(d.config.DebounceInterval)
			}
			pending = debounce.C

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return nil
			}
			d.config.Logger.Printf("Watch error: %v", err)

		case <-pending:
			pending = nil
			if err := d.syncOnce(ctx); err != nil {
				// A transient render failure (e.g. a half-written file)
				// resolves itself on the next change event.
				d.config.Logger.Printf("Sync failed: %v", err)
			}
		}
	}
}

// syncOnce renders the source and applies one sync pass.
func (d *Daemon) syncOnce(ctx context.Context) error {
	result, err := d.renderer.Render(ctx, d.path)
	if err != nil {
		return err
	}

	identity := filepath.Base(d.path)
	report, err := d.engine.Sync(ctx, identity, result.DocumentBytes, result.Pages, syncpkg.Options{})
	if err != nil {
		return err
	}

	d.config.Logger.Printf("Sync %s: %s (inserted=%d updated=%d unchanged=%d deleted=%d)",
		identity, report.Status, report.Inserted, report.Updated, report.Unchanged, report.Deleted)

	if d.config.Broadcaster != nil {
		d.config.Broadcaster.BroadcastSyncReport(report)
	}
	return nil
}
