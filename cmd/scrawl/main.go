// Command scrawl mirrors a PDF's pages into a SQLite database and keeps the
// mirror synchronized with the source file across runs.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/steveyegge/scrawl/internal/ocr"
	"github.com/steveyegge/scrawl/internal/store"
	syncpkg "github.com/steveyegge/scrawl/internal/sync"
)

var rootCmd = &cobra.Command{
	Use:   "scrawl",
	Short: "Store PDF page images in a synchronized SQLite database",
	Long: `scrawl extracts a PDF's pages and stores them in a SQLite database,
keeping the database synchronized with the source file across repeated runs.

Unchanged documents are detected by content fingerprint and skipped; changed
documents have only their divergent pages rewritten. Stored pages can be
extracted back out to files or displayed inline in a kitty terminal.

Examples:
  scrawl process document.pdf              # Sync page images into the database
  scrawl process document.pdf --force      # Re-evaluate every page
  scrawl extract document.pdf -p 1-3 -o page.pdf
  scrawl status document.pdf
  scrawl watch document.pdf                # Re-sync on every file change`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("database", "d", "scrawl.db", "SQLite database file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	_ = viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig wires viper: flag values override config file values, which
// override SCRAWL_* environment variables' defaults.
func initConfig() {
	viper.SetDefault("database", "scrawl.db")
	viper.SetDefault("ocr.engine", "stub")
	viper.SetDefault("ocr.model", "")

	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".scrawl")
		viper.SetConfigType("toml")
	}

	viper.SetEnvPrefix("SCRAWL")
	viper.AutomaticEnv()

	// A missing config file is fine; a malformed one is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: could not read config file: %v\n", err)
		}
	}
}

// newLogger returns a component logger honoring --verbose. When verbose is
// off the logger discards output; CLI summaries are printed separately.
func newLogger(prefix string) *log.Logger {
	if viper.GetBool("verbose") {
		return log.New(os.Stderr, prefix, log.LstdFlags)
	}
	return log.New(io.Discard, prefix, 0)
}

// openStore opens the configured database and initializes its schema.
func openStore() (*store.Store, error) {
	st, err := store.Open(viper.GetString("database"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", syncpkg.ErrStoreUnavailable, err)
	}
	if err := st.InitSchema(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("%w: %v", syncpkg.ErrStoreUnavailable, err)
	}
	return st, nil
}

// newEnricher builds the configured text-extraction engine.
func newEnricher() syncpkg.Enricher {
	switch viper.GetString("ocr.engine") {
	case "claude":
		return ocr.NewClaude(
			viper.GetString("anthropic_api_key"),
			viper.GetString("ocr.model"),
			newLogger("[ocr] "),
		)
	case "none":
		return nil
	default:
		return ocr.NewStub()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
