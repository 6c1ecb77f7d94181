package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/steveyegge/scrawl/internal/render"
	syncpkg "github.com/steveyegge/scrawl/internal/sync"
	"github.com/steveyegge/scrawl/internal/ui"
)

var processCmd = &cobra.Command{
	Use:   "process <pdf-file>",
	Short: "Sync a PDF's page images into the database",
	Long: `Render a PDF's pages and store them in the database.

The sync is incremental:
  1. If the file's content fingerprint is unchanged, nothing happens
  2. New pages are inserted, changed pages updated in place
  3. Pages past the current page count are deleted
  4. The document fingerprint is committed last, so an interrupted run
     is safe to simply re-run

Use --force to re-evaluate every page even when the file fingerprint
matches; unchanged pages are still skipped individually.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		path := args[0]

		renderer := render.NewPDFRenderer(newLogger("[render] "))
		result, err := renderer.Render(cmd.Context(), path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		st, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		engine := syncpkg.New(st, newEnricher(), newLogger("[sync] "))
		identity := filepath.Base(path)

		start := time.Now()
		report, err := engine.Sync(context.Background(), identity, result.DocumentBytes, result.Pages, syncpkg.Options{Force: force})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Sync aborted for %s: %v\n", ui.RenderFail("✗"), identity, err)
			if syncpkg.IsRetryable(err) {
				fmt.Fprintf(os.Stderr, "   The sync is safe to re-run.\n")
			}
			os.Exit(1)
		}
		elapsed := time.Since(start)

		switch {
		case report.ShortCircuited:
			fmt.Printf("%s %s unchanged, skipping\n", ui.RenderAccent("≡"), identity)
		default:
			fmt.Printf("%s Synced %s in %v\n", ui.RenderPass("✓"), identity, elapsed.Round(time.Millisecond))
			fmt.Printf("   Pages: %d (inserted=%d updated=%d unchanged=%d deleted=%d)\n",
				report.PageCount, report.Inserted, report.Updated, report.Unchanged, report.Deleted)
		}

		if viper.GetBool("verbose") {
			fmt.Printf("   Database: %s\n", st.Path())
		}
	},
}

func init() {
	processCmd.Flags().BoolP("force", "f", false, "Force processing even if PDF unchanged")
	rootCmd.AddCommand(processCmd)
}
