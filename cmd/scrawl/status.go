package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steveyegge/scrawl/internal/extract"
	"github.com/steveyegge/scrawl/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status <pdf-file>",
	Short: "Show sync status for a document",
	Long: `Display what the database currently holds for a document:
its content fingerprint, last sync time, and stored page count.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		identity := filepath.Base(args[0])

		st, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		doc, err := st.GetDocument(identity)
		if errors.Is(err, sql.ErrNoRows) {
			fmt.Printf("%s %s has not been synced\n", ui.RenderWarn("⚠"), identity)
			fmt.Printf("   Run 'scrawl process %s' to sync it\n", args[0])
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		count, err := st.GetPageCount(identity)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s %s\n", ui.RenderPass("✓"), identity)
		fmt.Printf("   Fingerprint: %s\n", doc.ContentFingerprint)
		fmt.Printf("   Last synced: %s\n", doc.LastSyncedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("   Pages:       %d\n", count)
		fmt.Printf("   Database:    %s\n", st.Path())
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all documents in the database",
	Run: func(cmd *cobra.Command, args []string) {
		st, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		identities, err := st.ListDocuments()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(identities) == 0 {
			fmt.Println("No documents in database")
			return
		}

		for _, identity := range identities {
			count, err := st.GetPageCount(identity)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s  (%d pages)\n", identity, count)
		}
	},
}

var dupesCmd = &cobra.Command{
	Use:   "dupes <pdf-file>",
	Short: "Find pages byte-identical to a document's pages",
	Long: `Look up every stored page sharing an image fingerprint with the given
document's pages, across all documents. Useful for spotting duplicated
content without comparing image payloads.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		identity := filepath.Base(args[0])

		st, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		indices, err := st.ListPageIndices(identity)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(indices) == 0 {
			fmt.Printf("%s no pages stored for %s\n", ui.RenderWarn("⚠"), identity)
			return
		}

		found := false
		for _, idx := range indices {
			fp, err := st.GetPageFingerprint(identity, idx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			refs, err := st.FindPagesByFingerprint(fp)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			for _, ref := range refs {
				if ref.DocumentIdentity == identity && ref.PageIndex == idx {
					continue
				}
				found = true
				fmt.Printf("%s page %d matches %s page %d\n",
					identity, idx+1, ref.DocumentIdentity, ref.PageIndex+1)
			}
		}

		if !found {
			fmt.Println("No duplicate pages found")
		}
	},
}

var textCmd = &cobra.Command{
	Use:   "text <pdf-file>",
	Short: "Print extracted text for stored pages",
	Long: `Print the enrichment text stored for the selected pages. Pages synced
without a configured extraction engine carry stub results.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pagesSpec, _ := cmd.Flags().GetString("pages")
		identity := filepath.Base(args[0])

		pages, err := extract.ParsePageRange(pagesSpec)
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

		for _, pageNumber := range pages {
			result, err := st.GetPageText(identity, pageNumber-1)
			if errors.Is(err, sql.ErrNoRows) {
				fmt.Fprintf(os.Stderr, "Warning: page %d not found for %s\n", pageNumber, identity)
				continue
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("--- page %d ---\n", pageNumber)
			if result == nil || result.Text == "" {
				fmt.Println("(no text stored)")
				continue
			}
			fmt.Println(result.Text)
			if result.Error != "" {
				fmt.Printf("%s extraction had failed: %s\n", ui.RenderWarn("⚠"), result.Error)
			}
		}
	},
}

var ocrCmd = &cobra.Command{
	Use:   "ocr <pdf-file>",
	Short: "Re-run text extraction for stored pages",
	Long: `Re-run the configured extraction engine against pages already stored in
the database and replace their enrichment text. The page images themselves
are not touched.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pagesSpec, _ := cmd.Flags().GetString("pages")
		identity := filepath.Base(args[0])

		enricher := newEnricher()
		if enricher == nil {
			fmt.Fprintln(os.Stderr, "Error: no extraction engine configured (ocr.engine = none)")
			os.Exit(1)
		}

		pages, err := extract.ParsePageRange(pagesSpec)
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

		for _, pageNumber := range pages {
			page, err := st.GetPage(identity, pageNumber-1)
			if errors.Is(err, sql.ErrNoRows) {
				fmt.Fprintf(os.Stderr, "Warning: page %d not found for %s\n", pageNumber, identity)
				continue
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			result, err := enricher.ExtractPage(cmd.Context(), page.ImageData, pageNumber, identity)
			if err != nil {
				// Enrichment failures never stop the walk.
				fmt.Fprintf(os.Stderr, "%s page %d: %v\n", ui.RenderWarn("⚠"), pageNumber, err)
				continue
			}

			if err := st.UpdatePageText(identity, pageNumber-1, result); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s page %d: %d characters extracted\n", ui.RenderPass("✓"), pageNumber, len(result.Text))
		}
	},
}

func init() {
	textCmd.Flags().StringP("pages", "p", "", `Page numbers or ranges, e.g. "1", "1-3"`)
	_ = textCmd.MarkFlagRequired("pages")
	ocrCmd.Flags().StringP("pages", "p", "", `Page numbers or ranges, e.g. "1", "1-3"`)
	_ = ocrCmd.MarkFlagRequired("pages")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(textCmd)
	rootCmd.AddCommand(ocrCmd)
}
