package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steveyegge/scrawl/internal/extract"
)

var extractCmd = &cobra.Command{
	Use:   "extract <pdf-file>",
	Short: "Extract stored page images from the database",
	Long: `Extract previously synced page images back out of the database.

Pages are selected with a 1-based specification: "1", "1-3", or "1,3,5-7".
With no output file, a single page goes to stdout (or is displayed inline
when running inside a kitty terminal); multiple pages require either kitty
display or an output pattern, which produces numbered files.

Examples:
  scrawl extract document.pdf -p 1              # Page 1 to stdout/terminal
  scrawl extract document.pdf -p 1 -o page.pdf  # Page 1 to a file
  scrawl extract document.pdf -p 1-3 -o p.pdf   # p_page001.pdf, p_page002.pdf, ...`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pages, _ := cmd.Flags().GetString("pages")
		output, _ := cmd.Flags().GetString("output")
		forceKitty, _ := cmd.Flags().GetBool("kitty")
		noKitty, _ := cmd.Flags().GetBool("no-kitty")
		width, _ := cmd.Flags().GetInt("width")
		height, _ := cmd.Flags().GetInt("height")

		if forceKitty && noKitty {
			fmt.Fprintln(os.Stderr, "Error: cannot specify both --kitty and --no-kitty")
			os.Exit(1)
		}

		st, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		extractor := extract.New(st, newLogger("[extract] "))
		err = extractor.ExtractPages(filepath.Base(args[0]), pages, output, extract.DisplayOptions{
			ForceKitty: forceKitty,
			NoKitty:    noKitty,
			Width:      width,
			Height:     height,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	extractCmd.Flags().StringP("pages", "p", "", `Page numbers or ranges, e.g. "1", "1-3", "1,3,5"`)
	extractCmd.Flags().StringP("output", "o", "", "Output file for extracted image (default: stdout)")
	extractCmd.Flags().Bool("kitty", false, "Force kitty image protocol display")
	extractCmd.Flags().Bool("no-kitty", false, "Disable kitty image protocol, output raw binary")
	extractCmd.Flags().Int("width", 0, "Display width in terminal cells (kitty only)")
	extractCmd.Flags().Int("height", 0, "Display height in terminal cells (kitty only)")
	_ = extractCmd.MarkFlagRequired("pages")
	rootCmd.AddCommand(extractCmd)
}
