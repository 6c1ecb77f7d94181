// Package kitty writes images to the terminal using the kitty graphics
// protocol (escape sequence transmission of base64 chunks).
package kitty

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
)

// chunkSize is the kitty protocol's maximum escape payload per sequence.
const chunkSize = 4096

// IsKittyTerminal reports whether the current terminal speaks the kitty
// graphics protocol.
func IsKittyTerminal() bool {
	return os.Getenv("TERM") == "xterm-kitty" || os.Getenv("KITTY_WINDOW_ID") != ""
}

// Display transmits an image inline. width and height are terminal cell
// dimensions; zero lets the terminal auto-size.
func Display(w io.Writer, image []byte, width, height int) error {
	encoded := base64.StdEncoding.EncodeToString(image)

	params := []string{
		"a=T",   // action: transmit and display
		"f=100", // format: PNG-compatible payload
	}
	if width > 0 {
		params = append(params, fmt.Sprintf("c=%d", width))
	}
	if height > 0 {
		params = append(params, fmt.Sprintf("r=%d", height))
	}
	paramString := strings.Join(params, ",")

	var chunks []string
	for i := 0; i < len(encoded); i += chunkSize {
		end := i + chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		chunks = append(chunks, encoded[i:end])
	}

	for i, chunk := range chunks {
		var seq string
		switch {
		case len(chunks) == 1:
			seq = fmt.Sprintf("\x1b_G%s;%s\x1b\\", paramString, chunk)
		case i == 0:
			seq = fmt.Sprintf("\x1b_G%s,m=1;%s\x1b\\", paramString, chunk)
		case i == len(chunks)-1:
			seq = fmt.Sprintf("\x1b_Gm=0;%s\x1b\\", chunk)
		default:
			seq = fmt.Sprintf("\x1b_Gm=1;%s\x1b\\", chunk)
		}
		if _, err := io.WriteString(w, seq); err != nil {
			return fmt.Errorf("failed to write image chunk: %w", err)
		}
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("failed to write trailing newline: %w", err)
	}
	return nil
}
