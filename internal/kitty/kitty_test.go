package kitty

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

func TestIsKittyTerminal(t *testing.T) {
	t.Setenv("TERM", "xterm-256color")
	t.Setenv("KITTY_WINDOW_ID", "")
	if IsKittyTerminal() {
		t.Error("plain xterm should not be detected as kitty")
	}

	t.Setenv("TERM", "xterm-kitty")
	if !IsKittyTerminal() {
		t.Error("TERM=xterm-kitty should be detected")
	}

	t.Setenv("TERM", "xterm-256color")
	t.Setenv("KITTY_WINDOW_ID", "1")
	if !IsKittyTerminal() {
		t.Error("KITTY_WINDOW_ID should be detected")
	}
}

func TestDisplay_SingleChunk(t *testing.T) {
	var buf bytes.Buffer
	image := []byte("small image payload")

	if err := Display(&buf, image, 0, 0); err != nil {
		t.Fatalf("Display() failed: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "\x1b_Ga=T,f=100;") {
		t.Errorf("missing transmit header: %q", out)
	}
	if !strings.Contains(out, base64.StdEncoding.EncodeToString(image)) {
		t.Error("encoded payload missing from output")
	}
	if !strings.HasSuffix(out, "\x1b\\\n") {
		t.Errorf("missing terminator: %q", out)
	}
	// Single chunk: no continuation parameter.
	if strings.Contains(out, "m=1") {
		t.Errorf("single-chunk transmission must not set m=1: %q", out)
	}
}

func TestDisplay_Dimensions(t *testing.T) {
	var buf bytes.Buffer

	if err := Display(&buf, []byte("img"), 40, 20); err != nil {
		t.Fatalf("Display() failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "c=40") || !strings.Contains(out, "r=20") {
		t.Errorf("cell dimensions missing: %q", out)
	}
}

func TestDisplay_MultiChunk(t *testing.T) {
	var buf bytes.Buffer
	// Large enough that the base64 form spans several 4096-byte chunks.
	image := bytes.Repeat([]byte("0123456789abcdef"), 1024)

	if err := Display(&buf, image, 0, 0); err != nil {
		t.Fatalf("Display() failed: %v", err)
	}

	out := buf.String()
	sequences := strings.Count(out, "\x1b_G")
	if sequences < 2 {
		t.Fatalf("expected multiple escape sequences, got %d", sequences)
	}

	if !strings.Contains(out, "\x1b_Ga=T,f=100,m=1;") {
		t.Errorf("first chunk must carry params and m=1: %q", out[:64])
	}
	if !strings.Contains(out, "\x1b_Gm=0;") {
		t.Error("final chunk must carry m=0")
	}

	// Reassembling the chunk payloads yields the original image.
	var encoded strings.Builder
	for _, seq := range strings.Split(out, "\x1b\\") {
		start := strings.Index(seq, ";")
		if start < 0 {
			continue
		}
		encoded.WriteString(seq[start+1:])
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded.String()))
	if err != nil {
		t.Fatalf("reassembled payload is not valid base64: %v", err)
	}
	if !bytes.Equal(decoded, image) {
		t.Error("reassembled payload does not match the original image")
	}
}
