package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/steveyegge/scrawl/internal/schema"
	syncpkg "github.com/steveyegge/scrawl/internal/sync"
)

// DefaultModel is the vision model used when none is configured.
const DefaultModel = "claude-3-5-haiku-latest"

const extractionPrompt = "Turn this into markdown text, demarcated by the " +
	"```markdown code tag. If there are parts which appear to be illustrations " +
	"or unreadable, embed them as SVG content. If this is a blank page with no " +
	"text content, just return an empty ```markdown region."

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

// Claude extracts page text using the Anthropic Messages API with a vision
// attachment. Page payloads may be PNG images or single-page PDFs; the
// attachment block is chosen from the payload's magic bytes.
type Claude struct {
	client anthropic.Client
	model  string
	logger *log.Logger
}

// NewClaude creates a Claude extraction engine.
//
// apiKey may be empty, in which case the SDK reads ANTHROPIC_API_KEY from the
// environment. model may be empty to use DefaultModel. If logger is nil, a
// default logger writing to stderr is used.
func NewClaude(apiKey, model string, logger *log.Logger) *Claude {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[ocr] ", log.LstdFlags)
	}
	return &Claude{
		client: anthropic.NewClient(opts...),
		model:  model,
		logger: logger,
	}
}

// ExtractPage sends the page payload to the model and parses the fenced
// markdown out of the response.
func (c *Claude) ExtractPage(ctx context.Context, image []byte, pageNumber int, documentName string) (*schema.OCRResult, error) {
	start := time.Now()

	encoded := base64.StdEncoding.EncodeToString(image)

	var attachment anthropic.ContentBlockParamUnion
	if bytes.HasPrefix(image, pngMagic) {
		attachment = anthropic.NewImageBlockBase64("image/png", encoded)
	} else {
		attachment = anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
			Data: encoded,
		})
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				attachment,
				anthropic.NewTextBlock(extractionPrompt),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s page %d: %v", syncpkg.ErrEnrichmentFailed, documentName, pageNumber, err)
	}

	var response strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	text, found := extractMarkdownContent(response.String())
	if !found {
		c.logger.Printf("Page %d of %s: response had no markdown fences", pageNumber, documentName)
	}

	return &schema.OCRResult{
		Text:             text,
		Confidence:       1.0, // the model does not report confidence
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		Engine:           "claude",
		Model:            c.model,
	}, nil
}
