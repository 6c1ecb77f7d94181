package ocr

import (
	"regexp"
	"strings"
)

var (
	markdownFenceRE = regexp.MustCompile("(?is)```markdown\\s*\\n(.*?)\\n```")
	anyFenceRE      = regexp.MustCompile("(?s)```\\s*\\n(.*?)\\n```")
)

// extractMarkdownContent pulls the text between ```markdown fences out of a
// model response. Falls back to the first anonymous fence, then to empty.
// The second return value reports whether any fence was found.
func extractMarkdownContent(response string) (string, bool) {
	if m := markdownFenceRE.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := anyFenceRE.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}
