package llm

import (
	"regexp"
	"strings"
)

var (
	boldRe     = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe   = regexp.MustCompile(`\*(.*?)\*`)
	listItemRe = regexp.MustCompile(`(?m)^\* (.*)$`)
	listRunRe  = regexp.MustCompile(`(?s)<li>.*?</li>(?:\n<li>.*?</li>)*`)
)

// FormatReply normalizes a model reply to the rich-text representation
// the chat widget renders: markdown emphasis becomes HTML tags, lines
// starting with "* " become list items grouped into lists, and blank
// lines become paragraph breaks.
func FormatReply(text string) string {
	out := boldRe.ReplaceAllString(text, "<strong>$1</strong>")
	out = italicRe.ReplaceAllString(out, "<em>$1</em>")
	out = listItemRe.ReplaceAllString(out, "<li>$1</li>")

	if strings.Contains(out, "<li>") {
		out = listRunRe.ReplaceAllString(out, "<ul>$0</ul>")
	}

	out = strings.ReplaceAll(out, "\n\n", "</p><p>")

	if !strings.HasPrefix(out, "<p>") {
		out = "<p>" + out
	}
	if !strings.HasSuffix(out, "</p>") {
		out = out + "</p>"
	}

	return out
}
