package orchestrator

import (
	"regexp"
	"strings"
)

// The conversation surface is plain text: structural markdown the model
// tends to emit is stripped before storage.
var (
	codeFenceRe  = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\n?(.*?)```")
	inlineCodeRe = regexp.MustCompile("`([^`]*)`")
	boldRe       = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	italicRe     = regexp.MustCompile(`\*([^*\n]+)\*|\b_([^_\n]+)_\b`)
	headerRe     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
)

// stripMarkup removes emphasis, headers, code spans, and link syntax
// from the assistant's final text.
func stripMarkup(text string) string {
	out := codeFenceRe.ReplaceAllString(text, "$1")
	out = inlineCodeRe.ReplaceAllString(out, "$1")
	out = boldRe.ReplaceAllString(out, "$1$2")
	out = italicRe.ReplaceAllString(out, "$1$2")
	out = headerRe.ReplaceAllString(out, "")
	out = linkRe.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}
