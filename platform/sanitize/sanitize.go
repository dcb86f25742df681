// Package sanitize normalizes client-supplied text before it is stored on a
// case or embedded in a timeline event description.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	blankRun     = regexp.MustCompile(`[ \t]+`)
	newlineRun   = regexp.MustCompile(`\n{3,}`)
)

var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", "\"",
	"&#39;", "'",
	"&nbsp;", " ",
)

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text strips markup and collapses runs of blanks. Paragraph breaks survive,
// so it suits multi-line fields like case descriptions.
func Text(s string) string {
	result := strings.ReplaceAll(StripHTML(s), "\r\n", "\n")
	lines := strings.Split(result, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(blankRun.ReplaceAllString(line, " "))
	}
	result = newlineRun.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(result)
}

// Line flattens text onto a single line. Used for titles, categories and
// reasons that end up inside timeline descriptions.
func Line(s string) string {
	return strings.Join(strings.Fields(StripHTML(s)), " ")
}
