package urltemplates

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	codeStripRegex = regexp.MustCompile(`[^a-z0-9_\s-]`)
	codeSepRegex   = regexp.MustCompile(`[\s-]+`)
)

// SanitizeCode turns free text into a slug: accents folded, lowercase,
// separators collapsed to underscores.
func SanitizeCode(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = codeStripRegex.ReplaceAllString(s, "")
	s = codeSepRegex.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
