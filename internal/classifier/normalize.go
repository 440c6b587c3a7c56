package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// NormalizePhrase canonicalizes a phrase for trigger keys and matching.
// Casing, whitespace and script width all converge so that superficially
// different renderings of the same phrase map to the same key; the exact
// same function runs on the write path (feedback grant) and the read path
// (classification lookup).
func NormalizePhrase(s string) string {
	folded := width.Fold.String(s)
	lower := strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(lower))
	space := false
	for _, r := range lower {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteRune(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
