package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Separator joins the tokens of a comparison key.
const Separator = "_"

// Normalize folds a raw name to its comparison key: diacritics stripped,
// lowercased, every run of non-alphanumerics collapsed to Separator, and
// leading/trailing separators trimmed. "  JOHN   SMITH" and "John Smith"
// both become "john_smith".
func Normalize(raw string) string {
	// transform.Chain is stateful, so one per call.
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, raw)
	if err != nil {
		folded = raw
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteString(Separator)
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Tokens splits a comparison key into its tokens.
func Tokens(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, Separator)
}
