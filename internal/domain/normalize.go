package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// nameSeparators are dropped from names before comparison. They cover the
// separators that show up in scraped CJK and Latin restaurant names.
const nameSeparators = "·•・-_'.,&()（）【】《》「」!！"

// NormalizeName builds the comparison key for restaurant and dish names:
//   - folds full-width Latin letters, digits and punctuation to ASCII
//   - converts to lowercase
//   - removes all whitespace
//   - removes common punctuation (see nameSeparators)
//
// Two names are the same restaurant iff their keys are equal.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(width.Fold.String(name)) {
		if unicode.IsSpace(r) || strings.ContainsRune(nameSeparators, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeText trims and lowercases text and compresses runs of spaces.
// It is used for free-text search where word boundaries matter.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
