// Package utterance turns raw recognized speech or typed text into forms the
// dialog engine can match against: normalized text, numbers, digits and
// yes/no answers.
package utterance

import (
	"strings"
	"unicode"
)

const tatweel = 'ـ'

// letterFolds maps Arabic letter variants onto the single form used by every
// lookup table in this package.
var letterFolds = map[rune]rune{
	'أ': 'ا',
	'إ': 'ا',
	'آ': 'ا',
	'ٱ': 'ا',
	'ى': 'ي',
	'ی': 'ي',
	'ة': 'ه',
	'ک': 'ك',
}

// Normalize canonicalizes text for matching. It lower-cases, drops diacritics
// and tatweel, folds alef, ya and ta-marbuta variants, replaces punctuation
// with spaces and collapses whitespace. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))

	space := true // suppresses leading and repeated spaces
	for _, r := range strings.ToLower(text) {
		if unicode.Is(unicode.Mn, r) || r == tatweel {
			continue
		}
		if folded, ok := letterFolds[r]; ok {
			r = folded
		}
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		b.WriteRune(r)
		space = false
	}

	return strings.TrimRight(b.String(), " ")
}

// Tokens returns the whitespace-separated tokens of the normalized text.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}
