package utterance

import (
	"strconv"
	"strings"
)

// numberWords maps spoken number words to their value. Keys are written
// naturally and normalized in init so spelling variants fold together.
var numberWords = map[string]int{}

func init() {
	raw := map[int][]string{
		0: {"صفر", "زيرو", "والو", "zero", "zéro"},
		1: {"واحد", "واحدة", "وحدة", "الاول", "لاول", "اول", "one", "un", "une"},
		2: {"اثنين", "ثنين", "زوز", "زوج", "ثاني", "الثاني", "two", "to", "deux"},
		3: {"ثلاثة", "تلاثة", "تلاث", "ثلاث", "ثالث", "الثالث", "three", "trois"},
		4: {"اربعة", "ربعة", "رابع", "الرابع", "four", "for", "quatre"},
		5: {"خمسة", "خامس", "الخامس", "five", "cinq"},
		6: {"ستة", "سته", "سادس", "السادس", "six"},
		7: {"سبعة", "سابع", "السابع", "seven", "sept"},
		8: {"ثمانية", "تمنية", "ثمنية", "ثامن", "الثامن", "eight", "huit"},
		9: {"تسعة", "تاسع", "التاسع", "nine", "neuf"},
	}
	for value, words := range raw {
		for _, w := range words {
			numberWords[Normalize(w)] = value
		}
	}
}

// ExtractNumbers returns the numbers found in text, one per token, in token
// order. A token yields a Western digit run, else its first Arabic-Indic
// digit (a single 0-9), else an exact number word. Repetitions are kept.
func ExtractNumbers(text string) []int {
	var out []int
	for _, tok := range Tokens(text) {
		if n, ok := tokenNumber(tok); ok {
			out = append(out, n)
		}
	}
	return out
}

// FirstNumber returns the first number in text.
func FirstNumber(text string) (int, bool) {
	nums := ExtractNumbers(text)
	if len(nums) == 0 {
		return 0, false
	}
	return nums[0], true
}

// ExtractDigits concatenates every digit spoken or typed in text, keeping
// leading zeros. Number words contribute a single digit each.
func ExtractDigits(text string) string {
	var b strings.Builder
	for _, tok := range Tokens(text) {
		found := false
		for _, r := range tok {
			if d, ok := digitValue(r); ok {
				b.WriteByte(byte('0' + d))
				found = true
			}
		}
		if found {
			continue
		}
		if n, ok := numberWords[tok]; ok {
			b.WriteString(strconv.Itoa(n))
		}
	}
	return b.String()
}

func tokenNumber(tok string) (int, bool) {
	if run := digitRun(tok, isWesternDigit); run != "" {
		return parseRun(run)
	}
	// Arabic-Indic tokens give one digit; "١٠" reads as 1, not 10.
	for _, r := range tok {
		if isArabicIndicDigit(r) {
			return digitValue(r)
		}
	}
	n, ok := numberWords[tok]
	return n, ok
}

// digitRun returns the first maximal run of runes accepted by isDigit,
// translated to ASCII digits.
func digitRun(tok string, isDigit func(rune) bool) string {
	var b strings.Builder
	for _, r := range tok {
		if isDigit(r) {
			d, _ := digitValue(r)
			b.WriteByte(byte('0' + d))
			continue
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}

func parseRun(run string) (int, bool) {
	n, err := strconv.Atoi(run)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isWesternDigit(r rune) bool { return r >= '0' && r <= '9' }

func isArabicIndicDigit(r rune) bool {
	return (r >= '٠' && r <= '٩') || (r >= '۰' && r <= '۹')
}

func digitValue(r rune) (int, bool) {
	switch {
	case isWesternDigit(r):
		return int(r - '0'), true
	case r >= '٠' && r <= '٩':
		return int(r - '٠'), true
	case r >= '۰' && r <= '۹':
		return int(r - '۰'), true
	}
	return 0, false
}
