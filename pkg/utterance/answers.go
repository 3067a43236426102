package utterance

var (
	yesWords = wordSet(
		"نعم", "اي", "إيه", "ايوه", "صحيح", "موافق", "باهي", "تمام", "مريقل", "واه",
		"ok", "okay", "yes", "yeah", "yep", "oui", "ouais", "ah", "y", "ye",
	)
	noWords = wordSet(
		"لا", "للا", "لالا", "غلط", "مش", "موش", "مانيش", "ماحبيتش",
		"no", "nope", "non", "n",
	)
	cancelWords = wordSet(
		"الغاء", "إلغاء", "بطل", "بطلنا", "اخرج", "annuler", "cancel", "stop",
	)
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[Normalize(w)] = struct{}{}
	}
	return set
}

// IsYes reports whether any token of text is an affirmative word.
func IsYes(text string) bool { return containsToken(text, yesWords) }

// IsNo reports whether any token of text is a negative word.
func IsNo(text string) bool { return containsToken(text, noWords) }

// IsCancel reports whether text asks to abandon the current flow.
func IsCancel(text string) bool { return containsToken(text, cancelWords) }

func containsToken(text string, set map[string]struct{}) bool {
	for _, tok := range Tokens(text) {
		if _, ok := set[tok]; ok {
			return true
		}
	}
	return false
}
