package utterance

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only punctuation", " ?!.، ", ""},
		{"latin casing", "Hello   WORLD", "hello world"},
		{"alef forms", "أحمد إبراهيم آمنة", "احمد ابراهيم امنه"},
		{"alef maqsura", "مستشفى", "مستشفي"},
		{"ta marbuta", "ثلاثة", "ثلاثه"},
		{"diacritics", "مَرْحَبًا", "مرحبا"},
		{"tatweel", "مـــرحبا", "مرحبا"},
		{"punctuation splits", "نعم،باهي!", "نعم باهي"},
		{"digits kept", "رقم ٣ و 4", "رقم ٣ و 4"},
		{"mixed register", "Oui, D'ACCORD", "oui d accord"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"", "  ", "مَرْحَبًا بِيكْ", "İstanbul ẞtraße", "ÀÉÎ õ", "١٢٣ 456 ۷۸۹",
		"áb⃝", "\t\nنعم لا ", "ـــ", "x--y__z", "ǅemal",
		strings.Repeat("أإآ ى ة ", 10),
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestExtractNumbers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []int
	}{
		{"empty", "", nil},
		{"no numbers", "ما فهمتش", nil},
		{"western digit", "اختار 3", []int{3}},
		{"western run", "حول 150 دينار", []int{150}},
		{"arabic indic", "٣", []int{3}},
		{"arabic indic separate tokens", "١ ٠", []int{1, 0}},
		{"arabic indic pair not reassembled", "١٠", []int{1}},
		{"arabic indic run gives first digit", "حول ١٥٠ دينار", []int{1}},
		{"persian digit", "۷", []int{7}},
		{"word", "واحد", []int{1}},
		{"ta marbuta variant", "ثلاثة", []int{3}},
		{"dialect spelling", "تلاثة", []int{3}},
		{"tunisian two", "زوز", []int{2}},
		{"english and french", "two trois", []int{2, 3}},
		{"repetition kept", "3 3", []int{3, 3}},
		{"order kept", "خمسة و 2 و ٧", []int{5, 2, 7}},
		{"digit inside token", "option2", []int{2}},
		{"first run per token", "12a34", []int{12}},
		{"overflow ignored", "99999999999999999999999", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractNumbers(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractNumbers(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractNumbersDigitSystemInvariance(t *testing.T) {
	toIndic := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return '٠' + (r - '0')
			}
			return r
		}, s)
	}
	toPersian := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return '۰' + (r - '0')
			}
			return r
		}, s)
	}

	inputs := []string{"0", "7", "3 3", "1 2 3 4", "4 4 4", "9 0", "option2", "1 و 5"}
	for _, in := range inputs {
		want := ExtractNumbers(in)
		if got := ExtractNumbers(toIndic(in)); !reflect.DeepEqual(got, want) {
			t.Errorf("ExtractNumbers(%q) = %v, want %v", toIndic(in), got, want)
		}
		if got := ExtractNumbers(toPersian(in)); !reflect.DeepEqual(got, want) {
			t.Errorf("ExtractNumbers(%q) = %v, want %v", toPersian(in), got, want)
		}
	}
}

func TestExtractDigits(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"123456", "123456"},
		{"012345", "012345"},
		{"1 2 3 4 5 6", "123456"},
		{"١٢٣٤٥٦", "123456"},
		{"واحد زوز ثلاثة اربعة خمسة ستة", "123456"},
		{"12 ثلاثة 45", "12345"},
		{"الرمز متاعي", ""},
	}
	for _, tt := range tests {
		if got := ExtractDigits(tt.in); got != tt.want {
			t.Errorf("ExtractDigits(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFirstNumber(t *testing.T) {
	if n, ok := FirstNumber("حول 50 ثم 20"); !ok || n != 50 {
		t.Errorf("FirstNumber = %d, %v, want 50, true", n, ok)
	}
	if _, ok := FirstNumber("والله ما نعرف"); ok {
		t.Error("FirstNumber found a number in text without one")
	}
}

func TestIsYesIsNo(t *testing.T) {
	tests := []struct {
		in      string
		yes, no bool
	}{
		{"نعم", true, false},
		{"إي باهي", true, false},
		{"OK", true, false},
		{"Oui!", true, false},
		{"لا", false, true},
		{"non merci", false, true},
		{"موش هكا", false, true},
		{"تمام برشا", true, false},
		// whole tokens only
		{"نعمة", false, false},
		{"لابس", false, false},
		{"know", false, false},
		{"nonsense", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		if got := IsYes(tt.in); got != tt.yes {
			t.Errorf("IsYes(%q) = %v, want %v", tt.in, got, tt.yes)
		}
		if got := IsNo(tt.in); got != tt.no {
			t.Errorf("IsNo(%q) = %v, want %v", tt.in, got, tt.no)
		}
	}
}

func TestIsCancel(t *testing.T) {
	if !IsCancel("إلغاء") {
		t.Error("IsCancel(إلغاء) = false, want true")
	}
	if !IsCancel("annuler svp") {
		t.Error("IsCancel(annuler svp) = false, want true")
	}
	if IsCancel("محمد") {
		t.Error("IsCancel(محمد) = true, want false")
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		key  string
		want Key
	}{
		{"5", Key{Command: KeyDigit, Digit: 5}},
		{"٧", Key{Command: KeyDigit, Digit: 7}},
		{"0", Key{Command: KeyDigit, Digit: 0}},
		{"h", Key{Command: KeyHome}},
		{"H", Key{Command: KeyHome}},
		{"Backspace", Key{Command: KeyBack}},
		{"p", Key{Command: KeyProducts}},
		{"r", Key{Command: KeyRepeat}},
		{"?", Key{Command: KeyHelp}},
		{"Escape", Key{Command: KeyStopSpeech}},
		{" ", Key{Command: KeyToggleListening}},
		{"Enter", Key{Command: KeySubmit}},
		{"Shift", Key{Command: KeyNone}},
	}
	for _, tt := range tests {
		if got := ParseKey(tt.key); got != tt.want {
			t.Errorf("ParseKey(%q) = %+v, want %+v", tt.key, got, tt.want)
		}
	}
}
