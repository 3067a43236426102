package utterance

import "strings"

// KeyCommand is the meaning of a single key press.
type KeyCommand int

const (
	KeyNone KeyCommand = iota
	KeyDigit
	KeyHome
	KeyBack
	KeyProducts
	KeyRepeat
	KeyHelp
	KeyStopSpeech
	KeyToggleListening
	KeySubmit
)

var keyCommandNames = map[KeyCommand]string{
	KeyNone:            "none",
	KeyDigit:           "digit",
	KeyHome:            "home",
	KeyBack:            "back",
	KeyProducts:        "products",
	KeyRepeat:          "repeat",
	KeyHelp:            "help",
	KeyStopSpeech:      "stop_speech",
	KeyToggleListening: "toggle_listening",
	KeySubmit:          "submit",
}

func (k KeyCommand) String() string {
	if s, ok := keyCommandNames[k]; ok {
		return s
	}
	return "unknown"
}

// Key is a parsed key press. Digit is set when Command is KeyDigit.
type Key struct {
	Command KeyCommand
	Digit   int
}

// ParseKey interprets a browser key name ("5", "h", "Escape", " ", ...).
// Arabic-Indic digits are accepted like Western ones.
func ParseKey(key string) Key {
	if r := []rune(key); len(r) == 1 {
		if d, ok := digitValue(r[0]); ok {
			return Key{Command: KeyDigit, Digit: d}
		}
	}

	switch strings.ToLower(key) {
	case "h":
		return Key{Command: KeyHome}
	case "b", "backspace":
		return Key{Command: KeyBack}
	case "p":
		return Key{Command: KeyProducts}
	case "r":
		return Key{Command: KeyRepeat}
	case "?":
		return Key{Command: KeyHelp}
	case "escape", "esc":
		return Key{Command: KeyStopSpeech}
	case " ", "space", "spacebar":
		return Key{Command: KeyToggleListening}
	case "enter":
		return Key{Command: KeySubmit}
	}
	return Key{Command: KeyNone}
}
