package dialog

// Shortcut is a global command spoken as a repeated digit ("3 3").
type Shortcut int

const (
	ShortcutHome Shortcut = iota + 1
	ShortcutBack
	ShortcutBank
	ShortcutCommerce
	ShortcutRepeat
	ShortcutHelp
)

func (s Shortcut) String() string {
	switch s {
	case ShortcutHome:
		return "home"
	case ShortcutBack:
		return "back"
	case ShortcutBank:
		return "bank"
	case ShortcutCommerce:
		return "commerce"
	case ShortcutRepeat:
		return "repeat"
	case ShortcutHelp:
		return "help"
	}
	return "none"
}

// Section locations reached by shortcuts.
const (
	LocationHome     = "/"
	LocationBank     = "/bank"
	LocationCommerce = "/products"
	LocationLogin    = "/login"
)

// DetectDoubleShortcut returns the shortcut named by the first pair of equal
// adjacent numbers. Repeated digits without a shortcut of their own mean help.
func DetectDoubleShortcut(numbers []int) (Shortcut, bool) {
	for i := 1; i < len(numbers); i++ {
		if numbers[i] != numbers[i-1] {
			continue
		}
		switch numbers[i] {
		case 1:
			return ShortcutHome, true
		case 2:
			return ShortcutBack, true
		case 3:
			return ShortcutBank, true
		case 4:
			return ShortcutCommerce, true
		case 5:
			return ShortcutRepeat, true
		default:
			return ShortcutHelp, true
		}
	}
	return 0, false
}
