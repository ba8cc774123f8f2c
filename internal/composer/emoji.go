package composer

import "strings"

// shortcodes maps :name: codes to emoji. Small on purpose; the terminal
// is the limiting factor, not the table.
var shortcodes = map[string]string{
	"smile":    "😄",
	"grin":     "😁",
	"joy":      "😂",
	"wink":     "😉",
	"heart":    "❤️",
	"thumbsup": "👍",
	"+1":       "👍",
	"-1":       "👎",
	"wave":     "👋",
	"clap":     "👏",
	"fire":     "🔥",
	"tada":     "🎉",
	"eyes":     "👀",
	"thinking": "🤔",
	"cry":      "😢",
	"pray":     "🙏",
	"rocket":   "🚀",
	"check":    "✅",
	"x":        "❌",
}

// ExpandShortcodes replaces :name: sequences with their emoji. Unknown
// codes are left untouched.
func ExpandShortcodes(text string) string {
	if !strings.Contains(text, ":") {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	for {
		start := strings.IndexByte(text, ':')
		if start < 0 {
			b.WriteString(text)
			break
		}
		end := strings.IndexByte(text[start+1:], ':')
		if end < 0 {
			b.WriteString(text)
			break
		}
		end += start + 1

		code := text[start+1 : end]
		if emoji, ok := shortcodes[code]; ok {
			b.WriteString(text[:start])
			b.WriteString(emoji)
			text = text[end+1:]
			continue
		}
		// Not a known code; keep the first colon and rescan after it.
		b.WriteString(text[:start+1])
		text = text[start+1:]
	}
	return b.String()
}
