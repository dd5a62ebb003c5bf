package markup

import (
	"strings"

	"github.com/forPelevin/gomoji"
)

// DefaultEmoticon replaces emoticons that cannot be mapped.
const DefaultEmoticon = "🙂"

var emoticons = map[string]string{
	"smile":         "🙂",
	"sad":           "😞",
	"cheeky":        "😛",
	"laugh":         "😃",
	"wink":          "😉",
	"thumbs-up":     "👍",
	"thumbs-down":   "👎",
	"information":   "ℹ️",
	"tick":          "✅",
	"cross":         "❌",
	"warning":       "⚠️",
	"plus":          "➕",
	"minus":         "➖",
	"question":      "❓",
	"light-on":      "💡",
	"light-off":     "🌑",
	"yellow-star":   "⭐",
	"red-star":      "🌟",
	"green-star":    "🌟",
	"blue-star":     "🌟",
	"heart":         "❤️",
	"broken-heart":  "💔",
	"blush":         "😊",
	"smile-big":     "😄",
	"wave":          "👋",
	"clap":          "👏",
	"tada":          "🎉",
	"check-mark":    "✔️",
	"exclamation":   "❗",
	"checkbox":      "☑️",
	"star":          "⭐",
	"fire":          "🔥",
	"rocket":        "🚀",
	"thinking-face": "🤔",
}

// emoticonGlyph maps an emoticon name to a glyph. When the name is unknown
// the macro's own fallback is used if it is a real emoji. The second result
// is false when neither worked and DefaultEmoticon was returned.
func emoticonGlyph(name, fallback string) (string, bool) {
	if glyph, ok := emoticons[strings.ToLower(strings.TrimSpace(name))]; ok {
		return glyph, true
	}
	if isEmoji(fallback) {
		return strings.TrimSpace(fallback), true
	}
	return DefaultEmoticon, false
}

// isEmoji reports whether s consists of emoji only.
func isEmoji(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || !gomoji.ContainsEmoji(s) {
		return false
	}
	return strings.TrimSpace(gomoji.RemoveEmojis(s)) == ""
}
