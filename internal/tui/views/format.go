package views

import (
	"github.com/dkzef/chirp/internal/delivery"
)

// statusIndicator renders a delivery status as ticks, colored with tview
// markup. Mirrors the usual messenger convention: one tick sent, two
// delivered, two highlighted once seen.
func statusIndicator(s delivery.Status) string {
	switch s {
	case delivery.Sending:
		return "[gray]…[-]"
	case delivery.Sent:
		return "[gray]✓[-]"
	case delivery.Delivered:
		return "[gray]✓✓[-]"
	case delivery.Seen:
		return "[blue]✓✓[-]"
	case delivery.Failed:
		return "[red]✗ failed[-]"
	default:
		return ""
	}
}

// mediaMarker renders a non-text message's body line.
func mediaMarker(messageType string) string {
	switch messageType {
	case "image":
		return "📷 Photo"
	case "video":
		return "🎥 Video"
	case "audio":
		return "🎤 Voice message"
	case "file":
		return "📎 File"
	case "call":
		return "📞 Call"
	default:
		return ""
	}
}
