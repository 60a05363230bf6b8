package telegram

import (
	"fmt"
	"html"
	"strings"
	"unicode"

	"github.com/sumbird/sumbird/telegraph"
)

// FormatPost renders the channel announcement for a published day. The
// message uses Telegram HTML entities: bold title, then links to the
// English and Persian summaries, then an optional channel signature.
func FormatPost(published telegraph.Published, channelDisplay string) string {
	title := published.Title
	if title == "" {
		title = "AI Updates on " + published.SourceDate
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", html.EscapeString(title))

	if published.URL != "" {
		fmt.Fprintf(&b, "🇬🇧 <a href=%q>English Summary</a>", published.URL)
		if published.FAURL != "" {
			fmt.Fprintf(&b, "\n🇮🇷 <a href=%q>Persian Summary</a>", published.FAURL)
		}
	}

	if channelDisplay != "" {
		b.WriteString("\n\n" + channelDisplay)
	}
	return b.String()
}

// ValidateChannelID checks the channel identifier format: "@name" for
// public channels, "-100..." or "-..." for private ones, bare digits for
// users.
func ValidateChannelID(channelID string) error {
	switch {
	case channelID == "":
		return fmt.Errorf("channel ID is empty")
	case strings.HasPrefix(channelID, "@") && len(channelID) > 1:
		return nil
	case strings.HasPrefix(channelID, "-100") && isDigits(channelID[4:]):
		return nil
	case strings.HasPrefix(channelID, "-") && isDigits(channelID[1:]):
		return nil
	case isDigits(channelID):
		return nil
	}
	return fmt.Errorf("invalid channel ID format: %q (want @name, -100<id> or a numeric ID)", channelID)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
