package template

import (
	"regexp"
	"strings"

	"github.com/gatherly/notify/internal/domain"
)

// smsMaxLength is the hard character budget for SMS bodies, ellipsis included.
const smsMaxLength = 160

// Formatter applies one channel-specific transform to rendered content.
type Formatter func(content string) string

var (
	boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)
	codePattern = regexp.MustCompile("`([^`]+)`")
)

// formatters maps each channel to its transform. A channel absent from the
// table passes content through unchanged.
var formatters = map[domain.Channel]Formatter{
	domain.ChannelEmail:    passThrough,
	domain.ChannelTelegram: toTelegramHTML,
	domain.ChannelWhatsApp: toWhatsAppMarkup,
	domain.ChannelSMS:      toPlainSMS,
}

// FormatForChannel applies the channel's transform from the lookup table.
func FormatForChannel(content string, channel domain.Channel) string {
	f, ok := formatters[channel]
	if !ok {
		return content
	}
	return f(content)
}

func passThrough(content string) string { return content }

// toTelegramHTML converts the catalog's markdown emphasis into the HTML spans
// the bot API accepts with parse_mode=HTML.
func toTelegramHTML(content string) string {
	out := boldPattern.ReplaceAllString(content, "<b>$1</b>")
	out = codePattern.ReplaceAllString(out, "<code>$1</code>")
	return out
}

// toWhatsAppMarkup converts to WhatsApp's single-asterisk/backtick-fence
// conventions.
func toWhatsAppMarkup(content string) string {
	out := boldPattern.ReplaceAllString(content, "*$1*")
	out = codePattern.ReplaceAllString(out, "```$1```")
	return out
}

// toPlainSMS strips markup and enforces the SMS length budget. The budget is
// counted in runes; a truncated body ends in "..." and is exactly smsMaxLength
// runes long.
func toPlainSMS(content string) string {
	out := boldPattern.ReplaceAllString(content, "$1")
	out = codePattern.ReplaceAllString(out, "$1")
	out = strings.ReplaceAll(out, "__", "")

	runes := []rune(out)
	if len(runes) <= smsMaxLength {
		return out
	}
	return string(runes[:smsMaxLength-3]) + "..."
}
