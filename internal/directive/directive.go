// ABOUTME: Control directive detection for group-chat messages
// ABOUTME: Recognizes the end-chat and push-transcript commands and strips bot mentions

package directive

import (
	"regexp"
	"strings"
)

// Directive is a recognized control command embedded in a group-chat message.
type Directive int

const (
	// None means the message carries no control directive.
	None Directive = iota

	// PushTranscript asks for the transcript to be flushed to the ticket now.
	PushTranscript

	// EndChat closes the conversation: flush, notify, remove.
	EndChat
)

// Engineers invoke commands by typing these anywhere in a message, usually
// after a bot mention. EndChat wins when both appear.
const (
	endToken  = "!end"
	pushToken = "!rt"
)

// mentionRE matches a leading Zulip bot mention like "@**support bot** ".
var mentionRE = regexp.MustCompile(`^@\*\*.*?\*\*\s*`)

// StripMention removes a leading bot-mention prefix and surrounding
// whitespace from message content.
func StripMention(content string) string {
	return strings.TrimSpace(mentionRE.ReplaceAllString(content, ""))
}

// Detect reports which control directive, if any, the message content
// carries. Matching is a case-insensitive substring check over the
// mention-stripped content.
func Detect(content string) Directive {
	lowered := strings.ToLower(StripMention(content))
	switch {
	case strings.Contains(lowered, endToken):
		return EndChat
	case strings.Contains(lowered, pushToken):
		return PushTranscript
	default:
		return None
	}
}
