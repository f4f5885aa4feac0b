// ABOUTME: Group-chat side of the router: directives, media relay, text forwarding
// ABOUTME: Resolves the contact from the structured topic key

package bridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/2389/support-bridge/internal/directive"
	"github.com/2389/support-bridge/internal/store"
	"github.com/2389/support-bridge/internal/topic"
	"github.com/2389/support-bridge/internal/transcript"
)

// uploadLinkRE matches a group-chat upload embedded in message content,
// e.g. "[screenshot.png](/user_uploads/1/ab/screenshot.png)".
var uploadLinkRE = regexp.MustCompile(`\[.*?\]\((/user_uploads/.*?)\)`)

// HandleChatEvent routes one inbound event from the group-chat side.
// The contact is derived from the topic key; events for topics with no open
// conversation are silently dropped. Control directives take precedence over
// forwarding, then attachments, then plain text. Content that is empty after
// mention stripping is a no-op.
func (b *Bridge) HandleChatEvent(ctx context.Context, ev ChatEvent) error {
	if ev.MessageID != "" && b.dedupe.Seen("chat:"+ev.MessageID) {
		b.logger.Debug("duplicate chat event ignored", "message_id", ev.MessageID)
		return nil
	}

	contact := topic.Contact(ev.Topic)
	if contact == "" {
		return nil
	}
	conv, ok := b.store.GetConversation(contact)
	if !ok {
		// No session to route into
		b.logger.Debug("chat event for unknown conversation", "topic", ev.Topic)
		return nil
	}

	content := directive.StripMention(ev.Content)

	switch directive.Detect(ev.Content) {
	case directive.PushTranscript:
		if err := b.flushTranscript(ctx, conv.TicketID); err != nil {
			b.logger.Warn("transcript push failed", "ticket", conv.TicketID, "error", err)
		}
		return nil
	case directive.EndChat:
		b.endConversation(ctx, conv)
		return nil
	}

	if m := uploadLinkRE.FindStringSubmatch(ev.Content); m != nil {
		return b.relayEngineerFile(ctx, conv, m[1], content)
	}

	if content == "" {
		return nil
	}

	b.store.AppendTranscript(conv.TicketID, transcript.EngineerText(content))
	b.store.TouchConversation(conv.Contact, b.now())

	if err := b.channel.SendText(ctx, conv.Contact, content); err != nil {
		b.logger.Warn("forward to contact failed", "contact", conv.Contact, "error", err)
		return fmt.Errorf("forwarding to contact: %w", err)
	}
	return nil
}

// relayEngineerFile downloads a group-chat upload and re-delivers it through
// the channel as image or document, falling back to plain text when the
// channel rejects the media type.
func (b *Bridge) relayEngineerFile(ctx context.Context, conv store.Conversation, uri, caption string) error {
	localPath, err := b.chat.DownloadFile(ctx, uri)
	if err != nil {
		b.logger.Warn("chat download failed", "uri", uri, "error", err)
		return fmt.Errorf("downloading upload: %w", err)
	}
	defer os.Remove(localPath)

	deliveredAs, err := b.channel.SendMedia(ctx, conv.Contact, localPath, caption)
	if err != nil {
		b.logger.Warn("media delivery failed", "contact", conv.Contact, "error", err)
		return fmt.Errorf("delivering media: %w", err)
	}

	name := filepath.Base(uri)
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	b.store.AppendTranscript(conv.TicketID, transcript.EngineerFile(name, deliveredAs))
	b.store.TouchConversation(conv.Contact, b.now())
	return nil
}
