// ABOUTME: Conversation router: resolves inbound events to conversations and actions
// ABOUTME: Channel side of the bridge, including the media-cannot-start-intake rule

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/2389/support-bridge/internal/dedupe"
	"github.com/2389/support-bridge/internal/store"
	"github.com/2389/support-bridge/internal/transcript"
)

// Customer-facing copy.
const (
	closedReply = "Chat closed, please contact support to start a new chat."

	promptSubject = "Hi! It looks like you're not currently in a chat.\n" +
		"Would you like to open a new support ticket? If so, please reply with the *subject line* of your issue."

	promptDescription = "Thanks! Now, please describe your issue."

	intakeAck = "Thanks! We've received your request. An engineer will respond once available."

	engineerClosedReply = "Chat closed by engineer. Thank you!"
)

// Config assembles a Bridge from its collaborators.
type Config struct {
	Store     *store.Store
	Channel   ChannelClient
	Chat      ChatClient
	Ticketing TicketClient

	// ChatBaseURL resolves relative upload links in rendered transcripts.
	ChatBaseURL string

	// IdleTTL is how long a conversation (or stalled intake) may sit without
	// activity before the sweep closes it.
	IdleTTL time.Duration

	Logger *slog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Bridge is the session/routing core. It maps contact identities to
// conversations, accumulates transcripts, and decides which collaborator to
// invoke for each inbound event. Collaborator failures are logged and never
// escalate: the boundary layer acknowledges every webhook either way.
type Bridge struct {
	store     *store.Store
	channel   ChannelClient
	chat      ChatClient
	ticketing TicketClient

	dedupe      *dedupe.Cache
	chatBaseURL string
	idleTTL     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Bridge. The dedupe window matches typical webhook retry
// horizons; duplicates inside it are silently acknowledged.
func New(cfg Config) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Bridge{
		store:       cfg.Store,
		channel:     cfg.Channel,
		chat:        cfg.Chat,
		ticketing:   cfg.Ticketing,
		dedupe:      dedupe.New(5*time.Minute, 100_000),
		chatBaseURL: cfg.ChatBaseURL,
		idleTTL:     cfg.IdleTTL,
		logger:      logger.With("component", "bridge"),
		now:         now,
	}
}

// Close releases the dedupe cache's background goroutine.
func (b *Bridge) Close() {
	b.dedupe.Close()
}

// HandleChannelEvent routes one inbound event from the messaging channel.
// Contacts without a conversation enter the intake flow on text, and get the
// fixed closed-chat reply on media. Contacts with a conversation have their
// message logged and forwarded to the conversation's topic.
func (b *Bridge) HandleChannelEvent(ctx context.Context, ev ChannelEvent) error {
	if ev.Contact == "" {
		// Malformed event: acknowledge and move on
		return nil
	}
	if ev.MessageID != "" && b.dedupe.Seen("channel:"+ev.MessageID) {
		b.logger.Debug("duplicate channel event ignored", "message_id", ev.MessageID)
		return nil
	}

	conv, ok := b.store.GetConversation(ev.Contact)
	if !ok {
		switch ev.Type {
		case ChannelEventText:
			err := b.advanceIntake(ctx, ev.Contact, ev.Text)
			b.markRead(ctx, ev.MessageID)
			return err
		case ChannelEventImage, ChannelEventDocument:
			// Media cannot initiate a session
			if err := b.channel.SendText(ctx, ev.Contact, closedReply); err != nil {
				b.logger.Warn("closed-chat reply failed", "contact", ev.Contact, "error", err)
			}
			b.markRead(ctx, ev.MessageID)
			return nil
		default:
			return nil
		}
	}

	var err error
	switch ev.Type {
	case ChannelEventText:
		err = b.relayCustomerText(ctx, conv, ev.Text)
	case ChannelEventImage, ChannelEventDocument:
		err = b.relayCustomerMedia(ctx, conv, ev)
	default:
		return nil
	}

	b.markRead(ctx, ev.MessageID)
	return err
}

// relayCustomerText records and forwards a customer text message.
// Record first, then act: the transcript line is appended before the
// outbound call so the log survives a collaborator failure.
func (b *Bridge) relayCustomerText(ctx context.Context, conv store.Conversation, text string) error {
	b.store.AppendTranscript(conv.TicketID, transcript.CustomerText(text))
	b.store.TouchConversation(conv.Contact, b.now())

	if err := b.chat.PostToTopic(ctx, conv.Topic, text); err != nil {
		b.logger.Warn("forward to topic failed", "contact", conv.Contact, "topic", conv.Topic, "error", err)
		return fmt.Errorf("forwarding to topic: %w", err)
	}
	return nil
}

// relayCustomerMedia downloads inbound media, re-hosts it on the group-chat
// server, and posts a download link under the conversation's topic.
func (b *Bridge) relayCustomerMedia(ctx context.Context, conv store.Conversation, ev ChannelEvent) error {
	localPath, err := b.channel.FetchMedia(ctx, ev.MediaID, ev.Filename)
	if err != nil {
		b.logger.Warn("media fetch failed", "contact", conv.Contact, "media_id", ev.MediaID, "error", err)
		return fmt.Errorf("fetching media: %w", err)
	}
	defer os.Remove(localPath)

	uri, err := b.chat.UploadFile(ctx, localPath)
	if err != nil {
		b.logger.Warn("media upload failed", "contact", conv.Contact, "error", err)
		return fmt.Errorf("uploading media: %w", err)
	}

	kind := "file"
	label := ev.Filename
	if ev.Type == ChannelEventImage {
		kind = "image"
		label = "Download Image"
	}

	b.store.AppendTranscript(conv.TicketID, transcript.CustomerMedia(kind, ev.Caption, uri))
	b.store.TouchConversation(conv.Contact, b.now())

	content := fmt.Sprintf("[%s](%s)\n%s", label, uri, ev.Caption)
	if err := b.chat.PostToTopic(ctx, conv.Topic, content); err != nil {
		b.logger.Warn("media forward to topic failed", "contact", conv.Contact, "error", err)
		return fmt.Errorf("forwarding media to topic: %w", err)
	}
	return nil
}

// markRead acknowledges the channel message; failures are log-only.
func (b *Bridge) markRead(ctx context.Context, messageID string) {
	if messageID == "" {
		return
	}
	if err := b.channel.MarkRead(ctx, messageID); err != nil {
		b.logger.Debug("mark read failed", "message_id", messageID, "error", err)
	}
}
