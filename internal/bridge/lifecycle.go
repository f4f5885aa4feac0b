// ABOUTME: Conversation lifecycle: idle expiry sweep, explicit close, transcript flush
// ABOUTME: Flush renders the transcript and posts it as one ticket comment

package bridge

import (
	"context"
	"fmt"

	"github.com/2389/support-bridge/internal/store"
	"github.com/2389/support-bridge/internal/transcript"
)

// Notifications posted to the conversation topic on teardown.
const (
	expiryNotice = "Chat expired after inactivity. Pushing transcript to the ticket and cleaning up."
	closeNotice  = "Chat with customer closed. Transcript will be posted to the ticket."
)

// SweepExpired closes every conversation idle past the TTL: notify the topic,
// flush the transcript best-effort, remove the conversation. Stalled intakes
// past the same TTL are dropped so a contact who never answered restarts from
// the first prompt. Sweeping twice without new activity is a no-op.
func (b *Bridge) SweepExpired(ctx context.Context) {
	now := b.now()

	for _, conv := range b.store.Conversations() {
		if now.Sub(conv.LastActivity) <= b.idleTTL {
			continue
		}
		b.logger.Info("conversation expired", "contact", conv.Contact, "ticket", conv.TicketID)

		if err := b.chat.PostToTopic(ctx, conv.Topic, expiryNotice); err != nil {
			b.logger.Warn("expiry notice failed", "topic", conv.Topic, "error", err)
		}
		if err := b.flushTranscript(ctx, conv.TicketID); err != nil {
			// Best-effort policy: the conversation is removed regardless
			b.logger.Warn("expiry flush failed", "ticket", conv.TicketID, "error", err)
		}
		b.store.RemoveConversation(conv.Contact)
	}

	for _, in := range b.store.Intakes() {
		if now.Sub(in.StartedAt) <= b.idleTTL {
			continue
		}
		b.logger.Info("stalled intake dropped", "contact", in.Contact, "stage", in.Stage)
		b.store.RemoveIntake(in.Contact)
	}
}

// endConversation handles the explicit end-chat directive: same
// flush-then-remove sequence as expiry, plus a direct goodbye to the contact.
func (b *Bridge) endConversation(ctx context.Context, conv store.Conversation) {
	b.logger.Info("conversation closed by engineer", "contact", conv.Contact, "ticket", conv.TicketID)

	if err := b.channel.SendText(ctx, conv.Contact, engineerClosedReply); err != nil {
		b.logger.Warn("close notice to contact failed", "contact", conv.Contact, "error", err)
	}
	if err := b.chat.PostToTopic(ctx, conv.Topic, closeNotice); err != nil {
		b.logger.Warn("close notice to topic failed", "topic", conv.Topic, "error", err)
	}

	if err := b.flushTranscript(ctx, conv.TicketID); err != nil {
		b.logger.Warn("close flush failed", "ticket", conv.TicketID, "error", err)
	}
	b.store.RemoveConversation(conv.Contact)
}

// flushTranscript renders the ticket's pending lines into one HTML document
// and submits it as a ticket comment, clearing the lines on success. The
// ticketing client already retries once with the alternate encoding.
// Ticketless conversations have nothing to flush to.
func (b *Bridge) flushTranscript(ctx context.Context, ticketID int) error {
	if ticketID == 0 {
		b.logger.Debug("skipping flush for ticketless conversation")
		return nil
	}

	lines := b.store.Transcript(ticketID)
	if len(lines) == 0 {
		return nil
	}

	doc := transcript.RenderHTML(ticketID, lines, b.chatBaseURL)
	if err := b.ticketing.PostComment(ctx, ticketID, doc); err != nil {
		return fmt.Errorf("posting transcript comment: %w", err)
	}

	b.store.TakeTranscript(ticketID)
	b.logger.Info("transcript flushed", "ticket", ticketID, "lines", len(lines))
	return nil
}

// Conversations exposes the open conversations for status reporting.
func (b *Bridge) Conversations() []store.Conversation {
	return b.store.Conversations()
}
