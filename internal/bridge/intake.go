// ABOUTME: Intake state machine: collects subject and description, then opens a ticket
// ABOUTME: none -> awaiting_subject -> awaiting_description -> conversation

package bridge

import (
	"context"
	"fmt"

	"github.com/2389/support-bridge/internal/store"
	"github.com/2389/support-bridge/internal/topic"
)

// advanceIntake drives the intake flow for a contact with no open
// conversation. Each inbound text advances one stage; completing the last
// stage notifies the support stream, creates the ticket, and binds a
// conversation in its place.
func (b *Bridge) advanceIntake(ctx context.Context, contact, text string) error {
	in, ok := b.store.GetIntake(contact)
	if !ok {
		b.store.PutIntake(store.Intake{
			Contact:   contact,
			Stage:     store.StageAwaitingSubject,
			StartedAt: b.now(),
		})
		if err := b.channel.SendText(ctx, contact, promptSubject); err != nil {
			b.logger.Warn("subject prompt failed", "contact", contact, "error", err)
		}
		return nil
	}

	switch in.Stage {
	case store.StageAwaitingSubject:
		in.Subject = text
		in.Stage = store.StageAwaitingDescription
		in.StartedAt = b.now()
		b.store.PutIntake(in)
		if err := b.channel.SendText(ctx, contact, promptDescription); err != nil {
			b.logger.Warn("description prompt failed", "contact", contact, "error", err)
		}
		return nil

	case store.StageAwaitingDescription:
		return b.completeIntake(ctx, in, text)

	default:
		// Unknown stage in a loaded snapshot: restart the flow
		b.logger.Warn("intake in unknown stage, restarting", "contact", contact, "stage", in.Stage)
		b.store.RemoveIntake(contact)
		return b.advanceIntake(ctx, contact, text)
	}
}

// completeIntake is the trigger point: announce the request on the support
// stream, open the ticket, bind the conversation, drop the intake record.
// A failed ticket creation degrades to a ticketless conversation rather than
// blocking the customer.
func (b *Bridge) completeIntake(ctx context.Context, in store.Intake, description string) error {
	conversationTopic := topic.Make(in.Contact, in.Subject)

	announcement := fmt.Sprintf("New support request:\n\nDescription: %s", description)
	if err := b.chat.PostToTopic(ctx, conversationTopic, announcement); err != nil {
		b.logger.Warn("intake announcement failed", "contact", in.Contact, "topic", conversationTopic, "error", err)
	}

	if err := b.channel.SendText(ctx, in.Contact, intakeAck); err != nil {
		b.logger.Warn("intake ack failed", "contact", in.Contact, "error", err)
	}

	ticketID, err := b.ticketing.CreateTicket(ctx, in.Subject, in.Contact, description)
	if err != nil {
		b.logger.Warn("ticket creation failed, conversation will be ticketless",
			"contact", in.Contact, "subject", in.Subject, "error", err)
		ticketID = 0
	}

	b.store.PutConversation(store.Conversation{
		Contact:      in.Contact,
		TicketID:     ticketID,
		Topic:        conversationTopic,
		LastActivity: b.now(),
	})
	b.store.RemoveIntake(in.Contact)

	b.logger.Info("conversation opened",
		"contact", in.Contact, "ticket", ticketID, "topic", conversationTopic)
	return nil
}
