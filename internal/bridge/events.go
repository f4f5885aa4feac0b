// ABOUTME: Inbound event types for both sides of the bridge
// ABOUTME: The boundary layer decodes webhooks into these before routing

package bridge

// ChannelEventType identifies the payload kind of a channel event.
type ChannelEventType string

const (
	ChannelEventText     ChannelEventType = "text"
	ChannelEventImage    ChannelEventType = "image"
	ChannelEventDocument ChannelEventType = "document"
)

// ChannelEvent is an inbound message from the messaging channel.
// Each platform message carries a unique MessageID used for deduplication
// and read receipts.
type ChannelEvent struct {
	MessageID string
	Contact   string
	Type      ChannelEventType

	// Text is set for text events.
	Text string

	// MediaID, Filename, and Caption are set for image/document events.
	MediaID  string
	Filename string
	Caption  string
}

// ChatEvent is an inbound message from the group-chat side.
type ChatEvent struct {
	MessageID string
	Topic     string
	Sender    string
	Content   string
}
