// ABOUTME: Collaborator interfaces the routing core depends on
// ABOUTME: Narrow views of the channel, group-chat, and ticketing clients

package bridge

import "context"

// ChannelClient is what the router needs from the messaging-channel side.
type ChannelClient interface {
	// SendText delivers a plain text message to a contact.
	SendText(ctx context.Context, contact, text string) error

	// SendMedia delivers a local file to a contact as image or document,
	// returning the media type it was delivered as.
	SendMedia(ctx context.Context, contact, localPath, caption string) (string, error)

	// FetchMedia downloads inbound media by its platform ID into a local file.
	FetchMedia(ctx context.Context, mediaID, filename string) (string, error)

	// MarkRead acknowledges an inbound message.
	MarkRead(ctx context.Context, messageID string) error
}

// ChatClient is what the router needs from the group-chat side.
type ChatClient interface {
	// PostToTopic sends a message to the support stream under topic.
	PostToTopic(ctx context.Context, topic, content string) error

	// UploadFile stores a local file on the chat server, returning its URI.
	UploadFile(ctx context.Context, localPath string) (string, error)

	// DownloadFile fetches an upload by URI into a local file.
	DownloadFile(ctx context.Context, uri string) (string, error)
}

// TicketClient is what the router needs from the ticketing system.
type TicketClient interface {
	// CreateTicket opens a ticket and returns its ID.
	CreateTicket(ctx context.Context, subject, requestor, description string) (int, error)

	// PostComment attaches an HTML document as a ticket comment.
	PostComment(ctx context.Context, ticketID int, html string) error
}
