// ABOUTME: Group-chat outgoing-webhook endpoint for engineer messages
// ABOUTME: Filters the bot's own traffic and answers with response_not_required

package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/2389/support-bridge/internal/bridge"
)

// chatPayload is the group-chat outgoing webhook envelope.
type chatPayload struct {
	Message struct {
		ID          int    `json:"id"`
		Type        string `json:"type"`
		Subject     string `json:"subject"`
		SenderEmail string `json:"sender_email"`
		Content     string `json:"content"`
	} `json:"message"`
}

// handleChatWebhook routes one engineer message from the support stream.
// The bot's own messages loop back through this hook and must be dropped.
func (s *Server) handleChatWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.logger.Warn("undecodable chat webhook", "error", err)
		s.ackChat(w)
		return
	}

	msg := payload.Message
	if msg.SenderEmail == s.config.Chat.BotEmail {
		s.ackChat(w)
		return
	}
	if msg.Type != "" && msg.Type != "stream" {
		s.ackChat(w)
		return
	}

	s.router.SweepExpired(r.Context())

	ev := bridge.ChatEvent{
		Topic:   msg.Subject,
		Sender:  msg.SenderEmail,
		Content: msg.Content,
	}
	// A missing message ID must not collapse distinct events in the dedupe cache
	if msg.ID != 0 {
		ev.MessageID = strconv.Itoa(msg.ID)
	}
	if err := s.router.HandleChatEvent(r.Context(), ev); err != nil {
		s.logger.Warn("chat event failed", "message_id", ev.MessageID, "error", err)
	}

	s.ackChat(w)
}

// ackChat tells the chat server no bot reply is needed for this message.
func (s *Server) ackChat(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"response_not_required": true})
}
