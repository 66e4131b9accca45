package domain

import (
	"strconv"
	"strings"
)

// InboundMessage is the normalized inbound contract handed over by the
// transport collaborator. Timestamp is epoch milliseconds.
type InboundMessage struct {
	Provider   string `json:"provider"`
	App        string `json:"app,omitempty"`
	Channel    string `json:"channel"`
	From       string `json:"from"`
	To         string `json:"to"`
	MessageID  string `json:"messageId"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
	MediaCount int    `json:"mediaCount"`
	TicketID   string `json:"ticketId,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Normalize backfills defaults the way providers are allowed to omit them:
// provider/channel fall back to WhatsApp, a missing message id becomes a
// local synthetic one, and a missing timestamp becomes now.
func (m InboundMessage) Normalize(nowMS int64) InboundMessage {
	out := m
	if strings.TrimSpace(out.Provider) == "" {
		out.Provider = "meta_whatsapp"
	}
	if strings.TrimSpace(out.Channel) == "" {
		out.Channel = "whatsapp"
	}
	if out.Timestamp <= 0 {
		out.Timestamp = nowMS
	}
	if strings.TrimSpace(out.MessageID) == "" {
		out.MessageID = "local-" + strconv.FormatInt(out.Timestamp, 10)
	}
	if out.MediaCount < 0 {
		out.MediaCount = 0
	}
	out.TicketID = strings.TrimSpace(out.TicketID)
	return out
}

// ConversationKey derives the session identity for this message.
func (m InboundMessage) ConversationKey() string {
	app := m.App
	if strings.TrimSpace(app) == "" {
		app = m.Channel
	}
	return ConversationKey(m.Provider, app, m.From)
}

// Subject builds the session subject from the first message text.
func (m InboundMessage) Subject() string {
	subject := strings.TrimSpace(m.Text)
	if subject == "" {
		return "Inbound message"
	}
	if len(subject) > 120 {
		return subject[:117] + "..."
	}
	return subject
}
