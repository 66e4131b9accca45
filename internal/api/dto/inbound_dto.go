// Package dto defines the HTTP request/response shapes and their validation.
package dto

import (
	"github.com/go-playground/validator/v10"

	"github.com/vertice360/leadqual/internal/domain"
)

var validate = validator.New()

// InboundMessageRequest is the provider webhook payload. Provider, channel,
// message id and timestamp are optional; the engine backfills them.
type InboundMessageRequest struct {
	Provider   string `json:"provider" validate:"omitempty,max=64"`
	App        string `json:"app" validate:"omitempty,max=64"`
	Channel    string `json:"channel" validate:"omitempty,max=32"`
	From       string `json:"from" validate:"required,max=32"`
	To         string `json:"to" validate:"omitempty,max=32"`
	MessageID  string `json:"messageId" validate:"omitempty,max=128"`
	Text       string `json:"text" validate:"max=4096"`
	Timestamp  int64  `json:"timestamp" validate:"gte=0"`
	MediaCount int    `json:"mediaCount" validate:"gte=0,lte=50"`
	TicketID   string `json:"ticketId" validate:"omitempty,max=16"`
	Name       string `json:"name" validate:"omitempty,max=128"`
}

// Validate checks the struct tags.
func (r InboundMessageRequest) Validate() error {
	return validate.Struct(r)
}

// ToDomain converts the payload to the engine's inbound contract.
func (r InboundMessageRequest) ToDomain() domain.InboundMessage {
	return domain.InboundMessage{
		Provider:   r.Provider,
		App:        r.App,
		Channel:    r.Channel,
		From:       r.From,
		To:         r.To,
		MessageID:  r.MessageID,
		Text:       r.Text,
		Timestamp:  r.Timestamp,
		MediaCount: r.MediaCount,
		TicketID:   r.TicketID,
		Name:       r.Name,
	}
}

// AnalyzeRequest runs the dialogue pipeline on raw text without touching any
// session state.
type AnalyzeRequest struct {
	Text string `json:"text" validate:"required,max=4096"`
}

// Validate checks the struct tags.
func (r AnalyzeRequest) Validate() error {
	return validate.Struct(r)
}
