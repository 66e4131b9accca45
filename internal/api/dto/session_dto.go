package dto

import (
	"github.com/vertice360/leadqual/internal/domain"
)

// SessionSummary is the list-view projection of a session.
type SessionSummary struct {
	TicketID        string               `json:"ticketId"`
	ConversationKey string               `json:"conversationKey"`
	Status          domain.SessionStatus `json:"status"`
	Provider        string               `json:"provider"`
	Channel         string               `json:"channel"`
	Subject         string               `json:"subject"`
	HandoffStage    domain.HandoffStage  `json:"handoffStage"`
	HandoffRequired bool                 `json:"handoffRequired"`
	CreatedAt       int64                `json:"createdAt"`
	UpdatedAt       int64                `json:"updatedAt"`
}

// SessionDetailResponse provides the full session snapshot.
type SessionDetailResponse struct {
	SessionSummary
	Customer   domain.Customer          `json:"customer"`
	Assignee   *domain.Assignee         `json:"assignee,omitempty"`
	Profile    domain.CommercialProfile `json:"commercial"`
	Memory     domain.SlotMemory        `json:"slotMemory"`
	SLA        *domain.SLA              `json:"sla,omitempty"`
	Escalation *domain.Escalation       `json:"escalation,omitempty"`
	Timeline   []domain.TimelineEntry   `json:"timeline"`
	Messages   []domain.Message         `json:"messages"`
}

// NewSessionSummary projects a session for list responses.
func NewSessionSummary(s *domain.Session) SessionSummary {
	return SessionSummary{
		TicketID:        s.ID,
		ConversationKey: s.ConversationKey,
		Status:          s.Status,
		Provider:        s.Provider,
		Channel:         s.Channel,
		Subject:         s.Subject,
		HandoffStage:    s.HandoffStage,
		HandoffRequired: s.HandoffRequired,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// NewSessionDetail projects a full session snapshot.
func NewSessionDetail(s *domain.Session) SessionDetailResponse {
	return SessionDetailResponse{
		SessionSummary: NewSessionSummary(s),
		Customer:       s.Customer,
		Assignee:       s.Assignee,
		Profile:        s.Profile,
		Memory:         s.Memory,
		SLA:            s.SLA,
		Escalation:     s.Escalation,
		Timeline:       s.Timeline,
		Messages:       s.Messages,
	}
}
