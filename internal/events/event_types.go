// Package events carries the engine's outbound event stream. Every session
// or messaging event uses the same envelope: the correlation id is always
// the session id and value.ticketId is always present.
package events

import "github.com/vertice360/leadqual/internal/domain"

// EventName identifies one event on the stream.
type EventName string

const (
	TicketCreated       EventName = "ticket.created"
	TicketUpdated       EventName = "ticket.updated"
	TicketAssigned      EventName = "ticket.assigned"
	TicketSLAStarted    EventName = "ticket.sla.started"
	TicketSLABreached   EventName = "ticket.sla.breached"
	TicketEscalated     EventName = "ticket.escalated"
	TicketClosed        EventName = "ticket.closed"
	MessagingInbound    EventName = "messaging.inbound"
	MessagingOutbound   EventName = "messaging.outbound"
	CommercialMemory    EventName = "commercial.memory"
	HumanActionRequired EventName = "human.action_required"
)

// Event is the wire envelope published to subscribers.
type Event struct {
	Type          string         `json:"type"`
	Timestamp     int64          `json:"timestamp"`
	Name          EventName      `json:"name"`
	Value         map[string]any `json:"value"`
	CorrelationID string         `json:"correlationId"`
}

// New builds an envelope for a session-scoped event, backfilling the
// timestamp and value.ticketId.
func New(name EventName, ticketID string, value map[string]any) Event {
	if value == nil {
		value = map[string]any{}
	}
	if _, ok := value["ticketId"]; !ok {
		value["ticketId"] = ticketID
	}
	return Event{
		Type:          "CUSTOM",
		Timestamp:     domain.EpochMS(),
		Name:          name,
		Value:         value,
		CorrelationID: ticketID,
	}
}
