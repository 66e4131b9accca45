package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/vertice360/leadqual/internal/domain"
	"github.com/vertice360/leadqual/internal/observability"
)

// Emitter publishes the engine's typed events through a dispatcher.
type Emitter struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewEmitter creates an emitter. Logger and metrics may be nil in tests.
func NewEmitter(dispatcher Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{dispatcher: dispatcher, logger: logger, metrics: metrics}
}

// Emit publishes one event with the standard envelope.
func (e *Emitter) Emit(ctx context.Context, name EventName, ticketID string, value map[string]any) error {
	if ticketID == "" {
		e.logger.Warn("event dropped, empty ticket id", zap.String("name", string(name)))
		return nil
	}
	if e.metrics != nil {
		e.metrics.RecordEvent(string(name))
	}
	return e.dispatcher.Publish(ctx, New(name, ticketID, value))
}

func (e *Emitter) TicketCreated(ctx context.Context, session *domain.Session) error {
	return e.Emit(ctx, TicketCreated, session.ID, map[string]any{"ticket": session})
}

func (e *Emitter) TicketUpdated(ctx context.Context, ticketID string, prev, next domain.SessionStatus, patch map[string]any, actor string) error {
	return e.Emit(ctx, TicketUpdated, ticketID, map[string]any{
		"prev":  map[string]any{"status": statusOrUnknown(prev)},
		"next":  map[string]any{"status": statusOrUnknown(next)},
		"patch": orEmpty(patch),
		"actor": actor,
	})
}

func (e *Emitter) TicketAssigned(ctx context.Context, ticketID string, assignee domain.Assignee, dueAt int64) error {
	if dueAt == 0 {
		dueAt = domain.EpochMS()
	}
	return e.Emit(ctx, TicketAssigned, ticketID, map[string]any{
		"assignee": assignee,
		"dueAt":    dueAt,
		"sla":      map[string]any{"assignmentDueAt": dueAt},
	})
}

func (e *Emitter) SLAStarted(ctx context.Context, ticketID string, slaType domain.SLAType, dueAt int64) error {
	return e.Emit(ctx, TicketSLAStarted, ticketID, map[string]any{
		"slaType": slaType,
		"dueAt":   dueAt,
	})
}

func (e *Emitter) SLABreached(ctx context.Context, ticketID string, slaType domain.SLAType, dueAt, breachedAt int64) error {
	return e.Emit(ctx, TicketSLABreached, ticketID, map[string]any{
		"slaType":    slaType,
		"dueAt":      dueAt,
		"breachedAt": breachedAt,
	})
}

func (e *Emitter) TicketEscalated(ctx context.Context, ticketID, reason, toTeam string) error {
	return e.Emit(ctx, TicketEscalated, ticketID, map[string]any{
		"reason": reason,
		"toTeam": toTeam,
	})
}

func (e *Emitter) TicketClosed(ctx context.Context, ticketID, resolution string) error {
	return e.Emit(ctx, TicketClosed, ticketID, map[string]any{"resolution": resolution})
}

func (e *Emitter) MessagingInbound(ctx context.Context, ticketID string, msg domain.Message, from, to string) error {
	return e.Emit(ctx, MessagingInbound, ticketID, map[string]any{
		"provider":   msg.Provider,
		"channel":    msg.Channel,
		"messageId":  msg.MessageID,
		"from":       from,
		"to":         to,
		"text":       msg.Text,
		"mediaCount": msg.MediaCount,
		"receivedAt": msg.At,
	})
}

func (e *Emitter) MessagingOutbound(ctx context.Context, ticketID string, msg domain.Message, to string) error {
	return e.Emit(ctx, MessagingOutbound, ticketID, map[string]any{
		"provider":  msg.Provider,
		"channel":   msg.Channel,
		"messageId": msg.MessageID,
		"to":        to,
		"text":      msg.Text,
		"sentAt":    msg.At,
	})
}

// OutboundFailed reuses the messaging.outbound name with a failed status so
// stream consumers see delivery problems on the same channel.
func (e *Emitter) OutboundFailed(ctx context.Context, ticketID, provider, channel, to, text string, sendErr map[string]any) error {
	return e.Emit(ctx, MessagingOutbound, ticketID, map[string]any{
		"provider": provider,
		"channel":  channel,
		"to":       to,
		"text":     text,
		"status":   "failed",
		"error":    sendErr,
	})
}

func (e *Emitter) CommercialMemory(ctx context.Context, ticketID string, value map[string]any) error {
	return e.Emit(ctx, CommercialMemory, ticketID, value)
}

func (e *Emitter) HumanActionRequired(ctx context.Context, ticketID string, value map[string]any) error {
	return e.Emit(ctx, HumanActionRequired, ticketID, value)
}

func statusOrUnknown(status domain.SessionStatus) string {
	if status == "" {
		return "unknown"
	}
	return string(status)
}

func orEmpty(patch map[string]any) map[string]any {
	if patch == nil {
		return map[string]any{}
	}
	return patch
}
