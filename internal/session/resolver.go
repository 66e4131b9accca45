package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/vertice360/leadqual/internal/domain"
	"github.com/vertice360/leadqual/internal/extract"
	"github.com/vertice360/leadqual/internal/phone"
)

// Resolver maps an inbound message to its session: by explicit ticket id,
// then by conversation key, then by bare phone digits, creating a new
// session when nothing matches or the user asked to start over.
type Resolver struct {
	store  *Store
	logger *zap.Logger
}

// NewResolver creates a resolver over the given store.
func NewResolver(store *Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolution is the outcome of resolving one inbound message.
type Resolution struct {
	Session *domain.Session
	Created bool
	Reset   bool
}

// Resolve finds or creates the session for the message. A reset phrase in
// the text closes the active session and starts a fresh one, dropping all
// captured slots.
func (r *Resolver) Resolve(ctx context.Context, inbound *domain.InboundMessage) (Resolution, error) {
	isReset := extract.IsReset(inbound.Text)

	if inbound.TicketID != "" && !isReset {
		if session, err := r.store.Get(inbound.TicketID); err == nil {
			r.patchIdentity(ctx, session, inbound)
			return Resolution{Session: session}, nil
		}
		r.logger.Warn("explicit ticket id not found, resolving by conversation",
			zap.String("ticketId", inbound.TicketID))
	}

	existing := r.store.FindActiveByConversationKey(inbound.ConversationKey())
	if existing == nil {
		existing = r.store.FindActiveByPhone(inbound.From)
	}

	if existing != nil {
		if isReset {
			if err := r.store.Close(ctx, existing.ID, "user_reset"); err != nil {
				return Resolution{}, err
			}
			r.logger.Info("session reset by user",
				zap.String("ticketId", existing.ID),
				zap.String("conversationKey", existing.ConversationKey))
			session := r.store.Create(ctx, r.seedFrom(inbound))
			return Resolution{Session: session, Created: true, Reset: true}, nil
		}
		r.patchIdentity(ctx, existing, inbound)
		return Resolution{Session: existing}, nil
	}

	session := r.store.Create(ctx, r.seedFrom(inbound))
	return Resolution{Session: session, Created: true, Reset: isReset}, nil
}

func (r *Resolver) seedFrom(inbound *domain.InboundMessage) Seed {
	return Seed{
		Provider: inbound.Provider,
		App:      inbound.App,
		Channel:  inbound.Channel,
		Customer: domain.Customer{
			From:      inbound.From,
			To:        inbound.To,
			Provider:  inbound.Provider,
			App:       inbound.App,
			Channel:   inbound.Channel,
			Name:      inbound.Name,
			PhoneE164: phone.NormalizeE164(inbound.From),
		},
		Subject: inbound.Subject(),
	}
}

// patchIdentity refreshes mutable identity fields on a reused session. Only
// actual changes touch the session; an unchanged message is a no-op.
func (r *Resolver) patchIdentity(ctx context.Context, session *domain.Session, inbound *domain.InboundMessage) {
	patch := map[string]any{}
	r.store.mu.Lock()
	if inbound.Name != "" && session.Customer.Name != inbound.Name {
		session.Customer.Name = inbound.Name
		patch["customerName"] = inbound.Name
	}
	if inbound.Channel != "" && session.Channel != inbound.Channel {
		session.Channel = inbound.Channel
		patch["channel"] = inbound.Channel
	}
	if len(patch) > 0 {
		r.store.touchLocked(session)
		r.store.appendTimelineLocked(session, "ticket.updated", map[string]any{"patch": patch})
	}
	r.store.mu.Unlock()

	if len(patch) > 0 && r.store.emitter != nil {
		_ = r.store.emitter.TicketUpdated(ctx, session.ID, session.Status, session.Status, patch, "inbound")
	}
}
