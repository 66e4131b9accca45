// Package session owns the session aggregate: the in-memory store with its
// status machine, timeline, SLA clocks, and the resolver that maps inbound
// messages onto sessions.
package session

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertice360/leadqual/internal/domain"
	"github.com/vertice360/leadqual/internal/events"
	"github.com/vertice360/leadqual/pkg/util"
)

// Store keeps all sessions of one engine instance. Every mutation appends to
// the session timeline and publishes the matching event.
type Store struct {
	mu             sync.Mutex
	sequence       int
	sessions       map[string]*domain.Session
	emitter        *events.Emitter
	logger         *zap.Logger
	timelineWindow time.Duration
	now            func() int64
}

// NewStore creates an empty store. The timeline window bounds duplicate
// timeline suppression.
func NewStore(emitter *events.Emitter, logger *zap.Logger, timelineWindow time.Duration) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sessions:       make(map[string]*domain.Session),
		emitter:        emitter,
		logger:         logger,
		timelineWindow: timelineWindow,
		now:            domain.EpochMS,
	}
}

// Seed carries the identity fields for a new session.
type Seed struct {
	TicketID string
	Provider string
	App      string
	Channel  string
	Customer domain.Customer
	Subject  string
}

// Create builds a new OPEN session from the seed, reserving a VTX-NNNN id
// when none is given.
func (s *Store) Create(ctx context.Context, seed Seed) *domain.Session {
	s.mu.Lock()
	id := seed.TicketID
	if id == "" {
		id = s.reserveIDLocked()
	}
	now := s.now()
	session := &domain.Session{
		ID:              id,
		ConversationKey: domain.ConversationKey(seed.Provider, seed.App, seed.Customer.From),
		Status:          domain.SessionStatusOpen,
		Provider:        seed.Provider,
		App:             seed.App,
		Channel:         seed.Channel,
		Customer:        seed.Customer,
		Subject:         seed.Subject,
		RequestedDocs:   []string{},
		HandoffStage:    domain.HandoffStageCollecting,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.appendTimelineLocked(session, string(events.TicketCreated), map[string]any{
		"provider": seed.Provider,
		"channel":  seed.Channel,
		"subject":  seed.Subject,
	})
	s.sessions[id] = session
	s.mu.Unlock()

	if s.emitter != nil {
		_ = s.emitter.TicketCreated(ctx, session)
	}
	s.logger.Info("session created",
		zap.String("ticketId", id),
		zap.String("conversationKey", session.ConversationKey))
	return session
}

// Get returns the session or a NOT_FOUND domain error.
func (s *Store) Get(id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, util.NewNotFound("session", map[string]any{"ticketId": id})
	}
	return session, nil
}

// List returns all sessions ordered by creation time.
func (s *Store) List() []*domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FindActiveByConversationKey returns the newest non-closed session for the
// key, or nil.
func (s *Store) FindActiveByConversationKey(key string) *domain.Session {
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *domain.Session
	for _, session := range s.sessions {
		if session.ConversationKey != key || !session.Active() {
			continue
		}
		if best == nil || session.CreatedAt > best.CreatedAt {
			best = session
		}
	}
	return best
}

// FindActiveByPhone returns the newest non-closed session whose customer
// phone has the same digits, regardless of provider. Used as a fallback when
// the provider changed mid-conversation.
func (s *Store) FindActiveByPhone(phone string) *domain.Session {
	digits := domain.DigitsOnly(phone)
	if digits == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *domain.Session
	for _, session := range s.sessions {
		if !session.Active() || domain.DigitsOnly(session.Customer.From) != digits {
			continue
		}
		if best == nil || session.CreatedAt > best.CreatedAt {
			best = session
		}
	}
	return best
}

// SetStatus moves the session through the status machine. Same-status calls
// are no-ops; invalid transitions return a CONFLICT domain error.
func (s *Store) SetStatus(ctx context.Context, id string, next domain.SessionStatus) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return util.NewNotFound("session", map[string]any{"ticketId": id})
	}
	prev := session.Status
	if prev == next {
		s.mu.Unlock()
		return nil
	}
	if !domain.IsValidTransition(prev, next) {
		s.mu.Unlock()
		return util.NewConflict(fmt.Sprintf("invalid status transition %s -> %s", prev, next), nil)
	}
	session.Status = next
	s.touchLocked(session)
	s.appendTimelineLocked(session, string(events.TicketUpdated), map[string]any{"status": string(next)})
	s.mu.Unlock()

	if s.emitter != nil {
		_ = s.emitter.TicketUpdated(ctx, id, prev, next, map[string]any{"status": string(next)}, "system")
	}
	return nil
}

// Assign routes the session to a team/operator and records the assignment.
func (s *Store) Assign(ctx context.Context, id string, assignee domain.Assignee) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return util.NewNotFound("session", map[string]any{"ticketId": id})
	}
	session.Assignee = &assignee
	s.touchLocked(session)
	var dueAt int64
	if session.SLA != nil {
		dueAt = session.SLA.AssignmentDueAt
	}
	s.appendTimelineLocked(session, string(events.TicketAssigned), map[string]any{
		"assignee": assignee,
		"dueAt":    dueAt,
	})
	s.mu.Unlock()

	if s.emitter != nil {
		_ = s.emitter.TicketAssigned(ctx, id, assignee, dueAt)
	}
	return nil
}

// AddMessage appends to the session message log. Inbound entries are
// idempotent by provider message id; a replay returns false.
func (s *Store) AddMessage(_ context.Context, id string, msg domain.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return false, util.NewNotFound("session", map[string]any{"ticketId": id})
	}
	if msg.Direction == domain.DirectionInbound && session.HasInboundMessage(msg.MessageID) {
		return false, nil
	}
	session.Messages = append(session.Messages, msg)
	s.touchLocked(session)
	return true, nil
}

// AddTimelineEvent appends a timeline entry and publishes it. Identical
// consecutive entries within the dedupe window are dropped.
func (s *Store) AddTimelineEvent(ctx context.Context, id, name string, value map[string]any) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return util.NewNotFound("session", map[string]any{"ticketId": id})
	}
	entry, appended := s.appendTimelineLocked(session, name, value)
	if appended {
		s.touchLocked(session)
	}
	s.mu.Unlock()

	if appended && s.emitter != nil {
		_ = s.emitter.Emit(ctx, events.EventName(name), id, map[string]any{"timeline": entry})
	}
	return nil
}

// StartSLA starts one of the two deadline clocks and records it. Starting an
// already-running clock is a no-op.
func (s *Store) StartSLA(ctx context.Context, id string, slaType domain.SLAType, due time.Duration) (int64, error) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return 0, util.NewNotFound("session", map[string]any{"ticketId": id})
	}
	if session.SLA == nil {
		session.SLA = &domain.SLA{}
	}
	now := s.now()
	dueAt := now + due.Milliseconds()
	switch slaType {
	case domain.SLAAssignment:
		if session.SLA.AssignmentDueAt != 0 {
			s.mu.Unlock()
			return session.SLA.AssignmentDueAt, nil
		}
		session.SLA.AssignmentStartedAt = now
		session.SLA.AssignmentDueAt = dueAt
	case domain.SLADocValidation:
		if session.SLA.DocValidationDueAt != 0 {
			s.mu.Unlock()
			return session.SLA.DocValidationDueAt, nil
		}
		session.SLA.DocValidationStartedAt = now
		session.SLA.DocValidationDueAt = dueAt
	default:
		s.mu.Unlock()
		return 0, util.NewValidationError(fmt.Sprintf("unknown sla type %q", slaType), nil)
	}
	s.touchLocked(session)
	s.appendTimelineLocked(session, string(events.TicketSLAStarted), map[string]any{
		"slaType": string(slaType),
		"dueAt":   dueAt,
	})
	s.mu.Unlock()

	if s.emitter != nil {
		_ = s.emitter.SLAStarted(ctx, id, slaType, dueAt)
	}
	return dueAt, nil
}

// DeclareBreach marks an SLA clock as breached. The declaration is
// idempotent per (session, type): only the first call emits and returns true.
func (s *Store) DeclareBreach(ctx context.Context, id string, slaType domain.SLAType) (bool, error) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false, util.NewNotFound("session", map[string]any{"ticketId": id})
	}
	if session.SLA == nil || session.SLA.Breached(slaType) {
		s.mu.Unlock()
		return false, nil
	}
	dueAt := session.SLA.DueAt(slaType)
	if dueAt == 0 {
		s.mu.Unlock()
		return false, nil
	}
	now := s.now()
	if session.SLA.Breaches == nil {
		session.SLA.Breaches = make(map[domain.SLAType]int64)
	}
	session.SLA.Breaches[slaType] = now
	s.touchLocked(session)
	s.appendTimelineLocked(session, string(events.TicketSLABreached), map[string]any{
		"slaType":    string(slaType),
		"dueAt":      dueAt,
		"breachedAt": now,
	})
	s.mu.Unlock()

	if s.emitter != nil {
		_ = s.emitter.SLABreached(ctx, id, slaType, dueAt, now)
	}
	return true, nil
}

// Escalate moves the session to ESCALATED and records the destination team.
// Re-escalating with the same (team, reason) pair does not emit again.
func (s *Store) Escalate(ctx context.Context, id, team, reason string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return util.NewNotFound("session", map[string]any{"ticketId": id})
	}
	prev := session.Status
	if prev != domain.SessionStatusEscalated {
		if !domain.IsValidTransition(prev, domain.SessionStatusEscalated) {
			s.mu.Unlock()
			return util.NewConflict(fmt.Sprintf("invalid status transition %s -> %s", prev, domain.SessionStatusEscalated), nil)
		}
		session.Status = domain.SessionStatusEscalated
	}
	same := session.Escalation != nil &&
		session.Escalation.Team == team &&
		session.Escalation.Reason == reason
	session.Escalation = &domain.Escalation{Team: team, Reason: reason}
	s.touchLocked(session)
	if !same {
		s.appendTimelineLocked(session, string(events.TicketEscalated), map[string]any{
			"reason": reason,
			"toTeam": team,
		})
	}
	s.mu.Unlock()

	if s.emitter != nil {
		if prev != domain.SessionStatusEscalated {
			_ = s.emitter.TicketUpdated(ctx, id, prev, domain.SessionStatusEscalated,
				map[string]any{"status": string(domain.SessionStatusEscalated)}, "system")
		}
		if !same {
			_ = s.emitter.TicketEscalated(ctx, id, reason, team)
		}
	}
	return nil
}

// Close terminates the session, releasing its conversation key.
func (s *Store) Close(ctx context.Context, id, resolution string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return util.NewNotFound("session", map[string]any{"ticketId": id})
	}
	prev := session.Status
	if prev == domain.SessionStatusClosed {
		s.mu.Unlock()
		return nil
	}
	session.Status = domain.SessionStatusClosed
	s.touchLocked(session)
	value := map[string]any{}
	if resolution != "" {
		value["reason"] = resolution
	}
	s.appendTimelineLocked(session, string(events.TicketClosed), value)
	s.mu.Unlock()

	if s.emitter != nil {
		_ = s.emitter.TicketClosed(ctx, id, resolution)
	}
	return nil
}

// SetHandoffRequired flips the operator hand-off flag and stage.
func (s *Store) SetHandoffRequired(_ context.Context, id string, required bool, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return util.NewNotFound("session", map[string]any{"ticketId": id})
	}
	session.HandoffRequired = required
	session.HandoffReason = reason
	if !required {
		session.HandoffStage = domain.HandoffStageCollecting
	}
	s.touchLocked(session)
	return nil
}

// SetHandoffStage records the hand-off stage, touching the session only on
// an actual transition.
func (s *Store) SetHandoffStage(id string, stage domain.HandoffStage) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return false
	}
	if session.HandoffStage == stage {
		return false
	}
	s.logger.Info("stage transition",
		zap.String("ticketId", id),
		zap.String("before", string(session.HandoffStage)),
		zap.String("after", string(stage)))
	session.HandoffStage = stage
	s.touchLocked(session)
	return true
}

// ProfilePatch carries slot values to merge into a session profile. Empty
// strings and nil pointers leave the current value untouched.
type ProfilePatch struct {
	Zona           string
	Tipologia      string
	Presupuesto    *int64
	PresupuestoRaw string
	Moneda         string
	FechaMudanza   string
	Visit          *domain.VisitSlot
}

// Empty reports whether the patch carries no values.
func (p ProfilePatch) Empty() bool {
	return p.Zona == "" && p.Tipologia == "" && p.Presupuesto == nil &&
		p.PresupuestoRaw == "" && p.Moneda == "" && p.FechaMudanza == "" && p.Visit == nil
}

// UpdateProfile merges the patch into the session profile and records the
// change on the timeline.
func (s *Store) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return util.NewNotFound("session", map[string]any{"ticketId": id})
	}
	applied := map[string]any{}
	if patch.Zona != "" && session.Profile.Zona != patch.Zona {
		session.Profile.Zona = patch.Zona
		applied["zona"] = patch.Zona
	}
	if patch.Tipologia != "" && session.Profile.Tipologia != patch.Tipologia {
		session.Profile.Tipologia = patch.Tipologia
		applied["tipologia"] = patch.Tipologia
	}
	if patch.Presupuesto != nil {
		if session.Profile.Presupuesto == nil || *session.Profile.Presupuesto != *patch.Presupuesto {
			amount := *patch.Presupuesto
			session.Profile.Presupuesto = &amount
			applied["presupuesto"] = amount
		}
	}
	if patch.PresupuestoRaw != "" {
		session.Profile.PresupuestoRaw = patch.PresupuestoRaw
	}
	if patch.Moneda != "" && session.Profile.Moneda != patch.Moneda {
		session.Profile.Moneda = patch.Moneda
		applied["moneda"] = patch.Moneda
	}
	if patch.FechaMudanza != "" && session.Profile.FechaMudanza != patch.FechaMudanza {
		session.Profile.FechaMudanza = patch.FechaMudanza
		applied["fechaMudanza"] = patch.FechaMudanza
	}
	if patch.Visit != nil && !patch.Visit.Empty() {
		session.Profile.Visit = patch.Visit
		applied["visit"] = patch.Visit
	}
	if len(applied) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.touchLocked(session)
	s.appendTimelineLocked(session, string(events.TicketUpdated), map[string]any{"patch": applied})
	s.mu.Unlock()

	if s.emitter != nil {
		_ = s.emitter.TicketUpdated(ctx, id, session.Status, session.Status,
			map[string]any{"commercial": applied}, "engine")
	}
	return nil
}

// Touch bumps the updatedAt timestamp.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		s.touchLocked(session)
	}
}

// Reset clears all sessions and restarts the id sequence. Test helper.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*domain.Session)
	s.sequence = 0
}

func (s *Store) reserveIDLocked() string {
	for {
		s.sequence++
		id := fmt.Sprintf("VTX-%04d", s.sequence)
		if _, taken := s.sessions[id]; !taken {
			return id
		}
	}
}

func (s *Store) touchLocked(session *domain.Session) {
	session.UpdatedAt = s.now()
}

// appendTimelineLocked appends unless the previous entry has the same name
// and value within the dedupe window.
func (s *Store) appendTimelineLocked(session *domain.Session, name string, value map[string]any) (domain.TimelineEntry, bool) {
	if value == nil {
		value = map[string]any{}
	}
	now := s.now()
	if n := len(session.Timeline); n > 0 {
		last := session.Timeline[n-1]
		if last.Name == name &&
			now-last.Timestamp <= s.timelineWindow.Milliseconds() &&
			reflect.DeepEqual(last.Value, value) {
			return last, false
		}
	}
	entry := domain.TimelineEntry{Timestamp: now, Name: name, Value: value}
	session.Timeline = append(session.Timeline, entry)
	return entry, true
}
