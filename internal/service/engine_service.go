// Package service runs the qualification engine: one inbound message in,
// one decided reply (or a deliberate silence) out, with every state change
// committed before the send attempt.
package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vertice360/leadqual/internal/config"
	"github.com/vertice360/leadqual/internal/domain"
	"github.com/vertice360/leadqual/internal/events"
	"github.com/vertice360/leadqual/internal/extract"
	"github.com/vertice360/leadqual/internal/observability"
	"github.com/vertice360/leadqual/internal/persistence"
	"github.com/vertice360/leadqual/internal/policy"
	"github.com/vertice360/leadqual/internal/session"
)

// Sender delivers outbound text through the provider transport and returns
// the provider message id.
type Sender interface {
	Send(ctx context.Context, to, text string) (string, error)
}

// EngineService coordinates the inbound turn end to end.
type EngineService struct {
	store    *session.Store
	resolver *session.Resolver
	emitter  *events.Emitter
	dedupe   persistence.DedupeCache
	sender   Sender
	logger   *zap.Logger
	metrics  *observability.Metrics
	cfg      config.EngineConfig
	now      func() time.Time
}

// EngineDependencies bundles collaborators for the engine service.
type EngineDependencies struct {
	Store    *session.Store
	Resolver *session.Resolver
	Emitter  *events.Emitter
	Dedupe   persistence.DedupeCache
	Sender   Sender
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Config   config.EngineConfig
}

// NewEngineService constructs the service.
func NewEngineService(deps EngineDependencies) *EngineService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngineService{
		store:    deps.Store,
		resolver: deps.Resolver,
		emitter:  deps.Emitter,
		dedupe:   deps.Dedupe,
		sender:   deps.Sender,
		logger:   logger,
		metrics:  deps.Metrics,
		cfg:      deps.Config,
		now:      time.Now,
	}
}

// TurnResult is the acknowledged outcome of one inbound turn.
type TurnResult struct {
	TicketID   string               `json:"ticketId,omitempty"`
	Duplicate  bool                 `json:"duplicate,omitempty"`
	InboundKey string               `json:"inboundKey,omitempty"`
	Actions    []string             `json:"actions"`
	ReplyText  string               `json:"replyText,omitempty"`
	Status     domain.SessionStatus `json:"status,omitempty"`
	Decision   string               `json:"decision,omitempty"`
	Outcome    string               `json:"outcome"`
}

// turnState carries the working variables of one ProcessInbound call.
type turnState struct {
	inbound  domain.InboundMessage
	sess     *domain.Session
	actions  []string
	decision string
	missing  []string
}

func (t *turnState) act(action string) {
	t.actions = append(t.actions, action)
}

// ProcessInbound runs the full turn: dedupe, resolve, extract, merge, decide
// and send. It returns an acknowledged result for every understood message;
// only validation failures surface as errors.
func (s *EngineService) ProcessInbound(ctx context.Context, inbound domain.InboundMessage) (TurnResult, error) {
	normalized := inbound.Normalize(s.now().UnixMilli())

	inboundKey := persistence.InboundKey(
		normalized.Provider, normalized.MessageID, normalized.From, normalized.Timestamp, normalized.Text,
	)
	fresh, err := s.dedupe.MarkProcessed(ctx, inboundKey)
	if err != nil {
		s.logger.Warn("inbound dedupe check failed, processing anyway",
			zap.String("inboundKey", inboundKey), zap.Error(err))
		fresh = true
	}
	if !fresh {
		s.logger.Info("duplicate inbound ignored",
			zap.String("inboundKey", inboundKey),
			zap.String("provider", normalized.Provider),
			zap.String("messageId", normalized.MessageID))
		s.recordOutcome("duplicate_ignored")
		return TurnResult{
			Duplicate:  true,
			InboundKey: inboundKey,
			Actions:    []string{"DUPLICATE_INBOUND_IGNORED"},
			Outcome:    "duplicate_ignored",
		}, nil
	}

	res, err := s.resolver.Resolve(ctx, &normalized)
	if err != nil {
		return TurnResult{Outcome: "rejected"}, err
	}
	turn := &turnState{inbound: normalized, sess: res.Session}
	turn.act("TICKET_READY")
	if res.Reset {
		turn.act("SESSION_RESET")
	}

	_ = s.emitter.MessagingInbound(ctx, turn.sess.ID, inboundMessageLog(normalized), normalized.From, normalized.To)
	_, _ = s.store.AddMessage(ctx, turn.sess.ID, inboundMessageLog(normalized))
	turn.act("INBOUND_EMITTED")

	s.extractAndMerge(ctx, turn)
	s.syncBudgetState(ctx, turn)

	answered := policy.UpdateAnsweredFields(&turn.sess.Memory, &turn.sess.Profile)

	if done, result := s.applyFlowStage(ctx, turn); done {
		return s.finalize(turn, result, answered), nil
	}

	s.emitCommercialMemory(ctx, turn, answered)

	reply := s.decideReply(ctx, turn)
	if reply == "" && turn.decision == "handoff_waiting_operator" {
		return s.finalize(turn, TurnResult{Outcome: "accepted_no_outbound"}, answered), nil
	}

	if reply != "" && turn.decision != "summary_close" && !turn.sess.Memory.IntroSent {
		if !strings.HasPrefix(reply, policy.IntroPrefix) {
			reply = policy.IntroPrefix + reply
		}
		turn.sess.Memory.IntroSent = true
		s.store.Touch(turn.sess.ID)
	}
	if reply == "" {
		reply = policy.CommercialFallback()
		turn.decision = "fallback"
	}
	reply = policy.TruncateReply(reply, s.cfg.ReplyMaxChars)

	result := s.dispatchReply(ctx, turn, reply)
	return s.finalize(turn, result, answered), nil
}

// extractAndMerge parses the turn's text and commits the slot values that
// are safe to commit. Ambiguous budgets stay out of the profile until the
// user confirms a reading.
func (s *EngineService) extractAndMerge(ctx context.Context, turn *turnState) {
	text := turn.inbound.Text
	sess := turn.sess
	memory := &sess.Memory

	patch := session.ProfilePatch{
		Zona:         extract.ParseZona(text),
		Tipologia:    extract.ParseTipologia(text),
		FechaMudanza: extract.ParseFechaMudanza(text, s.now()),
	}

	if memory.SummarySent || sess.HandoffRequired {
		if visit := extract.ParseVisita(text); !visit.Empty() {
			patch.Visit = visit
		}
	}

	budget := extract.ParseBudget(text)
	if budget.Outcome != extract.BudgetNoMatch {
		currency := budget.Currency
		if currency == "" {
			currency = sess.Profile.Moneda
		}
		ambiguous := budget.Outcome == extract.BudgetAmbiguous ||
			extract.AmbiguousBudget(budget.Amount, currency, budget.HasMagnitude)
		switch {
		case memory.BudgetConfirmed && ambiguous:
			// A confirmed budget is not overridden by a later short
			// number like "usd 120".
		case ambiguous && currency != "":
			memory.Pending = &domain.BudgetAmbiguity{
				Amount:   budget.Amount,
				Currency: currency,
				Question: policy.AmbiguityQuestion(currency, budget.Amount),
			}
			s.store.Touch(sess.ID)
		default:
			amount := budget.Amount
			patch.Presupuesto = &amount
			patch.PresupuestoRaw = budget.Raw
			patch.Moneda = budget.Currency
			memory.Pending = nil
		}
	}

	if !patch.Empty() {
		if err := s.store.UpdateProfile(ctx, sess.ID, patch); err != nil {
			s.logger.Warn("profile merge failed", zap.String("ticketId", sess.ID), zap.Error(err))
		}
	}
}

// syncBudgetState resolves a pending ambiguity against the current turn and
// marks the budget confirmed once amount and currency are both settled.
func (s *EngineService) syncBudgetState(ctx context.Context, turn *turnState) {
	sess := turn.sess
	memory := &sess.Memory
	profile := &sess.Profile

	if memory.Pending != nil && extract.IsAffirmative(turn.inbound.Text) {
		resolved := memory.Pending.Amount * 1000
		patch := session.ProfilePatch{
			Presupuesto: &resolved,
			Moneda:      memory.Pending.Currency,
		}
		if err := s.store.UpdateProfile(ctx, sess.ID, patch); err != nil {
			s.logger.Warn("ambiguity commit failed", zap.String("ticketId", sess.ID), zap.Error(err))
			return
		}
		memory.Pending = nil
		memory.BudgetConfirmed = true
		s.store.Touch(sess.ID)
		turn.act("BUDGET_CONFIRMED")
		return
	}

	if profile.Presupuesto != nil && domain.SlotValuePresent(profile.Moneda) && memory.Pending == nil {
		if !memory.BudgetConfirmed {
			memory.BudgetConfirmed = true
			s.store.Touch(sess.ID)
		}
	}
}

// applyFlowStage recomputes the hand-off stage and short-circuits the turn
// when an operator owns the conversation.
func (s *EngineService) applyFlowStage(ctx context.Context, turn *turnState) (bool, TurnResult) {
	sess := turn.sess

	stage := domain.HandoffStageCollecting
	switch {
	case sess.HandoffStage == domain.HandoffStageOperator:
		stage = domain.HandoffStageOperator
	case policy.AllRequiredFields(&sess.Profile) && sess.Profile.Visit.Empty():
		stage = domain.HandoffStageScheduling
	}
	s.store.SetHandoffStage(sess.ID, stage)
	if stage == domain.HandoffStageScheduling && !sess.HandoffRequired {
		_ = s.store.SetHandoffRequired(ctx, sess.ID, true, "schedule_visit")
	}

	if stage == domain.HandoffStageOperator {
		s.emitHandoffActionRequired(ctx, turn)
		turn.act("HANDOFF_WAITING_OPERATOR")
		turn.decision = "handoff_waiting_operator"
		return true, TurnResult{Outcome: "accepted_no_outbound"}
	}

	handoffPaused := sess.HandoffRequired || sess.HandoffStage == domain.HandoffStageOperator
	if handoffPaused && stage != domain.HandoffStageScheduling {
		s.emitHandoffActionRequired(ctx, turn)
		turn.act("HANDOFF_WAITING_OPERATOR")
		turn.decision = "handoff_waiting_operator"
		return true, TurnResult{Outcome: "accepted_no_outbound"}
	}
	return false, TurnResult{}
}

// decideReply applies the deterministic reply priority: pending ambiguity,
// invalid-zone guard, next missing slot, summary close, visit prompt,
// operator silence. An empty reply with decision handoff_waiting_operator
// means a deliberate no-outbound turn.
func (s *EngineService) decideReply(ctx context.Context, turn *turnState) string {
	sess := turn.sess
	memory := &sess.Memory
	profile := &sess.Profile
	text := turn.inbound.Text

	missing := policy.MissingSlots(profile, memory, s.cfg.AskMoveInDate)
	turn.missing = missing

	if extract.IsShortAck(text) && len(missing) > 0 {
		// A bare greeting/ack never resets anything; it drops straight
		// into the next-question logic.
		turn.act("FAST_PATH_GREETING")
	}

	if memory.Pending != nil && memory.Pending.Question != "" {
		turn.decision = "resolve_ambiguity"
		return memory.Pending.Question
	}

	missingSet := make(map[string]bool, len(missing))
	for _, slot := range missing {
		missingSet[slot] = true
	}
	if missingSet[policy.SlotZona] &&
		memory.LastQuestionKey == policy.SlotZona &&
		extract.ParseZona(text) == "" &&
		policy.LooksLikeInvalidZona(text) {
		turn.decision = "invalid_zona_guard"
		turn.act("INVALID_ZONA_REJECTED")
		memory.LastQuestion = policy.InvalidZonaText
		memory.LastQuestionKey = policy.SlotZona
		s.store.Touch(sess.ID)
		return policy.InvalidZonaText
	}

	if len(missing) > 0 {
		question, ok := policy.NextBestQuestion(profile, missing)
		if ok {
			question = policy.AvoidRepeat(memory, question, profile, missing)
			turn.decision = "ask_next_best_question"
			memory.LastQuestion = question.Text
			memory.LastQuestionKey = question.Key
			memory.AskedCount++
			s.store.Touch(sess.ID)
			return question.Text
		}
	}

	if !memory.SummarySent {
		summary := policy.SummaryClose(profile)
		turn.decision = "summary_close"
		memory.SummarySent = true
		memory.LastQuestion = summary
		memory.LastQuestionKey = policy.KeySummary
		_ = s.store.SetHandoffRequired(ctx, sess.ID, true, "schedule_visit")
		s.store.SetHandoffStage(sess.ID, domain.HandoffStageScheduling)
		turn.act("HANDOFF_REQUIRED")
		return summary
	}

	if profile.Visit.Empty() {
		turn.decision = "ask_visit_slot"
		if extract.IsShortAck(text) {
			turn.act("HANDOFF_SCHEDULING_REPROMPT")
		}
		return policy.VisitPrompt
	}

	s.logger.Info("summary sent and visit captured, waiting operator follow-up",
		zap.String("ticketId", sess.ID))
	s.emitHandoffActionRequired(ctx, turn)
	turn.act("HANDOFF_WAITING_OPERATOR")
	turn.decision = "handoff_waiting_operator"
	return ""
}

// dispatchReply routes the reply through the legacy intent branches: the
// docs/reservation branch starts the SLA clocks and parks the session in
// WAITING_DOCS, everything else sends directly.
func (s *EngineService) dispatchReply(ctx context.Context, turn *turnState, reply string) TurnResult {
	sess := turn.sess
	text := turn.inbound.Text

	intent := policy.ClassifyIntent(text)
	if intent == policy.IntentReservation && s.propertySearchLocked(turn) && !policy.HasUnitSelection(text) {
		intent = policy.IntentGeneral
	}
	turn.act("INTENT_" + string(intent))

	if intent == policy.IntentReservation || intent == policy.IntentDocs {
		return s.dispatchDocsFlow(ctx, turn)
	}

	if sess.Status == domain.SessionStatusOpen {
		if err := s.store.SetStatus(ctx, sess.ID, domain.SessionStatusInProgress); err == nil {
			turn.act("STATUS_IN_PROGRESS")
		}
	}
	return s.sendOutbound(ctx, turn, reply)
}

func (s *EngineService) dispatchDocsFlow(ctx context.Context, turn *turnState) TurnResult {
	sess := turn.sess

	assignmentDueAt, err := s.store.StartSLA(ctx, sess.ID, domain.SLAAssignment, s.cfg.AssignmentSLA())
	if err != nil {
		s.logger.Warn("assignment sla start failed", zap.String("ticketId", sess.ID), zap.Error(err))
	}
	docDueAt, err := s.store.StartSLA(ctx, sess.ID, domain.SLADocValidation, s.cfg.DocValidationSLA())
	if err != nil {
		s.logger.Warn("doc validation sla start failed", zap.String("ticketId", sess.ID), zap.Error(err))
	}
	_ = s.emitter.TicketUpdated(ctx, sess.ID, sess.Status, sess.Status, map[string]any{
		"sla": map[string]any{
			"assignmentDueAt":    assignmentDueAt,
			"docValidationDueAt": docDueAt,
		},
	}, "system")
	turn.act("SLA_STARTED")

	if err := s.store.Assign(ctx, sess.ID, domain.Assignee{Team: "ADMIN", Name: "Admin - Lucía"}); err == nil {
		turn.act("ASSIGNED_ADMIN")
	}

	if sess.Status != domain.SessionStatusWaitingDocs {
		if sess.Status == domain.SessionStatusOpen {
			_ = s.store.SetStatus(ctx, sess.ID, domain.SessionStatusInProgress)
		}
		if err := s.store.SetStatus(ctx, sess.ID, domain.SessionStatusWaitingDocs); err != nil {
			// ESCALATED blocks WAITING_DOCS; keep the escalated status.
			s.logger.Info("waiting_docs transition refused",
				zap.String("ticketId", sess.ID), zap.String("status", string(sess.Status)))
		} else {
			turn.act("STATUS_WAITING_DOCS")
		}
	}

	return s.sendOutbound(ctx, turn, policy.DocsReply())
}

// sendOutbound dedupes against the previous outbound text, performs the one
// true I/O suspension of the turn and records the result. State already
// committed is never rolled back on a send failure.
func (s *EngineService) sendOutbound(ctx context.Context, turn *turnState, reply string) TurnResult {
	sess := turn.sess
	inbound := turn.inbound

	if policy.CanonicalOutbound(reply) != "" &&
		policy.CanonicalOutbound(reply) == policy.CanonicalOutbound(sess.LastOutboundText()) {
		s.logger.Info("duplicate outbound ignored",
			zap.String("ticketId", sess.ID), zap.String("provider", inbound.Provider))
		turn.act("OUTBOUND_DEDUPED")
		return TurnResult{ReplyText: reply, Outcome: "outbound_deduped"}
	}

	messageID, err := s.sender.Send(ctx, inbound.From, reply)
	if err != nil {
		turn.act("OUTBOUND_FAILED")
		_ = s.emitter.OutboundFailed(ctx, sess.ID, inbound.Provider, inbound.Channel, inbound.From, reply,
			map[string]any{"err": err.Error()})
		_ = s.store.AddTimelineEvent(ctx, sess.ID, "outbound.failed", map[string]any{
			"provider": inbound.Provider,
			"error":    err.Error(),
		})
		return TurnResult{ReplyText: reply, Outcome: "outbound_failed"}
	}

	sentAt := s.now().UnixMilli()
	outbound := domain.Message{
		Direction: domain.DirectionOutbound,
		Provider:  inbound.Provider,
		Channel:   inbound.Channel,
		MessageID: messageID,
		Text:      reply,
		At:        sentAt,
	}
	_ = s.emitter.MessagingOutbound(ctx, sess.ID, outbound, inbound.From)
	_, _ = s.store.AddMessage(ctx, sess.ID, outbound)
	turn.act("OUTBOUND_SENT")
	return TurnResult{ReplyText: reply, Outcome: "outbound_sent"}
}

func (s *EngineService) emitCommercialMemory(ctx context.Context, turn *turnState, answered []string) {
	profile := &turn.sess.Profile
	missing := policy.MissingSlots(profile, &turn.sess.Memory, s.cfg.AskMoveInDate)

	var known []string
	if domain.SlotValuePresent(profile.Zona) {
		known = append(known, "zona")
	}
	if domain.SlotValuePresent(profile.Tipologia) {
		known = append(known, "tipologia")
	}
	if profile.Presupuesto != nil {
		known = append(known, "presupuesto")
	}
	if domain.SlotValuePresent(profile.Moneda) {
		known = append(known, "moneda")
	}
	if domain.SlotValuePresent(profile.FechaMudanza) {
		known = append(known, "fecha_mudanza")
	}

	payload := map[string]any{
		"missingSlotsCount": len(missing),
		"missing":           missing,
		"known":             known,
		"answered":          answered,
	}
	if profile.Presupuesto != nil {
		payload["budget"] = map[string]any{
			"amount":   *profile.Presupuesto,
			"currency": profile.Moneda,
		}
	}
	_ = s.emitter.CommercialMemory(ctx, turn.sess.ID, payload)
}

func (s *EngineService) emitHandoffActionRequired(ctx context.Context, turn *turnState) {
	profile := &turn.sess.Profile

	zona := profile.Zona
	if !domain.SlotValuePresent(zona) {
		zona = "Palermo"
	}
	ambientes := roomCount(profile.Tipologia)
	if ambientes == 0 {
		ambientes = 3
	}
	budget := int64(120000)
	if profile.Presupuesto != nil {
		budget = *profile.Presupuesto
	}

	_ = s.emitter.HumanActionRequired(ctx, turn.sess.ID, map[string]any{
		"reason": "schedule_visit",
		"summary": map[string]any{
			"zona":            zona,
			"ambientes":       ambientes,
			"presupuesto_usd": budget,
		},
		"provider": turn.inbound.Provider,
	})
}

// propertySearchLocked reports whether the conversation is committed to the
// property-search flow: any commercial signal already captured, or the turn
// text itself reads like a search.
func (s *EngineService) propertySearchLocked(turn *turnState) bool {
	profile := &turn.sess.Profile
	if domain.SlotValuePresent(profile.Zona) ||
		domain.SlotValuePresent(profile.Tipologia) ||
		profile.Presupuesto != nil ||
		domain.SlotValuePresent(profile.Moneda) {
		return true
	}
	return policy.IsPropertySearchText(turn.inbound.Text)
}

func (s *EngineService) finalize(turn *turnState, result TurnResult, answered []string) TurnResult {
	result.TicketID = turn.sess.ID
	result.Status = turn.sess.Status
	result.Decision = turn.decision
	result.Actions = append(turn.actions, result.Actions...)
	s.recordOutcome(result.Outcome)

	s.logger.Info("inbound result",
		zap.String("ticketId", turn.sess.ID),
		zap.String("outcome", result.Outcome),
		zap.String("decision", turn.decision),
		zap.Strings("answered", answered),
		zap.Strings("missing", turn.missing),
		zap.Bool("handoffRequired", turn.sess.HandoffRequired),
		zap.String("handoffStage", string(turn.sess.HandoffStage)))
	return result
}

func (s *EngineService) recordOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordOutcome(outcome)
	}
}

func inboundMessageLog(m domain.InboundMessage) domain.Message {
	return domain.Message{
		Direction:  domain.DirectionInbound,
		Provider:   m.Provider,
		Channel:    m.Channel,
		MessageID:  m.MessageID,
		Text:       m.Text,
		At:         m.Timestamp,
		MediaCount: m.MediaCount,
	}
}

func roomCount(tipologia string) int {
	count := 0
	for _, r := range tipologia {
		if r >= '0' && r <= '9' {
			count = count*10 + int(r-'0')
			continue
		}
		if count > 0 {
			break
		}
	}
	return count
}
