package domain

import (
	"strings"
	"time"
)

// SessionStatus enumerates lifecycle states for qualification sessions.
type SessionStatus string

const (
	SessionStatusOpen        SessionStatus = "OPEN"
	SessionStatusInProgress  SessionStatus = "IN_PROGRESS"
	SessionStatusWaitingDocs SessionStatus = "WAITING_DOCS"
	SessionStatusEscalated   SessionStatus = "ESCALATED"
	SessionStatusClosed      SessionStatus = "CLOSED"
)

// HandoffStage tracks how far a session is into the human hand-off flow.
type HandoffStage string

const (
	HandoffStageCollecting HandoffStage = "collecting_profile"
	HandoffStageScheduling HandoffStage = "handoff_scheduling"
	HandoffStageOperator   HandoffStage = "operator_engaged"
)

// SLAType identifies which clock a deadline or breach belongs to.
type SLAType string

const (
	SLAAssignment    SLAType = "ASSIGNMENT"
	SLADocValidation SLAType = "DOC_VALIDATION"
)

// Customer carries the normalized contact identity of a session.
type Customer struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Provider  string `json:"provider"`
	App       string `json:"app,omitempty"`
	Channel   string `json:"channel"`
	Name      string `json:"name,omitempty"`
	PhoneE164 string `json:"phoneE164,omitempty"`
}

// Assignee is the team/operator a session was routed to.
type Assignee struct {
	Team string `json:"team"`
	Name string `json:"name"`
}

// VisitSlot is the structured visit window captured after close-out.
type VisitSlot struct {
	DayOfWeek string `json:"visit_day_of_week,omitempty"`
	TimeFrom  string `json:"visit_time_from,omitempty"`
	TimeTo    string `json:"visit_time_to,omitempty"`
	Raw       string `json:"visit_raw,omitempty"`
}

// Empty reports whether the slot carries neither a day nor a time.
func (v *VisitSlot) Empty() bool {
	return v == nil || (v.DayOfWeek == "" && v.TimeFrom == "" && v.TimeTo == "")
}

// CommercialProfile aggregates the qualification slots for one session.
// String slots use "" / "UNKNOWN" as absent; the amount uses a nil pointer.
type CommercialProfile struct {
	Zona           string     `json:"zona,omitempty"`
	Tipologia      string     `json:"tipologia,omitempty"`
	Presupuesto    *int64     `json:"presupuesto,omitempty"`
	PresupuestoRaw string     `json:"presupuestoRaw,omitempty"`
	Moneda         string     `json:"moneda,omitempty"`
	FechaMudanza   string     `json:"fechaMudanza,omitempty"`
	Visit          *VisitSlot `json:"visit,omitempty"`
}

// SlotValuePresent reports whether a string slot holds a usable value.
func SlotValuePresent(value string) bool {
	return value != "" && value != "UNKNOWN"
}

// BudgetPresent reports whether the profile has a committed amount.
func (p *CommercialProfile) BudgetPresent() bool {
	return p.Presupuesto != nil
}

// BudgetAmbiguity is a parsed budget waiting on user confirmation. The value
// is not committed to the profile until resolved.
type BudgetAmbiguity struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Question string `json:"question"`
}

// SlotMemory is the per-session bookkeeping for the slot-filling policy.
type SlotMemory struct {
	AnsweredFields  []string         `json:"answeredFields"`
	LastQuestion    string           `json:"lastQuestion,omitempty"`
	LastQuestionKey string           `json:"lastQuestionKey,omitempty"`
	AskedCount      int              `json:"askedCount"`
	Pending         *BudgetAmbiguity `json:"pendingAmbiguity,omitempty"`
	BudgetConfirmed bool             `json:"budgetConfirmed"`
	SummarySent     bool             `json:"summarySent"`
	IntroSent       bool             `json:"introSent"`
}

// HasAnswered reports whether an answered-field alias was recorded.
func (m *SlotMemory) HasAnswered(alias string) bool {
	for _, field := range m.AnsweredFields {
		if field == alias {
			return true
		}
	}
	return false
}

// MarkAnswered records an alias once, keeping the list sorted by insertion.
func (m *SlotMemory) MarkAnswered(alias string) {
	if alias == "" || m.HasAnswered(alias) {
		return
	}
	m.AnsweredFields = append(m.AnsweredFields, alias)
}

// TimelineEntry is one entry of the ordered, deduped session event log.
type TimelineEntry struct {
	Timestamp int64          `json:"timestamp"`
	Name      string         `json:"name"`
	Value     map[string]any `json:"value"`
}

// MessageDirection distinguishes inbound and outbound log entries.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// Message is one entry of the session message log, idempotent by provider
// message id for inbound entries.
type Message struct {
	Direction  MessageDirection `json:"direction"`
	Provider   string           `json:"provider"`
	Channel    string           `json:"channel"`
	MessageID  string           `json:"messageId"`
	Text       string           `json:"text"`
	At         int64            `json:"at"`
	MediaCount int              `json:"mediaCount"`
}

// SLA holds the two deadline clocks started by the docs flow, plus breach
// timestamps keyed by SLA type.
type SLA struct {
	AssignmentStartedAt    int64             `json:"assignmentStartedAt,omitempty"`
	AssignmentDueAt        int64             `json:"assignmentDueAt,omitempty"`
	DocValidationStartedAt int64             `json:"docValidationStartedAt,omitempty"`
	DocValidationDueAt     int64             `json:"docValidationDueAt,omitempty"`
	Breaches               map[SLAType]int64 `json:"breaches,omitempty"`
}

// DueAt returns the deadline for the given type, zero when not started.
func (s *SLA) DueAt(slaType SLAType) int64 {
	if s == nil {
		return 0
	}
	switch slaType {
	case SLAAssignment:
		return s.AssignmentDueAt
	case SLADocValidation:
		return s.DocValidationDueAt
	}
	return 0
}

// Breached reports whether a breach was already declared for the type.
func (s *SLA) Breached(slaType SLAType) bool {
	if s == nil || s.Breaches == nil {
		return false
	}
	_, ok := s.Breaches[slaType]
	return ok
}

// Escalation records why and to whom a session was escalated.
type Escalation struct {
	Team   string `json:"team"`
	Reason string `json:"reason"`
}

// Session is the aggregate for one qualification conversation (ticket).
type Session struct {
	ID              string            `json:"ticketId"`
	ConversationKey string            `json:"conversationKey"`
	Status          SessionStatus     `json:"status"`
	Provider        string            `json:"provider"`
	App             string            `json:"app,omitempty"`
	Channel         string            `json:"channel"`
	Customer        Customer          `json:"customer"`
	Subject         string            `json:"subject"`
	Assignee        *Assignee         `json:"assignee,omitempty"`
	RequestedDocs   []string          `json:"requestedDocs"`
	Profile         CommercialProfile `json:"commercial"`
	Memory          SlotMemory        `json:"slotMemory"`
	Timeline        []TimelineEntry   `json:"timeline"`
	Messages        []Message         `json:"messages"`
	SLA             *SLA              `json:"sla,omitempty"`
	Escalation      *Escalation       `json:"escalation,omitempty"`
	HandoffRequired bool              `json:"handoffRequired"`
	HandoffReason   string            `json:"handoffReason,omitempty"`
	HandoffStage    HandoffStage      `json:"handoffStage"`
	CreatedAt       int64             `json:"createdAt"`
	UpdatedAt       int64             `json:"updatedAt"`
}

// Active reports whether the session still owns its conversation key.
func (s *Session) Active() bool {
	return s.Status != SessionStatusClosed
}

// HasInboundMessage reports whether a provider message id was already logged.
func (s *Session) HasInboundMessage(messageID string) bool {
	if messageID == "" {
		return false
	}
	for _, msg := range s.Messages {
		if msg.Direction == DirectionInbound && msg.MessageID == messageID {
			return true
		}
	}
	return false
}

// LastOutboundText returns the most recent outbound message text, or "".
func (s *Session) LastOutboundText() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Direction == DirectionOutbound {
			return s.Messages[i].Text
		}
	}
	return ""
}

var allowedTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusOpen:        {SessionStatusInProgress, SessionStatusClosed},
	SessionStatusInProgress:  {SessionStatusWaitingDocs, SessionStatusEscalated, SessionStatusClosed},
	SessionStatusWaitingDocs: {SessionStatusInProgress, SessionStatusEscalated, SessionStatusClosed},
	SessionStatusEscalated:   {SessionStatusClosed},
	SessionStatusClosed:      {},
}

// IsValidTransition reports whether the status change is allowed.
// ESCALATED blocks a move into WAITING_DOCS: escalation takes precedence.
func IsValidTransition(current, next SessionStatus) bool {
	if current == next {
		return true
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ConversationKey derives the session identity "provider:app:phone" with a
// normalized provider/app and digits-only phone. It returns "" when provider
// or phone are empty.
func ConversationKey(provider, app, phone string) string {
	normalizedProvider := strings.ToLower(strings.TrimSpace(provider))
	digits := DigitsOnly(phone)
	if normalizedProvider == "" || digits == "" {
		return ""
	}
	normalizedApp := strings.ToLower(strings.TrimSpace(app))
	if normalizedApp == "" {
		normalizedApp = "default"
	}
	return normalizedProvider + ":" + normalizedApp + ":" + digits
}

// DigitsOnly strips everything but decimal digits from a phone string.
func DigitsOnly(phone string) string {
	var sb strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// EpochMS returns the current time in epoch milliseconds.
func EpochMS() int64 {
	return time.Now().UnixMilli()
}
