package session

import (
	"context"
	"testing"
	"time"

	"github.com/vertice360/leadqual/internal/domain"
	"github.com/vertice360/leadqual/internal/events"
	"github.com/vertice360/leadqual/pkg/util"
)

func newTestStore(t *testing.T) (*Store, *recorder) {
	t.Helper()
	rec := &recorder{}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.SubscribeAll(func(_ context.Context, event events.Event) error {
		rec.events = append(rec.events, event)
		return nil
	})
	emitter := events.NewEmitter(dispatcher, nil, nil)
	return NewStore(emitter, nil, 2*time.Second), rec
}

type recorder struct {
	events []events.Event
}

func (r *recorder) count(name events.EventName) int {
	var n int
	for _, event := range r.events {
		if event.Name == name {
			n++
		}
	}
	return n
}

func seedInbound(from string) Seed {
	return Seed{
		Provider: "gupshup_whatsapp",
		App:      "Vertice360Dev",
		Channel:  "whatsapp",
		Customer: domain.Customer{From: from, To: "+5491100000000", Provider: "gupshup_whatsapp", Channel: "whatsapp"},
		Subject:  "Busco depto",
	}
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	store, rec := newTestStore(t)
	ctx := context.Background()

	first := store.Create(ctx, seedInbound("+54 9 11 3094-6950"))
	second := store.Create(ctx, seedInbound("+54 9 11 0000-0001"))

	if first.ID != "VTX-0001" || second.ID != "VTX-0002" {
		t.Errorf("ids = %q, %q", first.ID, second.ID)
	}
	if first.Status != domain.SessionStatusOpen {
		t.Errorf("status = %q", first.Status)
	}
	if first.ConversationKey != "gupshup_whatsapp:vertice360dev:5491130946950" {
		t.Errorf("conversation key = %q", first.ConversationKey)
	}
	if rec.count(events.TicketCreated) != 2 {
		t.Errorf("ticket.created events = %d", rec.count(events.TicketCreated))
	}
}

func TestStatusMachine(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	session := store.Create(ctx, seedInbound("+5491130946950"))

	steps := []domain.SessionStatus{
		domain.SessionStatusInProgress,
		domain.SessionStatusWaitingDocs,
		domain.SessionStatusInProgress,
		domain.SessionStatusEscalated,
	}
	for _, next := range steps {
		if err := store.SetStatus(ctx, session.ID, next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	// Escalation wins over the docs flow.
	err := store.SetStatus(ctx, session.ID, domain.SessionStatusWaitingDocs)
	if !util.IsCode(err, util.CodeConflict) {
		t.Errorf("ESCALATED -> WAITING_DOCS err = %v", err)
	}

	if err := store.SetStatus(ctx, session.ID, domain.SessionStatusClosed); err != nil {
		t.Fatal(err)
	}
	err = store.SetStatus(ctx, session.ID, domain.SessionStatusInProgress)
	if !util.IsCode(err, util.CodeConflict) {
		t.Errorf("CLOSED -> IN_PROGRESS err = %v", err)
	}
}

func TestSetStatusSameIsNoOp(t *testing.T) {
	store, rec := newTestStore(t)
	ctx := context.Background()
	session := store.Create(ctx, seedInbound("+5491130946950"))

	if err := store.SetStatus(ctx, session.ID, domain.SessionStatusInProgress); err != nil {
		t.Fatal(err)
	}
	before := rec.count(events.TicketUpdated)
	if err := store.SetStatus(ctx, session.ID, domain.SessionStatusInProgress); err != nil {
		t.Fatal(err)
	}
	if rec.count(events.TicketUpdated) != before {
		t.Error("same-status transition emitted an event")
	}
}

func TestInboundMessageIdempotency(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	session := store.Create(ctx, seedInbound("+5491130946950"))

	msg := domain.Message{Direction: domain.DirectionInbound, MessageID: "wamid.1", Text: "hola", At: 1000}
	if added, _ := store.AddMessage(ctx, session.ID, msg); !added {
		t.Fatal("first message not added")
	}
	if added, _ := store.AddMessage(ctx, session.ID, msg); added {
		t.Fatal("replayed message added twice")
	}
	if len(session.Messages) != 1 {
		t.Errorf("messages = %d", len(session.Messages))
	}

	// Outbound entries are never deduped by message id.
	out := domain.Message{Direction: domain.DirectionOutbound, MessageID: "wamid.1", Text: "hola"}
	if added, _ := store.AddMessage(ctx, session.ID, out); !added {
		t.Error("outbound message rejected")
	}
}

func TestTimelineDedupeWindow(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	session := store.Create(ctx, seedInbound("+5491130946950"))

	clock := int64(1_700_000_000_000)
	store.now = func() int64 { return clock }

	_ = store.AddTimelineEvent(ctx, session.ID, "commercial.memory", map[string]any{"missing": 2})
	clock += 500
	_ = store.AddTimelineEvent(ctx, session.ID, "commercial.memory", map[string]any{"missing": 2})
	before := len(session.Timeline)

	clock += 3000
	_ = store.AddTimelineEvent(ctx, session.ID, "commercial.memory", map[string]any{"missing": 2})
	if len(session.Timeline) != before+1 {
		t.Error("entry outside dedupe window was dropped")
	}

	var memoryEntries int
	for _, entry := range session.Timeline {
		if entry.Name == "commercial.memory" {
			memoryEntries++
		}
	}
	if memoryEntries != 2 {
		t.Errorf("commercial.memory entries = %d, want 2", memoryEntries)
	}
}

func TestSLALifecycle(t *testing.T) {
	store, rec := newTestStore(t)
	ctx := context.Background()
	session := store.Create(ctx, seedInbound("+5491130946950"))

	dueAt, err := store.StartSLA(ctx, session.ID, domain.SLAAssignment, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := store.StartSLA(ctx, session.ID, domain.SLAAssignment, 30*time.Minute)
	if again != dueAt {
		t.Error("restarting a running clock changed the deadline")
	}
	if rec.count(events.TicketSLAStarted) != 1 {
		t.Errorf("sla.started events = %d", rec.count(events.TicketSLAStarted))
	}

	declared, _ := store.DeclareBreach(ctx, session.ID, domain.SLAAssignment)
	if !declared {
		t.Fatal("first breach not declared")
	}
	declared, _ = store.DeclareBreach(ctx, session.ID, domain.SLAAssignment)
	if declared {
		t.Fatal("breach declared twice")
	}
	if rec.count(events.TicketSLABreached) != 1 {
		t.Errorf("sla.breached events = %d", rec.count(events.TicketSLABreached))
	}

	// The other clock never started, so it cannot breach.
	declared, _ = store.DeclareBreach(ctx, session.ID, domain.SLADocValidation)
	if declared {
		t.Error("breach declared for a clock that never started")
	}
}

func TestEscalationDedupe(t *testing.T) {
	store, rec := newTestStore(t)
	ctx := context.Background()
	session := store.Create(ctx, seedInbound("+5491130946950"))
	_ = store.SetStatus(ctx, session.ID, domain.SessionStatusInProgress)

	if err := store.Escalate(ctx, session.ID, "SUPERVISORS", "sla_breach"); err != nil {
		t.Fatal(err)
	}
	if session.Status != domain.SessionStatusEscalated {
		t.Errorf("status = %q", session.Status)
	}

	// Same team and reason: no second event.
	_ = store.Escalate(ctx, session.ID, "SUPERVISORS", "sla_breach")
	if rec.count(events.TicketEscalated) != 1 {
		t.Errorf("escalated events = %d, want 1", rec.count(events.TicketEscalated))
	}

	// Different reason emits again.
	_ = store.Escalate(ctx, session.ID, "SUPERVISORS", "doc_validation_breach")
	if rec.count(events.TicketEscalated) != 2 {
		t.Errorf("escalated events = %d, want 2", rec.count(events.TicketEscalated))
	}
}

func TestUpdateProfileMerge(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	session := store.Create(ctx, seedInbound("+5491130946950"))

	amount := int64(120000)
	err := store.UpdateProfile(ctx, session.ID, ProfilePatch{Zona: "Caballito", Presupuesto: &amount, Moneda: "USD"})
	if err != nil {
		t.Fatal(err)
	}
	if session.Profile.Zona != "Caballito" || session.Profile.Moneda != "USD" {
		t.Errorf("profile = %+v", session.Profile)
	}
	if session.Profile.Presupuesto == nil || *session.Profile.Presupuesto != 120000 {
		t.Errorf("presupuesto = %v", session.Profile.Presupuesto)
	}

	// An empty patch leaves everything untouched.
	updatedAt := session.UpdatedAt
	if err := store.UpdateProfile(ctx, session.ID, ProfilePatch{}); err != nil {
		t.Fatal(err)
	}
	if session.UpdatedAt != updatedAt {
		t.Error("empty patch touched the session")
	}
}
