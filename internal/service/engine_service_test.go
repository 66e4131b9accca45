package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vertice360/leadqual/internal/config"
	"github.com/vertice360/leadqual/internal/domain"
	"github.com/vertice360/leadqual/internal/events"
	"github.com/vertice360/leadqual/internal/persistence"
	"github.com/vertice360/leadqual/internal/policy"
	"github.com/vertice360/leadqual/internal/session"
)

type sentMessage struct {
	To   string
	Text string
}

type fakeSender struct {
	sent []sentMessage
	fail bool
}

func (f *fakeSender) Send(_ context.Context, to, text string) (string, error) {
	if f.fail {
		return "", errors.New("upstream unavailable")
	}
	f.sent = append(f.sent, sentMessage{To: to, Text: text})
	return fmt.Sprintf("wamid.out-%d", len(f.sent)), nil
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

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		AskMoveInDate:          false,
		AssignmentSLAMinutes:   30,
		DocValidationSLAHours:  24,
		InboundDedupeTTLSec:    600,
		InboundDedupeMaxKeys:   5000,
		TimelineDedupeWindowMS: 2000,
		ReplyMaxChars:          480,
		SLAWatcherIntervalSec:  60,
	}
}

func newTestEngine(t *testing.T) (*EngineService, *fakeSender, *recorder, *session.Store) {
	t.Helper()
	rec := &recorder{}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.SubscribeAll(func(_ context.Context, event events.Event) error {
		rec.events = append(rec.events, event)
		return nil
	})
	emitter := events.NewEmitter(dispatcher, nil, nil)
	store := session.NewStore(emitter, nil, 2*time.Second)
	sender := &fakeSender{}
	svc := NewEngineService(EngineDependencies{
		Store:    store,
		Resolver: session.NewResolver(store, nil),
		Emitter:  emitter,
		Dedupe:   persistence.NewMemoryDedupeCache(10*time.Minute, 100),
		Sender:   sender,
		Config:   testEngineConfig(),
	})
	return svc, sender, rec, store
}

var msgSeq int

func inboundText(text string) domain.InboundMessage {
	msgSeq++
	return domain.InboundMessage{
		Provider:  "gupshup_whatsapp",
		App:       "Vertice360Dev",
		Channel:   "whatsapp",
		From:      "+54 9 11 3094-6950",
		To:        "+5491100000000",
		MessageID: fmt.Sprintf("wamid.in-%d", msgSeq),
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
}

func TestQualificationFlowEndToEnd(t *testing.T) {
	svc, sender, rec, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := svc.ProcessInbound(ctx, inboundText("busco depto"))
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if first.Outcome != "outbound_sent" {
		t.Fatalf("turn 1 outcome = %q", first.Outcome)
	}
	if !strings.HasPrefix(first.ReplyText, policy.IntroPrefix) {
		t.Errorf("turn 1 reply misses intro prefix: %q", first.ReplyText)
	}
	if !strings.Contains(first.ReplyText, "¿Por qué zona buscás y qué tipología (ambientes)?") {
		t.Errorf("turn 1 reply = %q", first.ReplyText)
	}
	if first.Status != domain.SessionStatusInProgress {
		t.Errorf("turn 1 status = %q", first.Status)
	}

	second, err := svc.ProcessInbound(ctx, inboundText("Caballito, 3 ambientes"))
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if second.TicketID != first.TicketID {
		t.Fatalf("session not reused: %q vs %q", second.TicketID, first.TicketID)
	}
	if second.ReplyText != "¿Cuál es tu presupuesto aproximado y moneda?" {
		t.Errorf("turn 2 reply = %q", second.ReplyText)
	}

	thirdMsg := inboundText("USD 120k")
	third, err := svc.ProcessInbound(ctx, thirdMsg)
	if err != nil {
		t.Fatalf("turn 3: %v", err)
	}
	if third.Decision != "summary_close" {
		t.Errorf("turn 3 decision = %q", third.Decision)
	}
	if !strings.Contains(third.ReplyText, "zona Caballito") ||
		!strings.Contains(third.ReplyText, "presupuesto 120000 USD") {
		t.Errorf("turn 3 summary = %q", third.ReplyText)
	}
	if strings.HasPrefix(third.ReplyText, policy.IntroPrefix) {
		t.Errorf("summary must not carry the intro prefix: %q", third.ReplyText)
	}

	sendsBefore := len(sender.sent)
	replay, err := svc.ProcessInbound(ctx, thirdMsg)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !replay.Duplicate || replay.Outcome != "duplicate_ignored" {
		t.Errorf("replay result = %+v", replay)
	}
	if len(sender.sent) != sendsBefore {
		t.Errorf("replay sent an outbound message")
	}

	visit, err := svc.ProcessInbound(ctx, inboundText("el sábado de 10 a 12"))
	if err != nil {
		t.Fatalf("visit turn: %v", err)
	}
	if visit.Outcome != "accepted_no_outbound" {
		t.Errorf("visit turn outcome = %q", visit.Outcome)
	}
	if len(sender.sent) != sendsBefore {
		t.Errorf("visit turn must not send an outbound message")
	}
	if rec.count(events.HumanActionRequired) == 0 {
		t.Error("expected human.action_required after visit capture")
	}

	// Exactly one summary for the whole session.
	var summaries int
	for _, msg := range sender.sent {
		if strings.Contains(msg.Text, "Gracias. Tengo:") {
			summaries++
		}
	}
	if summaries != 1 {
		t.Errorf("summaries sent = %d, want 1", summaries)
	}
}

func TestAmbiguousBudgetNeedsConfirmation(t *testing.T) {
	svc, _, _, store := newTestEngine(t)
	ctx := context.Background()

	first, err := svc.ProcessInbound(ctx, inboundText("Busco en Palermo, 2 ambientes"))
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}

	ambiguous, err := svc.ProcessInbound(ctx, inboundText("usd 120"))
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if ambiguous.Decision != "resolve_ambiguity" {
		t.Fatalf("turn 2 decision = %q", ambiguous.Decision)
	}
	if !strings.Contains(ambiguous.ReplyText, "¿Confirmás si es USD 120 o USD 120 mil aprox.?") {
		t.Errorf("turn 2 reply = %q", ambiguous.ReplyText)
	}
	sess, err := store.Get(first.TicketID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Profile.Presupuesto != nil {
		t.Errorf("ambiguous budget committed early: %d", *sess.Profile.Presupuesto)
	}

	confirmed, err := svc.ProcessInbound(ctx, inboundText("si"))
	if err != nil {
		t.Fatalf("turn 3: %v", err)
	}
	if confirmed.Decision != "summary_close" {
		t.Errorf("turn 3 decision = %q", confirmed.Decision)
	}
	if !strings.Contains(confirmed.ReplyText, "presupuesto 120000 USD") {
		t.Errorf("turn 3 reply = %q", confirmed.ReplyText)
	}
	if sess.Profile.Presupuesto == nil || *sess.Profile.Presupuesto != 120000 {
		t.Errorf("confirmed budget = %v", sess.Profile.Presupuesto)
	}
}

func TestResetCreatesFreshSession(t *testing.T) {
	svc, _, _, store := newTestEngine(t)
	ctx := context.Background()

	first, err := svc.ProcessInbound(ctx, inboundText("Busco en Palermo, 2 ambientes"))
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}

	reset, err := svc.ProcessInbound(ctx, inboundText("reiniciar"))
	if err != nil {
		t.Fatalf("reset turn: %v", err)
	}
	if reset.TicketID == first.TicketID {
		t.Fatalf("reset reused session %q", first.TicketID)
	}
	if !strings.Contains(reset.ReplyText, "¿Por qué zona buscás y qué tipología (ambientes)?") {
		t.Errorf("reset reply = %q", reset.ReplyText)
	}

	old, err := store.Get(first.TicketID)
	if err != nil {
		t.Fatalf("Get old: %v", err)
	}
	if old.Status != domain.SessionStatusClosed {
		t.Errorf("old session status = %q", old.Status)
	}
	fresh, err := store.Get(reset.TicketID)
	if err != nil {
		t.Fatalf("Get new: %v", err)
	}
	if fresh.Profile.Zona != "" || fresh.Profile.Tipologia != "" || fresh.Profile.Presupuesto != nil {
		t.Errorf("new session profile not empty: %+v", fresh.Profile)
	}
}

func TestDocsIntentStartsSLAAndWaitingDocs(t *testing.T) {
	svc, sender, rec, store := newTestEngine(t)
	ctx := context.Background()

	result, err := svc.ProcessInbound(ctx, inboundText("les adjunto la documentación"))
	if err != nil {
		t.Fatalf("ProcessInbound: %v", err)
	}
	if result.Status != domain.SessionStatusWaitingDocs {
		t.Errorf("status = %q", result.Status)
	}
	if result.ReplyText != policy.DocsReply() {
		t.Errorf("reply = %q", result.ReplyText)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sends = %d", len(sender.sent))
	}

	sess, err := store.Get(result.TicketID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Assignee == nil || sess.Assignee.Team != "ADMIN" {
		t.Errorf("assignee = %+v", sess.Assignee)
	}
	if sess.SLA == nil || sess.SLA.AssignmentDueAt == 0 || sess.SLA.DocValidationDueAt == 0 {
		t.Errorf("sla = %+v", sess.SLA)
	}
	if got := rec.count(events.TicketSLAStarted); got != 2 {
		t.Errorf("sla.started events = %d, want 2", got)
	}
}

func TestInvalidZonaGuard(t *testing.T) {
	svc, _, _, store := newTestEngine(t)
	ctx := context.Background()

	first, err := svc.ProcessInbound(ctx, inboundText("hola"))
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if !strings.Contains(first.ReplyText, "¿Por qué zona buscás") {
		t.Fatalf("turn 1 reply = %q", first.ReplyText)
	}

	guard, err := svc.ProcessInbound(ctx, inboundText("mmm"))
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if guard.Decision != "invalid_zona_guard" {
		t.Errorf("decision = %q", guard.Decision)
	}
	if !strings.Contains(guard.ReplyText, policy.InvalidZonaText) {
		t.Errorf("reply = %q", guard.ReplyText)
	}

	sess, err := store.Get(guard.TicketID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Profile.Zona != "" {
		t.Errorf("guard advanced the profile: %q", sess.Profile.Zona)
	}
}

func TestOutboundFailureKeepsState(t *testing.T) {
	svc, sender, rec, store := newTestEngine(t)
	sender.fail = true
	ctx := context.Background()

	result, err := svc.ProcessInbound(ctx, inboundText("Busco en Palermo, 2 ambientes"))
	if err != nil {
		t.Fatalf("ProcessInbound: %v", err)
	}
	if result.Outcome != "outbound_failed" {
		t.Errorf("outcome = %q", result.Outcome)
	}

	sess, err := store.Get(result.TicketID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Profile.Zona != "Palermo" || sess.Profile.Tipologia != "2 ambientes" {
		t.Errorf("profile rolled back: %+v", sess.Profile)
	}
	var failed bool
	for _, event := range rec.events {
		if event.Name == events.MessagingOutbound {
			if status, _ := event.Value["status"].(string); status == "failed" {
				failed = true
			}
		}
	}
	if !failed {
		t.Error("expected a failed messaging.outbound event")
	}
}
