package session

import (
	"context"
	"testing"

	"github.com/vertice360/leadqual/internal/domain"
)

func inboundFrom(provider, from, text string) *domain.InboundMessage {
	msg := &domain.InboundMessage{
		Provider:  provider,
		App:       "Vertice360Dev",
		Channel:   "whatsapp",
		From:      from,
		To:        "+5491100000000",
		MessageID: "wamid." + text,
		Text:      text,
	}
	msg.Normalize(1_700_000_000_000)
	return msg
}

func TestResolverReusesActiveSession(t *testing.T) {
	store, _ := newTestStore(t)
	resolver := NewResolver(store, nil)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, inboundFrom("gupshup_whatsapp", "+5491130946950", "hola"))
	if err != nil {
		t.Fatal(err)
	}
	if !first.Created {
		t.Fatal("first message should create a session")
	}

	second, err := resolver.Resolve(ctx, inboundFrom("gupshup_whatsapp", "+54 9 11 3094 6950", "busco en palermo"))
	if err != nil {
		t.Fatal(err)
	}
	if second.Created || second.Session.ID != first.Session.ID {
		t.Errorf("same conversation resolved to %q (created=%v), want %q", second.Session.ID, second.Created, first.Session.ID)
	}
}

func TestResolverExplicitTicketID(t *testing.T) {
	store, _ := newTestStore(t)
	resolver := NewResolver(store, nil)
	ctx := context.Background()

	created := store.Create(ctx, seedInbound("+5491130946950"))
	msg := inboundFrom("gupshup_whatsapp", "+5491130946950", "3 ambientes")
	msg.TicketID = created.ID

	res, err := resolver.Resolve(ctx, msg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Created || res.Session.ID != created.ID {
		t.Errorf("explicit id resolution = %+v", res)
	}
}

func TestResolverPhoneFallbackAcrossProviders(t *testing.T) {
	store, _ := newTestStore(t)
	resolver := NewResolver(store, nil)
	ctx := context.Background()

	first, _ := resolver.Resolve(ctx, inboundFrom("meta_whatsapp", "+5491130946950", "hola"))

	// Same phone arrives through another provider: fall back to the digits.
	res, err := resolver.Resolve(ctx, inboundFrom("gupshup_whatsapp", "5491130946950", "sigo buscando"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Created || res.Session.ID != first.Session.ID {
		t.Errorf("phone fallback = %+v, want session %q", res, first.Session.ID)
	}
}

func TestResolverClosedSessionStartsFresh(t *testing.T) {
	store, _ := newTestStore(t)
	resolver := NewResolver(store, nil)
	ctx := context.Background()

	first, _ := resolver.Resolve(ctx, inboundFrom("gupshup_whatsapp", "+5491130946950", "hola"))
	_ = store.Close(ctx, first.Session.ID, "done")

	res, err := resolver.Resolve(ctx, inboundFrom("gupshup_whatsapp", "+5491130946950", "hola de nuevo"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Created || res.Session.ID == first.Session.ID {
		t.Errorf("closed conversation reused: %+v", res)
	}
}

func TestResolverResetVocabulary(t *testing.T) {
	store, _ := newTestStore(t)
	resolver := NewResolver(store, nil)
	ctx := context.Background()

	first, _ := resolver.Resolve(ctx, inboundFrom("gupshup_whatsapp", "+5491130946950", "hola"))
	amount := int64(120000)
	_ = store.UpdateProfile(ctx, first.Session.ID, ProfilePatch{Zona: "Palermo", Presupuesto: &amount, Moneda: "USD"})

	res, err := resolver.Resolve(ctx, inboundFrom("gupshup_whatsapp", "+5491130946950", "quiero empezar de nuevo"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Created || !res.Reset {
		t.Fatalf("reset message did not create a session: %+v", res)
	}
	if res.Session.ID == first.Session.ID {
		t.Error("reset reused the old session")
	}
	if res.Session.Profile.Zona != "" || res.Session.Profile.Presupuesto != nil {
		t.Errorf("new session inherited profile: %+v", res.Session.Profile)
	}
	if first.Session.Status != domain.SessionStatusClosed {
		t.Errorf("old session status = %q, want CLOSED", first.Session.Status)
	}
}
