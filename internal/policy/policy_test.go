package policy

import (
	"strings"
	"testing"

	"github.com/vertice360/leadqual/internal/domain"
)

func int64p(v int64) *int64 { return &v }

func TestMissingSlotsPriority(t *testing.T) {
	profile := &domain.CommercialProfile{}
	memory := &domain.SlotMemory{}

	got := MissingSlots(profile, memory, false)
	want := []string{SlotZona, SlotTipologia, SlotPresupuesto, SlotMoneda}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("MissingSlots = %v, want %v", got, want)
	}

	profile.Zona = "Palermo"
	profile.Tipologia = "3 ambientes"
	got = MissingSlots(profile, memory, false)
	if strings.Join(got, ",") != "presupuesto,moneda" {
		t.Fatalf("MissingSlots = %v", got)
	}

	profile.Presupuesto = int64p(120000)
	profile.Moneda = "USD"
	if got := MissingSlots(profile, memory, false); len(got) != 0 {
		t.Fatalf("complete profile reported missing %v", got)
	}

	if got := MissingSlots(profile, memory, true); strings.Join(got, ",") != "fecha_mudanza" {
		t.Fatalf("move-in date flag: MissingSlots = %v", got)
	}
}

func TestMissingSlotsPendingAmbiguity(t *testing.T) {
	profile := &domain.CommercialProfile{Zona: "Palermo", Tipologia: "2 ambientes", Moneda: "USD"}
	memory := &domain.SlotMemory{Pending: &domain.BudgetAmbiguity{Amount: 120, Currency: "USD"}}
	got := MissingSlots(profile, memory, false)
	if strings.Join(got, ",") != "presupuesto" {
		t.Fatalf("pending ambiguity: MissingSlots = %v", got)
	}
}

func TestNextBestQuestion(t *testing.T) {
	tests := []struct {
		name     string
		profile  domain.CommercialProfile
		missing  []string
		wantText string
		wantKey  string
	}{
		{
			name:     "zone and typology both missing",
			missing:  []string{SlotZona, SlotTipologia, SlotPresupuesto, SlotMoneda},
			wantText: "¿Por qué zona buscás y qué tipología (ambientes)?",
			wantKey:  SlotZona,
		},
		{
			name:     "zone missing with typology answered acknowledges it",
			profile:  domain.CommercialProfile{Tipologia: "3 ambientes"},
			missing:  []string{SlotZona, SlotPresupuesto, SlotMoneda},
			wantText: "Perfecto, 3 ambientes. ¿Por qué zona buscás?",
			wantKey:  SlotZona,
		},
		{
			name:     "typology missing acknowledges zone",
			profile:  domain.CommercialProfile{Zona: "Caballito"},
			missing:  []string{SlotTipologia, SlotPresupuesto, SlotMoneda},
			wantText: "Perfecto, zona Caballito. ¿Cuántos ambientes necesitás?",
			wantKey:  SlotTipologia,
		},
		{
			name:     "budget only",
			profile:  domain.CommercialProfile{Zona: "Caballito", Tipologia: "3 ambientes"},
			missing:  []string{SlotPresupuesto, SlotMoneda},
			wantText: "¿Cuál es tu presupuesto aproximado y moneda?",
			wantKey:  SlotPresupuesto,
		},
		{
			name:     "currency only",
			profile:  domain.CommercialProfile{Zona: "Caballito", Tipologia: "3 ambientes", Presupuesto: int64p(120000)},
			missing:  []string{SlotMoneda},
			wantText: "¿En qué moneda está ese presupuesto?",
			wantKey:  SlotMoneda,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, ok := NextBestQuestion(&tt.profile, tt.missing)
			if !ok {
				t.Fatal("NextBestQuestion returned ok=false")
			}
			if q.Text != tt.wantText || q.Key != tt.wantKey {
				t.Errorf("NextBestQuestion = (%q, %q), want (%q, %q)", q.Text, q.Key, tt.wantText, tt.wantKey)
			}
		})
	}

	if _, ok := NextBestQuestion(&domain.CommercialProfile{}, nil); ok {
		t.Error("NextBestQuestion with nothing missing should return ok=false")
	}
}

func TestAvoidRepeat(t *testing.T) {
	profile := &domain.CommercialProfile{}
	missing := []string{SlotZona, SlotTipologia, SlotPresupuesto, SlotMoneda}
	q := Question{Text: "¿Por qué zona buscás y qué tipología (ambientes)?", Key: SlotZona}

	memory := &domain.SlotMemory{}
	if got := AvoidRepeat(memory, q, profile, missing); got != q {
		t.Errorf("fresh question rewritten to %+v", got)
	}

	memory.LastQuestion = q.Text
	got := AvoidRepeat(memory, q, profile, missing)
	if got.Key != SlotTipologia {
		t.Fatalf("repeat should move to next missing slot, got key %q", got.Key)
	}

	// Only one slot left: fall back to a phrasing variant.
	memory = &domain.SlotMemory{LastQuestion: "¿Cuál es tu presupuesto aproximado y moneda?"}
	q = Question{Text: "¿Cuál es tu presupuesto aproximado y moneda?", Key: SlotPresupuesto}
	got = AvoidRepeat(memory, q, profile, []string{SlotPresupuesto})
	if got.Key != SlotPresupuesto || got.Text == q.Text {
		t.Errorf("repeat variant = %+v", got)
	}
}

func TestAmbiguityQuestion(t *testing.T) {
	got := AmbiguityQuestion("USD", 120)
	want := "¿Confirmás si es USD 120 o USD 120 mil aprox.?"
	if got != want {
		t.Errorf("AmbiguityQuestion = %q, want %q", got, want)
	}
	if AmbiguityQuestion("", 120) != "" {
		t.Error("missing currency should produce no question")
	}
}

func TestSummaryClose(t *testing.T) {
	profile := &domain.CommercialProfile{
		Zona:        "Caballito",
		Tipologia:   "3 ambientes",
		Presupuesto: int64p(120000),
		Moneda:      "USD",
	}
	got := SummaryClose(profile)
	if !strings.HasPrefix(got, "Gracias. Tengo: zona Caballito, 3 ambientes, presupuesto 120000 USD.") {
		t.Errorf("SummaryClose = %q", got)
	}
	if !strings.Contains(got, "Un asesor te va a enviar") {
		t.Errorf("SummaryClose missing advisor line: %q", got)
	}

	partial := SummaryClose(&domain.CommercialProfile{Zona: "Caballito"})
	if !strings.Contains(partial, "presupuesto ? ?") {
		t.Errorf("partial summary = %q", partial)
	}
}

func TestLooksLikeInvalidZona(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"asdf qwer", true},
		{"cualquier cosa rara", true},
		{"hola", false},
		{"3 ambientes", false},
		{"USD 120k", false},
		{"busco depto", false},
		{"una respuesta bastante larga que claramente no es un barrio de la ciudad", false},
	}
	for _, tt := range tests {
		if got := LooksLikeInvalidZona(tt.text); got != tt.want {
			t.Errorf("LooksLikeInvalidZona(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{"te mando la foto del dni", IntentDocs},
		{"quiero reservar la unidad 2b", IntentReservation},
		{"hola buenas", IntentGreeting},
		{"busco en palermo", IntentGeneral},
	}
	for _, tt := range tests {
		if got := ClassifyIntent(tt.text); got != tt.want {
			t.Errorf("ClassifyIntent(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestCanonicalOutbound(t *testing.T) {
	withIntro := IntroPrefix + "¿En qué zona o barrio estás buscando?"
	if CanonicalOutbound(withIntro) != CanonicalOutbound("¿En qué zona o barrio estás buscando?") {
		t.Error("intro prefix should not affect outbound comparison")
	}
}

func TestTruncateReply(t *testing.T) {
	text := strings.Repeat("a", 500)
	got := TruncateReply(text, 480)
	if runes := []rune(got); len(runes) != 480 {
		t.Errorf("truncated length = %d, want 480", len(runes))
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("truncated reply should end with ellipsis")
	}
	if TruncateReply("corto", 480) != "corto" {
		t.Error("short reply should pass through")
	}
}
