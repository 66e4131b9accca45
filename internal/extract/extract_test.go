package extract

import (
	"testing"
	"time"
)

func TestParseZona(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"gazetteer hit", "Busco en Villa Lugano", "Villa Lugano"},
		{"gazetteer accent insensitive", "algo por nuñez estaria bien", "Nuñez"},
		{"multi word before single word", "depto en villa del parque", "Villa del Parque"},
		{"city alias", "busco en capital federal", "CABA"},
		{"fallback connector", "estoy buscando en parque avellaneda", "Parque Avellaneda"},
		{"fallback keeps connectives lowercase", "busco zona lomas de zamora", "Lomas de Zamora"},
		{"too short fallback discarded", "busco en gba", ""},
		{"no zone", "hola que tal", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseZona(tt.text); got != tt.want {
				t.Errorf("ParseZona(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseTipologia(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"busco 3 ambientes en caballito", "3 ambientes"},
		{"un depto de 2amb", "2 ambientes"},
		{"quiero un monoambiente", "monoambiente"},
		{"depto de tres ambientes", "3 ambientes"},
		{"busco en palermo", ""},
	}
	for _, tt := range tests {
		if got := ParseTipologia(tt.text); got != tt.want {
			t.Errorf("ParseTipologia(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestParseBudget(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		outcome      BudgetOutcome
		amount       int64
		currency     string
		hasMagnitude bool
	}{
		{"usd with k", "USD 120k", BudgetResolved, 120000, "USD", true},
		{"millions of pesos", "50M pesos", BudgetResolved, 50_000_000, "ARS", true},
		{"bare small int discarded", "16", BudgetNoMatch, 0, "", false},
		{"thousands separator", "tengo 120.000 dolares", BudgetResolved, 120000, "USD", false},
		{"currency without amount", "pago en dolares", BudgetNoMatch, 0, "USD", false},
		{"spelled thousands", "hasta 200 mil pesos", BudgetResolved, 200000, "ARS", true},
		{"ambiguous small usd", "USD 120", BudgetAmbiguous, 120, "USD", false},
		{"large literal not ambiguous", "USD 90000", BudgetResolved, 90000, "USD", false},
		{"bare four digits", "presupuesto 4500", BudgetResolved, 4500, "", false},
		{"dollar sign", "$ 350000", BudgetResolved, 350000, "ARS", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseBudget(tt.text)
			if got.Outcome != tt.outcome {
				t.Fatalf("ParseBudget(%q).Outcome = %v, want %v", tt.text, got.Outcome, tt.outcome)
			}
			if tt.outcome == BudgetNoMatch {
				if got.Currency != tt.currency {
					t.Errorf("ParseBudget(%q).Currency = %q, want %q", tt.text, got.Currency, tt.currency)
				}
				return
			}
			if got.Amount != tt.amount || got.Currency != tt.currency {
				t.Errorf("ParseBudget(%q) = (%d, %q), want (%d, %q)",
					tt.text, got.Amount, got.Currency, tt.amount, tt.currency)
			}
			if got.HasMagnitude != tt.hasMagnitude {
				t.Errorf("ParseBudget(%q).HasMagnitude = %v, want %v", tt.text, got.HasMagnitude, tt.hasMagnitude)
			}
		})
	}
}

func TestAmbiguousBudget(t *testing.T) {
	if !AmbiguousBudget(120, "USD", false) {
		t.Error("small amount with currency and no magnitude should be ambiguous")
	}
	if AmbiguousBudget(120, "USD", true) {
		t.Error("magnitude-backed amount should not be ambiguous")
	}
	if AmbiguousBudget(120, "", false) {
		t.Error("amount without currency should not be ambiguous")
	}
	if AmbiguousBudget(5000, "USD", false) {
		t.Error("amount at threshold should not be ambiguous")
	}
}

func TestParseFechaMudanza(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		text string
		want string
	}{
		{"me mudo el 15 de marzo", "2026-03-15"},
		{"mudanza el 1/12", "2026-12-01"},
		{"el 01/12/2027 aprox", "2027-12-01"},
		{"para fines de marzo", "fines de marzo"},
		{"a principios de julio", "principios de julio"},
		{"me mudo en octubre", "octubre"},
		{"lo antes posible", "lo antes posible"},
		{"cuanto antes mejor", "lo antes posible"},
		{"el mes que viene", "proximo mes"},
		{"el 45 de marzo", ""},
		{"busco 3 ambientes", ""},
	}
	for _, tt := range tests {
		if got := ParseFechaMudanza(tt.text, now); got != tt.want {
			t.Errorf("ParseFechaMudanza(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestParseVisita(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		day      string
		timeFrom string
		timeTo   string
		none     bool
	}{
		{name: "day and range", text: "puedo el sabado de 8 a 12", day: "sabado", timeFrom: "08:00", timeTo: "12:00"},
		{name: "range with hs", text: "de 14hs a 16hs", timeFrom: "14:00", timeTo: "16:00"},
		{name: "single time", text: "el martes a las 16", day: "martes", timeFrom: "16:00"},
		{name: "hs suffix", text: "10hs me queda bien", timeFrom: "10:00"},
		{name: "day only", text: "el jueves puedo", day: "jueves"},
		{name: "nothing", text: "busco en palermo", none: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseVisita(tt.text)
			if tt.none {
				if got != nil {
					t.Fatalf("ParseVisita(%q) = %+v, want nil", tt.text, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseVisita(%q) = nil", tt.text)
			}
			if got.DayOfWeek != tt.day || got.TimeFrom != tt.timeFrom || got.TimeTo != tt.timeTo {
				t.Errorf("ParseVisita(%q) = (%q, %q, %q), want (%q, %q, %q)",
					tt.text, got.DayOfWeek, got.TimeFrom, got.TimeTo, tt.day, tt.timeFrom, tt.timeTo)
			}
		})
	}
}

func TestVocabulary(t *testing.T) {
	if !IsReset("quiero empezar de nuevo") || !IsReset("RESET") {
		t.Error("reset vocabulary not recognized")
	}
	if IsReset("busco en palermo") {
		t.Error("plain message flagged as reset")
	}
	if !IsAffirmative("si") || !IsAffirmative("Dale!") || !IsAffirmative("esta bien") {
		t.Error("affirmative vocabulary not recognized")
	}
	if IsAffirmative("si busco en palermo") {
		t.Error("sentence flagged as affirmative")
	}
	if !IsShortAck("Hola") || !IsShortAck("ok") || !IsShortAck("?") {
		t.Error("short ack vocabulary not recognized")
	}
	if IsShortAck("hola busco depto") {
		t.Error("informative message flagged as short ack")
	}
}
