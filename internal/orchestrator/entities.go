package orchestrator

import (
	"regexp"
	"strings"
	"time"

	"github.com/vertice360/leadqual/internal/domain"
	"github.com/vertice360/leadqual/internal/extract"
)

var (
	emailRE   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRE   = regexp.MustCompile(`\+?\d[\d\s\-().]{6,}\d`)
	dniCuitRE = regexp.MustCompile(`\b\d{7,8}\b|\b\d{2}-\d{8}-\d{1}\b`)
	amountRE  = regexp.MustCompile(`(?i)(?:usd|u\$s|us\$|ars|\$)\s*\d[\d.,]*\s*(?:millones|millon|mil|k)?` +
		`|\b\d{1,3}(?:[.\s]\d{3})+(?:,\d{2})?\b` +
		`|\b\d+\s*(?:millones|millon|mil|k)\b`)
	addressRE = regexp.MustCompile(`(?i)\b(?:calle|av\.?|avenida|ruta|direccion)\s+[A-Za-z0-9\s]{3,40}`)
)

// Entities holds what the extraction stage found: generic contact-like spans
// plus the commercial slots parsed with the engine's extractors.
type Entities struct {
	Emails    []string `json:"emails"`
	Phones    []string `json:"phones"`
	DNICuit   []string `json:"dni_cuit"`
	Amounts   []string `json:"amounts"`
	Addresses []string `json:"addresses"`

	Zona            string            `json:"zona,omitempty"`
	Tipologia       string            `json:"tipologia,omitempty"`
	Presupuesto     int64             `json:"presupuesto,omitempty"`
	Moneda          string            `json:"moneda,omitempty"`
	FechaMudanza    string            `json:"fecha_mudanza,omitempty"`
	Visit           *domain.VisitSlot `json:"visit,omitempty"`
	BudgetAmbiguous bool              `json:"budget_ambiguous,omitempty"`
}

// extractAll runs every entity regex plus the slot extractors over the raw
// text. Regex hits are deduplicated preserving first occurrence.
func extractAll(text string, now time.Time) Entities {
	ents := Entities{
		Emails:    dedupe(emailRE.FindAllString(text, -1)),
		Phones:    dedupe(phoneRE.FindAllString(text, -1)),
		DNICuit:   dedupe(dniCuitRE.FindAllString(text, -1)),
		Amounts:   dedupe(amountRE.FindAllString(text, -1)),
		Addresses: dedupe(addressRE.FindAllString(text, -1)),

		Zona:         extract.ParseZona(text),
		Tipologia:    extract.ParseTipologia(text),
		FechaMudanza: extract.ParseFechaMudanza(text, now),
		Visit:        extract.ParseVisita(text),
	}

	budget := extract.ParseBudget(text)
	switch budget.Outcome {
	case extract.BudgetResolved:
		ents.Presupuesto = budget.Amount
		ents.Moneda = budget.Currency
	case extract.BudgetAmbiguous:
		ents.Presupuesto = budget.Amount
		ents.Moneda = budget.Currency
		ents.BudgetAmbiguous = true
	}
	return ents
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		key := strings.TrimSpace(value)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, value)
	}
	return out
}
