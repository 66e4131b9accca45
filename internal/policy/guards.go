package policy

import (
	"regexp"
	"strings"

	"github.com/vertice360/leadqual/internal/extract"
)

var zonaCandidateStopwords = map[string]bool{
	"hola": true, "hi": true, "hello": true,
	"busco": true, "buscar": true, "quiero": true, "necesito": true,
	"depto": true, "departamento": true, "propiedad": true,
	"alquiler": true, "comprar": true, "compra": true, "venta": true,
	"por": true, "en": true, "zona": true, "barrio": true,
	"caba": true, "gba": true, "capital": true, "federal": true,
}

var wordRE = regexp.MustCompile(`[a-z]+`)

// LooksLikeInvalidZona reports whether a short free-text answer to the zone
// question fails to name any recognizable place. Messages carrying digits,
// a typology or a budget are never flagged; they answer a different slot.
func LooksLikeInvalidZona(text string) bool {
	normalized := extract.CollapseSpaces(extract.Normalize(text))
	if normalized == "" {
		return false
	}
	if extract.IsShortAck(normalized) {
		return false
	}
	if strings.ContainsAny(normalized, "0123456789") {
		return false
	}
	if extract.ParseTipologia(normalized) != "" {
		return false
	}
	if extract.ParseBudget(normalized).Outcome != extract.BudgetNoMatch {
		return false
	}
	var meaningful int
	for _, token := range wordRE.FindAllString(normalized, -1) {
		if !zonaCandidateStopwords[token] {
			meaningful++
		}
	}
	return meaningful > 0 && meaningful <= 4
}

var propertySearchTokens = []string{
	"busco depto",
	"busco departamento",
	"depto",
	"departamento",
	"monoambiente",
	"ambientes",
	"ambiente",
}

// IsPropertySearchText reports whether the message signals a property search,
// used to lock the conversation's primary intent.
func IsPropertySearchText(text string) bool {
	normalized := extract.Normalize(text)
	for _, token := range propertySearchTokens {
		if strings.Contains(normalized, token) {
			return true
		}
	}
	return false
}

var unitSelectionRE = regexp.MustCompile(`\b(unidad|dpto|depto|opcion)\s+\w+`)

// HasUnitSelection reports whether the message names a concrete unit, which
// keeps a RESERVATION intent from being downgraded.
func HasUnitSelection(text string) bool {
	return unitSelectionRE.MatchString(extract.Normalize(text))
}
