package policy

import (
	"strings"

	"github.com/vertice360/leadqual/internal/extract"
)

// Intent is the coarse routing intent of one inbound message.
type Intent string

const (
	IntentDocs        Intent = "DOCS"
	IntentReservation Intent = "RESERVATION"
	IntentGreeting    Intent = "GREETING"
	IntentGeneral     Intent = "GENERAL"
)

var docsTokens = []string{"document", "dni", "pasaporte", "comprobante", "adjunto", "foto"}
var reservationTokens = []string{"reserv", "unidad", "2b", "febrero"}
var greetingTokens = []string{"hola", "buenas", "buen dia", "buenas tardes"}

// ClassifyIntent routes a message into the coarse docs/reservation/greeting
// buckets. Slot filling runs regardless; this only selects the side flow.
func ClassifyIntent(text string) Intent {
	normalized := extract.Normalize(text)
	if containsAny(normalized, docsTokens) {
		return IntentDocs
	}
	if containsAny(normalized, reservationTokens) {
		return IntentReservation
	}
	if containsAny(normalized, greetingTokens) {
		return IntentGreeting
	}
	return IntentGeneral
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
