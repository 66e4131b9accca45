// Package policy decides what the engine says next: missing-slot priority,
// question selection with anti-repetition, budget confirmation wording and
// the close-out summary. It is pure; all state lives on the session.
package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/vertice360/leadqual/internal/domain"
	"github.com/vertice360/leadqual/internal/extract"
)

// Slot keys in ask priority order.
const (
	SlotZona         = "zona"
	SlotTipologia    = "tipologia"
	SlotPresupuesto  = "presupuesto"
	SlotMoneda       = "moneda"
	SlotFechaMudanza = "fecha_mudanza"
	KeySummary       = "summary"
)

const (
	IntroPrefix     = "Soy el asistente de Vértice360 👋. "
	VisitPrompt     = "Para coordinar visita, decime día y franja horaria."
	InvalidZonaText = "¿Buscás en CABA/GBA? Decime un barrio (ej: Palermo, Almagro...)"
)

// Question pairs the outbound text with the slot it asks for.
type Question struct {
	Text string
	Key  string
}

// MissingSlots returns the unfilled slots in ask priority order. A pending
// budget ambiguity counts the budget as missing even when an amount was
// parsed, and suppresses the currency until the ambiguity resolves.
func MissingSlots(profile *domain.CommercialProfile, memory *domain.SlotMemory, askMoveInDate bool) []string {
	var missing []string
	if !domain.SlotValuePresent(profile.Zona) {
		missing = append(missing, SlotZona)
	}
	if !domain.SlotValuePresent(profile.Tipologia) {
		missing = append(missing, SlotTipologia)
	}
	if memory != nil && memory.Pending != nil {
		missing = append(missing, SlotPresupuesto)
	} else {
		if profile.Presupuesto == nil {
			missing = append(missing, SlotPresupuesto)
		}
		if !domain.SlotValuePresent(profile.Moneda) {
			missing = append(missing, SlotMoneda)
		}
	}
	if askMoveInDate && !domain.SlotValuePresent(profile.FechaMudanza) {
		missing = append(missing, SlotFechaMudanza)
	}
	return missing
}

var roomCountRE = regexp.MustCompile(`\d+`)

// QuestionForSlot builds the question for one slot, acknowledging the slots
// already captured so consecutive questions read like a conversation.
func QuestionForSlot(slot string, profile *domain.CommercialProfile, missing map[string]bool) string {
	switch slot {
	case SlotZona:
		if domain.SlotValuePresent(profile.Tipologia) {
			if rooms := roomCountRE.FindString(profile.Tipologia); rooms != "" {
				return fmt.Sprintf("Perfecto, %s ambientes. ¿Por qué zona buscás?", rooms)
			}
			return fmt.Sprintf("Perfecto, %s. ¿Por qué zona buscás?", profile.Tipologia)
		}
		if missing[SlotTipologia] {
			return "¿Por qué zona buscás y qué tipología (ambientes)?"
		}
		return "¿En qué zona o barrio estás buscando?"

	case SlotTipologia:
		if domain.SlotValuePresent(profile.Zona) {
			return fmt.Sprintf("Perfecto, zona %s. ¿Cuántos ambientes necesitás?", profile.Zona)
		}
		return "¿Qué tipología buscás? (Ej: 2 ambientes, monoambiente)"

	case SlotPresupuesto, SlotMoneda:
		hasAmount := profile.Presupuesto != nil
		hasCurrency := domain.SlotValuePresent(profile.Moneda)
		if hasAmount && !hasCurrency {
			return "¿En qué moneda está ese presupuesto?"
		}
		if hasCurrency && !hasAmount {
			return "¿Cuál es tu presupuesto aproximado?"
		}
		return "¿Cuál es tu presupuesto aproximado y moneda?"

	case SlotFechaMudanza:
		return "¿Para cuándo necesitás mudarte?"
	}
	return ""
}

// NextBestQuestion picks the highest-priority missing slot and builds its
// question. ok is false when nothing is missing.
func NextBestQuestion(profile *domain.CommercialProfile, missing []string) (Question, bool) {
	missingSet := toSet(missing)
	primary := ""
	switch {
	case missingSet[SlotZona]:
		primary = SlotZona
	case missingSet[SlotTipologia]:
		primary = SlotTipologia
	case missingSet[SlotPresupuesto]:
		primary = SlotPresupuesto
	case missingSet[SlotMoneda]:
		primary = SlotMoneda
	case missingSet[SlotFechaMudanza]:
		primary = SlotFechaMudanza
	default:
		return Question{}, false
	}
	return Question{Text: QuestionForSlot(primary, profile, missingSet), Key: primary}, true
}

var repeatVariants = map[string]string{
	SlotZona:         "¿Qué barrio o zona preferís?",
	SlotTipologia:    "¿Cuántos ambientes buscás?",
	SlotPresupuesto:  "¿Me confirmás el presupuesto y la moneda?",
	SlotMoneda:       "¿Con qué moneda contamos para el presupuesto?",
	SlotFechaMudanza: "¿Tenés una fecha estimada de mudanza?",
}

var askPriority = []string{SlotZona, SlotTipologia, SlotPresupuesto, SlotMoneda, SlotFechaMudanza}

// AvoidRepeat rewrites the question when it matches the previous turn's
// question verbatim: first by switching to another missing slot, then by a
// phrasing variant for the same slot, last by a generic confirmation nudge.
func AvoidRepeat(memory *domain.SlotMemory, question Question, profile *domain.CommercialProfile, missing []string) Question {
	if question.Text == "" {
		return question
	}
	last := normalizeQuestion(memory.LastQuestion)
	if last == "" || normalizeQuestion(question.Text) != last {
		return question
	}

	missingSet := toSet(missing)
	for _, slot := range askPriority {
		if !missingSet[slot] || slot == question.Key {
			continue
		}
		if alt := QuestionForSlot(slot, profile, missingSet); alt != "" {
			return Question{Text: alt, Key: slot}
		}
	}

	if alt := QuestionForSlot(question.Key, profile, missingSet); alt != "" && normalizeQuestion(alt) != last {
		return Question{Text: alt, Key: question.Key}
	}
	if variant, ok := repeatVariants[question.Key]; ok {
		return Question{Text: variant, Key: question.Key}
	}
	return Question{Text: "¿Podés confirmarlo para avanzar?", Key: question.Key}
}

// AmbiguityQuestion asks the user to choose between the literal and x1000
// readings of a small amount.
func AmbiguityQuestion(currency string, amount int64) string {
	if currency == "" || amount <= 0 {
		return ""
	}
	return fmt.Sprintf("¿Confirmás si es %s %d o %s %d mil aprox.?", currency, amount, currency, amount)
}

// SummaryClose builds the close-out message once the profile is complete.
// Unknown values render as "?" so a partial close never drops the line.
func SummaryClose(profile *domain.CommercialProfile) string {
	zona := orPlaceholder(profile.Zona)
	tipologia := orPlaceholder(profile.Tipologia)
	presupuesto := "?"
	if profile.Presupuesto != nil {
		presupuesto = fmt.Sprintf("%d", *profile.Presupuesto)
	}
	moneda := orPlaceholder(profile.Moneda)
	return fmt.Sprintf(
		"Gracias. Tengo: zona %s, %s, presupuesto %s %s.\nUn asesor te va a enviar días y horarios disponibles para generar una visita.",
		zona, tipologia, presupuesto, moneda,
	)
}

// AllRequiredFields reports whether the profile can close out.
func AllRequiredFields(profile *domain.CommercialProfile) bool {
	return domain.SlotValuePresent(profile.Zona) &&
		domain.SlotValuePresent(profile.Tipologia) &&
		profile.Presupuesto != nil &&
		domain.SlotValuePresent(profile.Moneda)
}

// CommercialFallback is the default reply when no rule produced one.
func CommercialFallback() string {
	return "Soy el asistente de Vértice360 👋. ¿Por qué zona buscás y cuántos ambientes necesitás?"
}

// DocsReply confirms the docs flow and lists accepted channels.
func DocsReply() string {
	return "Perfecto. Ya derivé tu caso a Administración para validar documentación ✅\n" +
		"Podés enviar por aquí: foto DNI (frente/dorso) + comprobante.\n" +
		"También, si preferís: docs@vertice360.com"
}

// OnboardingTemplate greets a new reservation lead by name when known.
func OnboardingTemplate(name string) string {
	greeting := "¡Hola!"
	if name != "" {
		greeting = fmt.Sprintf("¡Hola %s!", name)
	}
	return greeting + " Soy el asistente de Vértice360 👋\n" +
		"Para iniciar tu reserva, te pido:\n" +
		"1) Nombre y apellido\n" +
		"2) DNI / Pasaporte\n" +
		"3) Email\n" +
		"4) Forma de pago (contado / cuotas)\n" +
		"Si querés, también podés enviar la documentación por este chat."
}

// CanonicalOutbound normalizes an outbound text for duplicate comparison,
// ignoring the one-time intro prefix and whitespace differences.
func CanonicalOutbound(text string) string {
	clean := normalizeQuestion(text)
	intro := normalizeQuestion(IntroPrefix)
	if strings.HasPrefix(clean, intro) {
		clean = strings.TrimSpace(strings.TrimPrefix(clean, intro))
	}
	return clean
}

// TruncateReply caps the outbound text at max runes, ending with an ellipsis.
func TruncateReply(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return strings.TrimRight(string(runes[:max-1]), " ") + "…"
}

// UpdateAnsweredFields records which profile fields have values, using the
// aliases the operator tooling expects ("ambientes" for typology).
func UpdateAnsweredFields(memory *domain.SlotMemory, profile *domain.CommercialProfile) []string {
	if domain.SlotValuePresent(profile.Zona) {
		memory.MarkAnswered("zona")
	}
	if domain.SlotValuePresent(profile.Tipologia) {
		memory.MarkAnswered("ambientes")
	}
	if profile.Presupuesto != nil {
		memory.MarkAnswered("presupuesto")
	}
	if domain.SlotValuePresent(profile.FechaMudanza) {
		memory.MarkAnswered("mudanza")
	}
	sort.Strings(memory.AnsweredFields)
	return memory.AnsweredFields
}

func normalizeQuestion(text string) string {
	return extract.CollapseSpaces(text)
}

func orPlaceholder(value string) string {
	if domain.SlotValuePresent(value) {
		return value
	}
	return "?"
}

func toSet(slots []string) map[string]bool {
	set := make(map[string]bool, len(slots))
	for _, slot := range slots {
		set[slot] = true
	}
	return set
}
