package extract

import "strings"

var resetPhrases = []string{
	"reiniciar",
	"cancelar",
	"reset",
	"empezar de nuevo",
	"empezar nuevamente",
}

var affirmativeTokens = map[string]bool{
	"si":         true,
	"ok":         true,
	"correcto":   true,
	"dale":       true,
	"perfecto":   true,
	"bueno":      true,
	"confirmado": true,
	"esta bien":  true,
}

var shortAckTokens = map[string]bool{
	"hi":     true,
	"hola":   true,
	"hello":  true,
	"buenas": true,
	"ok":     true,
	"oka":    true,
	"dale":   true,
	"?":      true,
}

// IsReset reports whether the message asks to restart the conversation.
func IsReset(text string) bool {
	normalized := Normalize(text)
	for _, phrase := range resetPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// IsAffirmative reports whether the message is a plain confirmation, used to
// resolve a pending budget ambiguity.
func IsAffirmative(text string) bool {
	normalized := strings.TrimRight(Normalize(text), ".!")
	return affirmativeTokens[normalized]
}

// IsShortAck reports whether the message is a greeting or bare acknowledgment
// that carries no slot information.
func IsShortAck(text string) bool {
	normalized := strings.TrimRight(Normalize(text), ".!")
	return shortAckTokens[normalized]
}
