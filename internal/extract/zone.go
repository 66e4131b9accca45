package extract

import (
	"regexp"
	"strings"
)

// neighborhoodGazetteer lists known CABA neighborhoods; multi-word names come
// first so containment matching prefers the longest name.
var neighborhoodGazetteer = []string{
	"Villa Lugano", "Villa Urquiza", "Villa Devoto", "Parque Chacabuco", "Nueva Pompeya",
	"Villa Crespo", "Villa del Parque", "Parque Patricios", "Recoleta", "Palermo",
	"Almagro", "Caballito", "Belgrano", "Puerto Madero", "San Telmo", "Monserrat",
	"San Nicolas", "Retiro", "Constitucion", "Barracas", "La Boca", "San Cristobal",
	"Boedo", "Flores", "Floresta", "Velez Sarsfield", "Villa Luro", "Liniers",
	"Mataderos", "Villa Real", "Versalles", "Villa Santa Rita", "Villa Mitre",
	"Villa General Mitre", "Chacarita", "Paternal", "Villa Ortuzar", "Colegiales",
	"Nuñez", "Saavedra", "Coghlan", "Villa Pueyrredon", "Agronomia",
	"Las Cañitas", "Barrio Norte",
}

var cityAliases = []struct {
	alias     string
	canonical string
}{
	{"capital federal", "CABA"},
	{"buenos aires", "CABA"},
	{"capital", "CABA"},
	{"caba", "CABA"},
}

var zoneFallbackRE = regexp.MustCompile(`\b(?:en|zona|barrio|por)\s+([a-z\s]+?)(?:$|[.,;]|\s(?:y|con|para)\s)`)

var zoneConnectives = map[string]bool{
	"de": true, "del": true, "la": true, "las": true, "los": true, "en": true,
}

// ParseZona extracts a zone/neighborhood from the text: gazetteer containment
// first (canonical casing wins), city aliases next, then a connector-word
// regex fallback that title-cases the captured span. Returns "" on no match.
func ParseZona(text string) string {
	normalized := Normalize(text)
	if normalized == "" {
		return ""
	}

	for _, zone := range neighborhoodGazetteer {
		if strings.Contains(normalized, Normalize(zone)) {
			return zone
		}
	}

	for _, city := range cityAliases {
		if strings.Contains(normalized, city.alias) {
			return city.canonical
		}
	}

	match := zoneFallbackRE.FindStringSubmatch(normalized)
	if match == nil {
		return ""
	}
	extracted := strings.TrimSpace(match[1])
	if len(extracted) <= 3 || extracted == "caba" || extracted == "capital" {
		return ""
	}
	return titleCaseZona(extracted)
}

func titleCaseZona(text string) string {
	words := strings.Fields(text)
	for i, word := range words {
		if zoneConnectives[strings.ToLower(word)] {
			words[i] = strings.ToLower(word)
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
