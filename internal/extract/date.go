package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var spanishMonths = map[string]int{
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4,
	"mayo": 5, "junio": 6, "julio": 7, "agosto": 8,
	"septiembre": 9, "setiembre": 9, "octubre": 10,
	"noviembre": 11, "diciembre": 12,
}

const monthPattern = `(enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre)`

var (
	dayOfMonthRE = regexp.MustCompile(`\b(\d{1,2})\s*(?:de\s*)?` + monthPattern + `\b`)
	numericRE    = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})(?:[/-](\d{2,4}))?\b`)
	relativeRE   = regexp.MustCompile(`\b(mediados|mediado|fines|fin|principios|inicios|mitad)\s*(?:de\s*)?` + monthPattern + `\b`)
	monthOnlyRE  = regexp.MustCompile(`\b(?:en|para|desde)\s+` + monthPattern + `\b`)
)

var temporalPhrases = []struct {
	re    *regexp.Regexp
	value string
}{
	{regexp.MustCompile(`\blo antes posible\b`), "lo antes posible"},
	{regexp.MustCompile(`\bcuanto antes\b`), "lo antes posible"},
	{regexp.MustCompile(`\binmediat[oa]\b`), "lo antes posible"},
	{regexp.MustCompile(`\bya\s*mismo\b|\bme\s+mudo\s+ya\b`), "lo antes posible"},
	{regexp.MustCompile(`\beste mes\b`), "este mes"},
	{regexp.MustCompile(`\bel mes que viene\b|\b(?:el\s+)?proximo mes\b|\bmes proximo\b`), "proximo mes"},
}

// ParseFechaMudanza extracts a move-in date. Absolute dates normalize to
// ISO yyyy-mm-dd in the current year; relative expressions are kept as a
// normalized phrase since they are meaningful to the assignee as-is.
func ParseFechaMudanza(text string, now time.Time) string {
	normalized := Normalize(text)

	if m := dayOfMonthRE.FindStringSubmatch(normalized); m != nil {
		day, _ := strconv.Atoi(m[1])
		month := spanishMonths[m[2]]
		if validDay(day, month) {
			return fmt.Sprintf("%04d-%02d-%02d", now.Year(), month, day)
		}
	}

	if m := numericRE.FindStringSubmatch(normalized); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 && validDay(day, month) {
			year := now.Year()
			if m[3] != "" {
				parsed, _ := strconv.Atoi(m[3])
				if parsed < 100 {
					parsed += 2000
				}
				year = parsed
			}
			return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
		}
	}

	if m := relativeRE.FindStringSubmatch(normalized); m != nil {
		qualifier := m[1]
		switch qualifier {
		case "fin":
			qualifier = "fines"
		case "mediado", "mitad":
			qualifier = "mediados"
		case "inicios":
			qualifier = "principios"
		}
		return qualifier + " de " + m[2]
	}

	if m := monthOnlyRE.FindStringSubmatch(normalized); m != nil {
		return m[1]
	}

	for _, phrase := range temporalPhrases {
		if phrase.re.MatchString(normalized) {
			return phrase.value
		}
	}
	return ""
}

func validDay(day, month int) bool {
	if day < 1 || day > 31 {
		return false
	}
	switch month {
	case 2:
		return day <= 29
	case 4, 6, 9, 11:
		return day <= 30
	}
	return true
}

