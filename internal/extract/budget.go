package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// BudgetOutcome tags the three results a budget parse can produce.
type BudgetOutcome int

const (
	// BudgetNoMatch means no usable amount was found. Currency may still be
	// set when the text carried a currency token without an amount.
	BudgetNoMatch BudgetOutcome = iota
	// BudgetResolved means amount (and possibly currency) can be committed.
	BudgetResolved
	// BudgetAmbiguous means the amount needs user confirmation between the
	// literal reading and its x1000 reading before it may be committed.
	BudgetAmbiguous
)

// BudgetResult is the tagged outcome of ParseBudget.
type BudgetResult struct {
	Outcome      BudgetOutcome
	Amount       int64
	Currency     string
	Raw          string
	HasMagnitude bool
}

// ambiguityThreshold separates "USD 120" (probably 120k) from amounts large
// enough to take literally.
const ambiguityThreshold = 5000

const currencyPattern = `(?:usd|u\$s|us\$|ars|\$|pesos|peso|argentinos|arg|dolares|dolar|us)`

var budgetRE = regexp.MustCompile(
	`(?i)(` + currencyPattern + `)?\s*` +
		`(\d[\d.,]*)\s*` +
		`(millones|millon|miles|mil|k|m)?\b\s*` +
		`(` + currencyPattern + `)?`,
)

var bareAmountRE = regexp.MustCompile(`\b(\d{4,})\b`)

var usdTokens = []string{"usd", "u$s", "us$", "dolar"}
var arsTokens = []string{"ars", "peso", "argentino", "arg", "$"}

// ParseBudget extracts an amount and currency from the text. Currency
// adjacent to the matched amount wins; a currency token anywhere else in the
// text is the fallback. Small bare integers without currency or magnitude
// are discarded (they are usually dates or times, not budgets).
func ParseBudget(text string) BudgetResult {
	normalized := Normalize(text)
	fallbackCurrency := detectCurrency(normalized)

	matches := budgetRE.FindAllStringSubmatch(normalized, -1)
	if len(matches) == 0 {
		if bare := bareAmountRE.FindStringSubmatch(normalized); bare != nil {
			amount, _ := strconv.ParseInt(bare[1], 10, 64)
			return finishBudget(amount, fallbackCurrency, bare[1], false)
		}
		return BudgetResult{Outcome: BudgetNoMatch, Currency: fallbackCurrency}
	}

	var bestAmount int64
	var bestRaw string
	bestFound := false

	for _, m := range matches {
		prefix, rawAmount, magnitude, suffix := m[1], m[2], m[3], m[4]

		currency := detectCurrency(strings.TrimSpace(prefix + " " + suffix))
		if currency == "" {
			currency = fallbackCurrency
		}

		value, ok := cleanAmount(rawAmount)
		if !ok {
			continue
		}
		hasMagnitude := magnitude != ""
		switch normalizeMagnitude(magnitude) {
		case "thousand":
			value *= 1000
		case "million":
			value *= 1_000_000
		}

		// Small integers without currency or magnitude are dates/hours.
		if currency == "" && !hasMagnitude && value < 500 {
			continue
		}

		raw := rawSpan(prefix, rawAmount, magnitude, suffix)
		if currency != "" {
			return finishBudget(int64(value), currency, raw, hasMagnitude)
		}
		bestAmount = int64(value)
		bestRaw = raw
		bestFound = true
	}

	if bestFound {
		return finishBudget(bestAmount, fallbackCurrency, bestRaw, false)
	}
	return BudgetResult{Outcome: BudgetNoMatch, Currency: fallbackCurrency}
}

// AmbiguousBudget reports whether an amount needs confirmation: the currency
// is known, no magnitude token backed the amount, and the literal reading is
// below the confirmation threshold.
func AmbiguousBudget(amount int64, currency string, hasMagnitude bool) bool {
	if amount <= 0 || currency == "" {
		return false
	}
	if amount >= ambiguityThreshold {
		return false
	}
	return !hasMagnitude
}

func finishBudget(amount int64, currency, raw string, hasMagnitude bool) BudgetResult {
	result := BudgetResult{
		Outcome:      BudgetResolved,
		Amount:       amount,
		Currency:     currency,
		Raw:          raw,
		HasMagnitude: hasMagnitude,
	}
	if AmbiguousBudget(amount, currency, hasMagnitude) {
		result.Outcome = BudgetAmbiguous
	}
	return result
}

func detectCurrency(text string) string {
	for _, token := range usdTokens {
		if strings.Contains(text, token) {
			return "USD"
		}
	}
	for _, token := range arsTokens {
		if strings.Contains(text, token) {
			return "ARS"
		}
	}
	return ""
}

func normalizeMagnitude(token string) string {
	switch strings.TrimSpace(strings.ToLower(token)) {
	case "millones", "millon", "m":
		return "million"
	case "miles", "mil", "k":
		return "thousand"
	}
	return ""
}

func cleanAmount(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	clean := strings.ReplaceAll(raw, ",", ".")
	clean = strings.ReplaceAll(clean, " ", "")
	dots := strings.Count(clean, ".")
	if dots > 1 {
		clean = strings.ReplaceAll(clean, ".", "")
	} else if dots == 1 {
		parts := strings.Split(clean, ".")
		// One dot with 3 trailing digits is a thousands separator in
		// property prices (120.000), not a decimal point.
		if len(parts[len(parts)-1]) == 3 {
			joined := strings.ReplaceAll(clean, ".", "")
			if v, err := strconv.ParseFloat(joined, 64); err == nil && v > 1000 {
				clean = joined
			}
		}
	}
	value, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func rawSpan(parts ...string) string {
	var kept []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, " ")
}
