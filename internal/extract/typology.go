package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var roomsRE = regexp.MustCompile(`(\d+)\s*amb(?:ientes)?`)

var spelledTypologies = []struct {
	tokens []string
	value  string
}{
	{[]string{"dos ambientes"}, "2 ambientes"},
	{[]string{"tres ambientes"}, "3 ambientes"},
	{[]string{"cuatro ambientes"}, "4 ambientes"},
}

// ParseTipologia extracts a unit typology like "3 ambientes" or
// "monoambiente". Returns "" on no match.
func ParseTipologia(text string) string {
	normalized := Normalize(text)
	if normalized == "" {
		return ""
	}

	if match := roomsRE.FindStringSubmatch(normalized); match != nil {
		if rooms, err := strconv.Atoi(match[1]); err == nil {
			return fmt.Sprintf("%d ambientes", rooms)
		}
	}

	if strings.Contains(normalized, "monoambiente") {
		return "monoambiente"
	}
	for _, spelled := range spelledTypologies {
		for _, token := range spelled.tokens {
			if strings.Contains(normalized, token) {
				return spelled.value
			}
		}
	}
	return ""
}
