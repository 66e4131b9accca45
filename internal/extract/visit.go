package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vertice360/leadqual/internal/domain"
)

const weekdayPattern = `(lunes|martes|miercoles|jueves|viernes|sabado|domingo)`

var (
	visitDayRE   = regexp.MustCompile(`\b(?:el\s+)?` + weekdayPattern + `\b`)
	timeRangeRE  = regexp.MustCompile(`\b(?:de|desde|entre)\s+(\d{1,2})(?::(\d{2}))?\s*(?:hs|h)?\s+(?:a|y|hasta)\s+(\d{1,2})(?::(\d{2}))?\s*(?:hs|h)?\b`)
	singleTimeRE = regexp.MustCompile(`\b(?:a\s+las\s+(\d{1,2})(?::(\d{2}))?|(\d{1,2})(?::(\d{2}))?\s*hs)\b`)
)

// ParseVisita extracts a visit preference (weekday and/or time window) from
// the text. Returns nil when neither a day nor a time is present.
func ParseVisita(text string) *domain.VisitSlot {
	normalized := Normalize(text)

	slot := domain.VisitSlot{}
	var parts []string

	if m := visitDayRE.FindStringSubmatch(normalized); m != nil {
		slot.DayOfWeek = m[1]
		parts = append(parts, m[1])
	}

	if m := timeRangeRE.FindStringSubmatch(normalized); m != nil {
		from, okFrom := clockTime(m[1], m[2])
		to, okTo := clockTime(m[3], m[4])
		if okFrom && okTo {
			slot.TimeFrom = from
			slot.TimeTo = to
			parts = append(parts, from+"-"+to)
		}
	} else if m := singleTimeRE.FindStringSubmatch(normalized); m != nil {
		hour, minute := m[1], m[2]
		if hour == "" {
			hour, minute = m[3], m[4]
		}
		if from, ok := clockTime(hour, minute); ok {
			slot.TimeFrom = from
			parts = append(parts, from)
		}
	}

	if slot.Empty() {
		return nil
	}
	slot.Raw = strings.Join(parts, " ")
	return &slot
}

func clockTime(hourRaw, minuteRaw string) (string, bool) {
	hour, err := strconv.Atoi(hourRaw)
	if err != nil || hour > 23 {
		return "", false
	}
	minute := 0
	if minuteRaw != "" {
		minute, err = strconv.Atoi(minuteRaw)
		if err != nil || minute > 59 {
			return "", false
		}
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}
