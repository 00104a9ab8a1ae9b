package timescope

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Frequency units in seconds. A month is 30 days and a year 365.25 days, so
// "year" (twelve months) lands in the monthly range.
const (
	secMinute = 60
	secHour   = 3_600
	secDay    = 86_400
	secWeek   = 604_800
	secMonth  = 2_592_000
	secYear   = 31_557_600
)

var units = map[string]int64{
	"second": 1, "seconds": 1,
	"minute": secMinute, "minutes": secMinute,
	"hour": secHour, "hours": secHour,
	"day": secDay, "days": secDay,
	"week": secWeek, "weeks": secWeek,
	"fortnight": 2 * secWeek, "fortnights": 2 * secWeek,
	"month": secMonth, "months": secMonth,
	"year": secYear, "years": secYear,
}

var symbols = map[string]int64{
	"minute": secMinute,
	"hour":   secHour,
	"day":    secDay,
	"week":   secWeek,
	"month":  secMonth,
	"year":   12 * secMonth,
}

var reAmount = regexp.MustCompile(`^(\d+)\s*[. ]\s*([a-z]+)$`)

// parseFrequency recognizes "day", "2.hours", "15 minutes" and Go durations.
func parseFrequency(s string) (int64, bool) {
	if secs, ok := symbols[s]; ok {
		return secs, true
	}
	if m := reAmount.FindStringSubmatch(s); m != nil {
		unit, ok := units[m[2]]
		if !ok {
			return 0, false
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return n * unit, true
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return int64(d / time.Second), true
	}
	return 0, false
}

// fromFrequency expands a repeat interval into five cron fields.
func fromFrequency(secs int64, at atValue) (string, error) {
	timing := []string{"*", "*", "*", "*", "*"}

	switch {
	case secs < secMinute:
		return "", errors.New("time must be in minutes or higher")

	case secs < secHour:
		start := 0
		if at.kind == atInt {
			start = at.n
		} else if at.kind != atNone {
			return "", errors.New("a minute frequency only accepts a numeric 'at'")
		}
		timing[0] = commaSeparated(int(secs/secMinute), 59, start)

	case secs < secDay:
		if at.isClock() {
			timing[0] = strconv.Itoa(at.minute)
		} else {
			v, err := rangeOrInteger(at, 0, 59, "Minute")
			if err != nil {
				return "", err
			}
			timing[0] = v
		}
		timing[1] = commaSeparated(int(secs/secHour), 23, 0)

	case secs < secMonth:
		timing[0] = "0"
		if at.isClock() {
			timing[0] = strconv.Itoa(at.minute)
			timing[1] = strconv.Itoa(at.hour)
		} else {
			v, err := rangeOrInteger(at, 0, 23, "Hour")
			if err != nil {
				return "", err
			}
			timing[1] = v
		}
		timing[2] = commaSeparated(int(secs/secDay), 31, 1)

	case secs < secYear:
		timing[0], timing[1] = "0", "0"
		if at.isClock() {
			timing[0] = strconv.Itoa(at.minute)
			timing[1] = strconv.Itoa(at.hour)
			timing[2] = "1"
		} else if at.isZero() {
			timing[2] = "1"
		} else {
			v, err := rangeOrInteger(at, 1, 31, "Day")
			if err != nil {
				return "", err
			}
			timing[2] = v
		}
		timing[3] = commaSeparated(int(secs/secMonth), 12, 1)

	case secs == secYear:
		timing[0], timing[1], timing[2] = "0", "0", "1"
		if at.isClock() {
			timing[0] = strconv.Itoa(at.minute)
			timing[1] = strconv.Itoa(at.hour)
			timing[3] = "1"
		} else if at.isZero() {
			timing[3] = "1"
		} else {
			v, err := rangeOrInteger(at, 1, 12, "Month")
			if err != nil {
				return "", err
			}
			timing[3] = v
		}

	default:
		return "", fmt.Errorf("frequency of %d seconds is longer than a year", secs)
	}

	return strings.Join(timing, " "), nil
}

// commaSeparated spreads frequency over [start, limit]. A frequency of one is
// a wildcard and a frequency above half the range is used as a single value.
func commaSeparated(frequency, limit, start int) string {
	if frequency == 0 {
		return strconv.Itoa(start)
	}
	if frequency == 1 {
		return "*"
	}
	if frequency > int(math.Ceil(float64(limit)*0.5)) {
		return strconv.Itoa(frequency)
	}

	originalStart := start
	if (limit+1)%frequency != 0 && start <= 0 {
		start += frequency
	}

	var values []string
	for v := start; v <= limit; v += frequency {
		values = append(values, strconv.Itoa(v))
	}
	occurrences := int(math.Round(float64(limit) / float64(frequency)))
	if originalStart == 0 {
		occurrences++
	}
	if occurrences < len(values) {
		values = values[:occurrences]
	}
	return strings.Join(values, ",")
}

var days = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// fromDayName handles "monday", "weekday" and "weekend" style scopes.
func fromDayName(s string, at atValue) (string, error) {
	minute, hour := "0", "0"
	if at.isClock() {
		minute, hour = strconv.Itoa(at.minute), strconv.Itoa(at.hour)
	}
	prefix := minute + " " + hour + " * * "

	switch {
	case strings.Contains(s, "weekday"):
		return prefix + "1-5", nil
	case strings.Contains(s, "weekend"):
		return prefix + "6,0", nil
	}
	for i, day := range days {
		if strings.Contains(s, day) {
			return prefix + strconv.Itoa(i), nil
		}
	}
	return "", fmt.Errorf("couldn't parse %q", s)
}
