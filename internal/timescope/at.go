package timescope

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type atKind int

const (
	atNone atKind = iota
	atInt
	atRange
	atClock
)

// atValue is one parsed "at" option. atNone behaves like the integer 0.
type atValue struct {
	kind   atKind
	n      int
	lo, hi int
	hour   int
	minute int
}

func (a atValue) given() bool {
	switch a.kind {
	case atClock, atRange:
		return true
	case atInt:
		return a.n > 0
	default:
		return false
	}
}

func (a atValue) isClock() bool { return a.kind == atClock }

func (a atValue) isZero() bool {
	return a.kind == atNone || (a.kind == atInt && a.n == 0)
}

type clockOptions struct {
	hours24 bool
}

var (
	reClock = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?$`)
	reRange = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)$`)
	reInt   = regexp.MustCompile(`^\d+$`)
)

// parseAts expands the at option into one value per timing. A missing
// option yields a single atNone.
func parseAts(v any, clock clockOptions) ([]atValue, error) {
	var items []any
	switch t := v.(type) {
	case nil:
		return []atValue{{kind: atNone}}, nil
	case []any:
		items = t
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case string:
		for _, s := range splitList(t) {
			items = append(items, s)
		}
	default:
		items = []any{t}
	}

	out := make([]atValue, 0, len(items))
	for _, item := range items {
		a, err := parseAt(item, clock)
		if err != nil {
			return nil, fmt.Errorf("%w: at %v: %w", ErrUnresolvable, item, err)
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		out = append(out, atValue{kind: atNone})
	}
	return out, nil
}

func parseAt(v any, clock clockOptions) (atValue, error) {
	switch t := v.(type) {
	case nil:
		return atValue{kind: atNone}, nil
	case int:
		return atValue{kind: atInt, n: t}, nil
	case int64:
		return atValue{kind: atInt, n: int(t)}, nil
	case uint64:
		return atValue{kind: atInt, n: int(t)}, nil
	case float64:
		return atValue{kind: atInt, n: int(t)}, nil
	case string:
		return parseAtString(t, clock)
	default:
		return atValue{}, fmt.Errorf("unsupported type %T", v)
	}
}

func parseAtString(raw string, clock clockOptions) (atValue, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return atValue{kind: atNone}, nil
	case "noon", "midday":
		return atValue{kind: atClock, hour: 12}, nil
	case "midnight":
		return atValue{kind: atClock}, nil
	}

	if reInt.MatchString(s) && len(s) > 2 {
		return clockFromDigits(s, clock)
	}
	if reInt.MatchString(s) {
		n, _ := strconv.Atoi(s)
		return atValue{kind: atInt, n: n}, nil
	}
	if m := reRange.FindStringSubmatch(s); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		return atValue{kind: atRange, lo: lo, hi: hi}, nil
	}

	m := reClock.FindStringSubmatch(s)
	if m == nil {
		return atValue{}, fmt.Errorf("cannot parse time %q", raw)
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return atValue{}, fmt.Errorf("invalid minute in %q", raw)
	}

	switch meridian := strings.ReplaceAll(m[3], ".", ""); meridian {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return atValue{}, fmt.Errorf("invalid hour in %q", raw)
		}
		hour %= 12
		if meridian == "pm" {
			hour += 12
		}
	default:
		if hour > 23 {
			return atValue{}, fmt.Errorf("invalid hour in %q", raw)
		}
		// Without a meridian, a bare 1-6 o'clock means the afternoon unless
		// 24-hour parsing is requested or the hour is zero padded.
		if !clock.hours24 && !strings.HasPrefix(m[1], "0") && hour >= 1 && hour <= 6 {
			hour += 12
		}
	}
	return atValue{kind: atClock, hour: hour, minute: minute}, nil
}

// clockFromDigits parses "430" and "0430" style times.
func clockFromDigits(s string, clock clockOptions) (atValue, error) {
	if len(s) > 4 {
		return atValue{}, fmt.Errorf("cannot parse time %q", s)
	}
	split := len(s) - 2
	hour, _ := strconv.Atoi(s[:split])
	minute, _ := strconv.Atoi(s[split:])
	if hour > 23 || minute > 59 {
		return atValue{}, fmt.Errorf("invalid time %q", s)
	}
	if !clock.hours24 && s[0] != '0' && hour >= 1 && hour <= 6 {
		hour += 12
	}
	return atValue{kind: atClock, hour: hour, minute: minute}, nil
}

// rangeOrInteger renders an at value destined for a single field, checking
// it lies within [lo, hi].
func rangeOrInteger(a atValue, lo, hi int, name string) (string, error) {
	mustBe := fmt.Sprintf("%s must be between %d-%d", name, lo, hi)
	switch a.kind {
	case atRange:
		if a.lo < lo || a.lo > hi {
			return "", fmt.Errorf("%s, %d given", mustBe, a.lo)
		}
		if a.hi < lo || a.hi > hi {
			return "", fmt.Errorf("%s, %d given", mustBe, a.hi)
		}
		return fmt.Sprintf("%d-%d", a.lo, a.hi), nil
	default:
		n := a.n
		if n < lo || n > hi {
			return "", fmt.Errorf("%s, %d given", mustBe, n)
		}
		return strconv.Itoa(n), nil
	}
}
