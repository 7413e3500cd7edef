// Package recurrence evaluates iCalendar RRULEs for activity schedules.
//
// A rule without its own DTSTART is anchored on an instant supplied by the
// caller. Activities keep a fixed anchor so that Next is monotonic and rules
// such as INTERVAL=2 keep their phase between evaluations.
package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var (
	// ErrInvalidRule is returned for strings that are not a well-formed RRULE.
	ErrInvalidRule = errors.New("invalid recurrence rule")
	// ErrNoOccurrence is returned when the rule's UNTIL or COUNT bound has
	// already been exhausted.
	ErrNoOccurrence = errors.New("recurrence rule has no further occurrences")
	// ErrInvalidTime is returned for a time of day that is not HH:MM.
	ErrInvalidTime = errors.New("invalid time of day")
)

func parse(rule string) (*rrule.ROption, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidRule)
	}
	if !strings.Contains(strings.ToUpper(rule), "FREQ=") {
		return nil, fmt.Errorf("%w: FREQ is required", ErrInvalidRule)
	}
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	// The parser reads INTERVAL=0 as "unset", so check the raw value.
	if v, ok := ruleValue(rule, "INTERVAL"); ok {
		if n, err := strconv.Atoi(v); err != nil || n < 1 {
			return nil, fmt.Errorf("%w: INTERVAL must be a positive integer", ErrInvalidRule)
		}
	}
	if opt.Count != 0 && !opt.Until.IsZero() {
		return nil, fmt.Errorf("%w: COUNT and UNTIL are mutually exclusive", ErrInvalidRule)
	}
	return opt, nil
}

// ruleValue returns the value of a RRULE part such as INTERVAL.
func ruleValue(rule, key string) (string, bool) {
	fields := strings.FieldsFunc(rule, func(r rune) bool {
		return r == ';' || r == '\n' || r == '\r' || r == ':'
	})
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), key) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func build(opt *rrule.ROption) (*rrule.RRule, error) {
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return r, nil
}

// Validate reports whether rule is a well-formed RRULE.
func Validate(rule string) error {
	opt, err := parse(rule)
	if err != nil {
		return err
	}
	_, err = build(opt)
	return err
}

// Canonical returns the normalized serialization of rule. The result parses
// back to an equivalent rule.
func Canonical(rule string) (string, error) {
	opt, err := parse(rule)
	if err != nil {
		return "", err
	}
	r, err := build(opt)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

// FirstOccurrenceAfter returns the earliest occurrence of rule at or after
// ref. The series starts at the rule's DTSTART, or at ref when the rule has
// none.
func FirstOccurrenceAfter(rule string, ref time.Time) (time.Time, error) {
	return Schedule{Rule: rule, Anchor: ref}.Next(ref)
}

// Schedule is a rule pinned to the start of its series.
type Schedule struct {
	Rule   string
	Anchor time.Time
}

// Next returns the earliest occurrence at or after the given instant.
// For a fixed schedule it is monotonic: a later argument never yields an
// earlier occurrence.
func (s Schedule) Next(after time.Time) (time.Time, error) {
	opt, err := parse(s.Rule)
	if err != nil {
		return time.Time{}, err
	}
	if opt.Dtstart.IsZero() {
		opt.Dtstart = s.Anchor
		if opt.Dtstart.IsZero() {
			opt.Dtstart = after
		}
	}

	r, err := build(opt)
	if err != nil {
		return time.Time{}, err
	}

	next := r.After(after, true)
	if next.IsZero() {
		return time.Time{}, ErrNoOccurrence
	}
	return next, nil
}

// ParseTimeOfDay parses a 24 hour HH:MM string.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return t.Hour(), t.Minute(), nil
}

// AnchorFor returns the calendar day of ref in loc at the given time of day.
func AnchorFor(ref time.Time, timeOfDay string, loc *time.Location) (time.Time, error) {
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	local := ref.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc), nil
}
