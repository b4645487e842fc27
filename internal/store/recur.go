package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// parseRule accepts an RFC 5545 RRULE body such as "FREQ=WEEKLY;BYDAY=MO",
// with or without the "RRULE:" prefix.
func parseRule(rule string) (*rrule.ROption, error) {
	rule = strings.TrimSpace(rule)
	rule = strings.TrimPrefix(strings.TrimPrefix(rule, "RRULE:"), "rrule:")
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("%w: recurrence %q: %v", ErrInvalid, rule, err)
	}
	return opt, nil
}

// nextOccurrence returns the first occurrence of rule strictly after from,
// anchored at from.
func nextOccurrence(rule string, from time.Time) (time.Time, error) {
	opt, err := parseRule(rule)
	if err != nil {
		return time.Time{}, err
	}
	opt.Dtstart = from
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: recurrence %q: %v", ErrInvalid, rule, err)
	}
	next := r.After(from, false)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("%w: recurrence %q has no occurrence after %s", ErrInvalid, rule, from.Format(time.RFC3339))
	}
	return next, nil
}
