// Package rank generates fractional-index keys: opaque strings whose
// lexicographic byte order is the item order, and between any two of which a
// new key can be produced without renumbering the neighbours.
package rank

import (
	"errors"
	"fmt"
	"strings"
)

// Digits is the key alphabet in ascending byte order.
const Digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const base = len(Digits)

// Min and Max are the open bounds passed to Between for an insertion at the
// head or tail of a group. Both are the empty string; the argument position
// decides which side is open.
const (
	Min = ""
	Max = ""
)

// DefaultMaxLen bounds key length for the Default assigner.
const DefaultMaxLen = 48

var (
	// ErrRankExhausted means no distinct key fits within the length bound.
	// Rebalancing the group is up to the caller.
	ErrRankExhausted = errors.New("rank exhausted")
	ErrInvalidRank   = errors.New("invalid rank")
	ErrInvalidRange  = errors.New("invalid rank range")
)

// Default is the assigner used by the docstore.
var Default = Assigner{MaxLen: DefaultMaxLen}

// Assigner produces keys no longer than MaxLen. A zero MaxLen means
// DefaultMaxLen.
type Assigner struct {
	MaxLen int
}

func (a Assigner) maxLen() int {
	if a.MaxLen <= 0 {
		return DefaultMaxLen
	}
	return a.MaxLen
}

// Compare orders two keys. It is plain byte-wise string comparison, the same
// ordering any server-side comparison must use.
func Compare(a, b string) int {
	return strings.Compare(a, b)
}

// Validate reports whether r is a usable key: non-empty, drawn from Digits,
// and not ending in the lowest digit (such a key has no room below it relative
// to its own prefix).
func Validate(r string) error {
	if r == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRank)
	}
	for i := 0; i < len(r); i++ {
		if digitIndex(r[i]) < 0 {
			return fmt.Errorf("%w: %q has byte %q outside the alphabet", ErrInvalidRank, r, r[i])
		}
	}
	if r[len(r)-1] == Digits[0] {
		return fmt.Errorf("%w: %q ends with %q", ErrInvalidRank, r, Digits[0])
	}
	return nil
}

// First returns the key for the only item of an empty group.
func (a Assigner) First() (string, error) {
	return a.Between(Min, Max)
}

// Next returns a key strictly greater than r. It increments the rightmost
// digit that is not already the highest, truncating after it, so repeated
// calls grow the key slowly.
func (a Assigner) Next(r string) (string, error) {
	if err := Validate(r); err != nil {
		return "", err
	}
	for i := len(r) - 1; i >= 0; i-- {
		d := digitIndex(r[i])
		if d < base-1 {
			return r[:i] + string(Digits[d+1]), nil
		}
	}
	out := r + string(Digits[base/2])
	if len(out) > a.maxLen() {
		return "", fmt.Errorf("%w: no key after %q within %d digits", ErrRankExhausted, r, a.maxLen())
	}
	return out, nil
}

// Prev returns a key strictly less than r.
func (a Assigner) Prev(r string) (string, error) {
	return a.Between(Min, r)
}

// Between returns a key k with lo < k < hi. An empty lo means no lower bound
// and an empty hi means no upper bound.
func (a Assigner) Between(lo, hi string) (string, error) {
	if lo != Min {
		if err := Validate(lo); err != nil {
			return "", err
		}
	}
	if hi != Max {
		if err := Validate(hi); err != nil {
			return "", err
		}
	}
	if lo != Min && hi != Max && lo >= hi {
		return "", fmt.Errorf("%w: %q is not below %q", ErrInvalidRange, lo, hi)
	}
	out := midpoint(lo, hi)
	if len(out) > a.maxLen() {
		return "", fmt.Errorf("%w: no key between %q and %q within %d digits", ErrRankExhausted, lo, hi, a.maxLen())
	}
	return out, nil
}

// Sequence returns n ascending keys for seeding a group that has none.
func (a Assigner) Sequence(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]string, 0, n)
	cur, err := a.First()
	if err != nil {
		return nil, err
	}
	out = append(out, cur)
	for len(out) < n {
		cur, err = a.Next(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, cur)
	}
	return out, nil
}

// Move returns the key for an item dropped at position to in ordered, the
// group's keys in ascending order with the moved item already removed. Only
// the moved item's key changes.
func (a Assigner) Move(ordered []string, to int) (string, error) {
	if to < 0 {
		to = 0
	}
	if to > len(ordered) {
		to = len(ordered)
	}
	switch {
	case len(ordered) == 0:
		return a.First()
	case to == 0:
		return a.Prev(ordered[0])
	case to == len(ordered):
		return a.Next(ordered[to-1])
	}
	return a.Between(ordered[to-1], ordered[to])
}

// midpoint treats keys as base-62 fractions in [0, 1). lo == "" is 0 and
// hi == "" is 1.
func midpoint(lo, hi string) string {
	if hi != "" {
		n := 0
		for n < len(hi) && digitAt(lo, n) == hi[n] {
			n++
		}
		if n > 0 {
			rest := ""
			if n < len(lo) {
				rest = lo[n:]
			}
			return hi[:n] + midpoint(rest, hi[n:])
		}
	}
	dlo := 0
	if lo != "" {
		dlo = digitIndex(lo[0])
	}
	dhi := base
	if hi != "" {
		dhi = digitIndex(hi[0])
	}
	if dhi-dlo > 1 {
		return string(Digits[(dlo+dhi)/2])
	}
	// Adjacent leading digits.
	if len(hi) > 1 {
		return hi[:1]
	}
	rest := ""
	if len(lo) > 1 {
		rest = lo[1:]
	}
	return string(Digits[dlo]) + midpoint(rest, "")
}

func digitAt(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return Digits[0]
}

func digitIndex(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'A' && b <= 'Z':
		return int(b-'A') + 10
	case b >= 'a' && b <= 'z':
		return int(b-'a') + 36
	default:
		return -1
	}
}
