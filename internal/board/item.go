// Package board holds the item model shared by every view, the comparators
// that order items inside a group, and the schemes that partition items into
// groups.
package board

import (
	"slices"
	"time"
)

// Kind discriminates the item variants.
type Kind string

const (
	KindTask Kind = "task"
	KindNote Kind = "note"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindTask, KindNote:
		return true
	default:
		return false
	}
}

// StoryPoint is an effort estimate from a fixed ordinal scale.
type StoryPoint int

// DefaultScale is the story point scale used when none is configured.
var DefaultScale = []StoryPoint{2, 4, 8, 16, 32}

// Completion records one completion event. Occurrence is the calendar day the
// completion applies to; for non-recurring tasks it is informational.
type Completion struct {
	At         time.Time `yaml:"at" json:"at"`
	Occurrence time.Time `yaml:"occurrence" json:"occurrence"`
}

// Label is a user-defined group for the by-label scheme.
type Label struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// Item is a task or a note. Fields that only make sense for tasks (Due,
// DateOnly, Completions, RecurrenceRule, StoryPoints) are ignored for notes.
//
// Items held by a cache snapshot are shared between snapshots and must be
// treated as immutable; use Clone before changing fields.
type Item struct {
	Kind           Kind
	ID             string
	Name           string
	Due            *time.Time
	DateOnly       bool
	Rank           string
	Pinned         bool
	Completions    []Completion
	RecurrenceRule string
	StoryPoints    *StoryPoint
	LabelID        string
	Trashed        bool
}

// Clone returns a deep copy of it.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	out := *it
	if it.Due != nil {
		d := *it.Due
		out.Due = &d
	}
	if it.StoryPoints != nil {
		p := *it.StoryPoints
		out.StoryPoints = &p
	}
	out.Completions = slices.Clone(it.Completions)
	return &out
}

// Equal reports whether a and b carry the same field values.
func (it *Item) Equal(o *Item) bool {
	if it == o {
		return true
	}
	if it == nil || o == nil {
		return false
	}
	if it.Kind != o.Kind || it.ID != o.ID || it.Name != o.Name || it.DateOnly != o.DateOnly ||
		it.Rank != o.Rank || it.Pinned != o.Pinned || it.RecurrenceRule != o.RecurrenceRule ||
		it.LabelID != o.LabelID || it.Trashed != o.Trashed {
		return false
	}
	if (it.Due == nil) != (o.Due == nil) || (it.Due != nil && !it.Due.Equal(*o.Due)) {
		return false
	}
	if (it.StoryPoints == nil) != (o.StoryPoints == nil) || (it.StoryPoints != nil && *it.StoryPoints != *o.StoryPoints) {
		return false
	}
	return slices.EqualFunc(it.Completions, o.Completions, func(a, b Completion) bool {
		return a.At.Equal(b.At) && a.Occurrence.Equal(b.Occurrence)
	})
}

// Recurring reports whether the item repeats.
func (it *Item) Recurring() bool {
	switch it.Kind {
	case KindTask:
		return it.RecurrenceRule != ""
	case KindNote:
		return false
	default:
		return false
	}
}

// DueIn returns the due instant interpreted in loc. Date-only dues are the
// start of that calendar day in loc.
func (it *Item) DueIn(loc *time.Location) (time.Time, bool) {
	switch it.Kind {
	case KindTask:
		if it.Due == nil {
			return time.Time{}, false
		}
		if loc == nil {
			loc = time.UTC
		}
		if it.DateOnly {
			y, m, d := it.Due.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, loc), true
		}
		return it.Due.In(loc), true
	case KindNote:
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// DueOn returns the due date moved to the day of occ in loc, keeping the
// time of day. The result has the same form as Due.
func (it *Item) DueOn(occ time.Time, loc *time.Location) (time.Time, bool) {
	due, ok := it.DueIn(loc)
	if !ok {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := occ.In(loc).Date()
	if it.DateOnly {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Date(y, m, d, due.Hour(), due.Minute(), due.Second(), 0, loc), true
}

// Window is an inclusive time range. A zero Start or End is open on that side.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in w, bounds included.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// IsZero reports whether w is open on both sides.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// CompleteIn reports whether the item counts as complete for the occurrence
// described by occ.
//
// A non-recurring task is complete once it has any completion. A recurring
// task is complete only if a completion's occurrence falls inside occ; with
// no window the occurrence under consideration is the current due day. Notes
// are never complete.
func (it *Item) CompleteIn(occ Window, loc *time.Location) bool {
	switch it.Kind {
	case KindTask:
		if !it.Recurring() {
			return len(it.Completions) > 0
		}
		if occ.IsZero() {
			due, ok := it.DueIn(loc)
			if !ok {
				return false
			}
			occ = Window{Start: StartOfDay(due, loc), End: EndOfDay(due, loc)}
		}
		for _, c := range it.Completions {
			if occ.Contains(c.Occurrence) {
				return true
			}
		}
		return false
	case KindNote:
		return false
	default:
		return false
	}
}
