package board

import (
	"slices"
	"strings"
	"time"
)

// OrderContext carries what a comparator needs beyond the two items: the
// occurrence window of the group being ordered (recurring completion is
// judged against it) and the location used to read date-only dues.
type OrderContext struct {
	Occurrence Window
	Location   *time.Location
}

// Stage compares two items on one criterion, returning -1, 0 or 1.
type Stage struct {
	Name string
	Cmp  func(x, y *Item, ctx OrderContext) int
}

// Comparator applies its stages left to right; a later stage only runs when
// every earlier one found the items equal. Items that tie on every stage are
// ordered by id, so the result is a total order.
type Comparator struct {
	Name   string
	Stages []Stage
}

// Compare returns -1 if x sorts before y, 1 if after, 0 only when x and y
// have the same id.
func (c Comparator) Compare(x, y *Item, ctx OrderContext) int {
	for _, s := range c.Stages {
		if r := s.Cmp(x, y, ctx); r != 0 {
			return r
		}
	}
	return strings.Compare(x.ID, y.ID)
}

// Sort orders items in place.
func (c Comparator) Sort(items []*Item, ctx OrderContext) {
	slices.SortStableFunc(items, func(x, y *Item) int {
		return c.Compare(x, y, ctx)
	})
}

// Stages.
var (
	// ByRank orders by rank; an empty rank sorts last.
	ByRank = Stage{Name: "rank", Cmp: func(x, y *Item, _ OrderContext) int {
		return missingLast(x.Rank == "", y.Rank == "", func() int {
			return strings.Compare(x.Rank, y.Rank)
		})
	}}

	// PinnedFirst puts pinned items before unpinned ones.
	PinnedFirst = Stage{Name: "pinned", Cmp: func(x, y *Item, _ OrderContext) int {
		return boolFirst(x.Pinned, y.Pinned)
	}}

	// IncompleteFirst puts items that are not complete for the context's
	// occurrence before complete ones.
	IncompleteFirst = Stage{Name: "completion", Cmp: func(x, y *Item, ctx OrderContext) int {
		return boolFirst(!x.CompleteIn(ctx.Occurrence, ctx.Location), !y.CompleteIn(ctx.Occurrence, ctx.Location))
	}}

	// ByDue puts earlier dues first; items without a due sort last.
	ByDue = Stage{Name: "due", Cmp: func(x, y *Item, ctx OrderContext) int {
		dx, okx := x.DueIn(ctx.Location)
		dy, oky := y.DueIn(ctx.Location)
		return missingLast(!okx, !oky, func() int {
			return dx.Compare(dy)
		})
	}}
)

// Named comparator variants. Each view family picks exactly one.
var (
	// Ranked is for drag-reorderable groups: display order must equal rank
	// order so that a drop position maps to a pair of neighbouring ranks.
	Ranked = Comparator{Name: "ranked", Stages: []Stage{ByRank, PinnedFirst, IncompleteFirst}}

	// DueProximity ignores rank entirely. Used by the quadrant view.
	DueProximity = Comparator{Name: "due-proximity", Stages: []Stage{ByDue, PinnedFirst}}

	// CompletedLast sinks complete items below incomplete ones while keeping
	// the relative order inside each half.
	CompletedLast = Comparator{Name: "completed-last", Stages: []Stage{IncompleteFirst, PinnedFirst, ByDue, ByRank}}

	// Chronological orders by due date.
	Chronological = Comparator{Name: "chronological", Stages: []Stage{ByDue, PinnedFirst, ByRank}}

	// Pinboard floats pinned items to the top.
	Pinboard = Comparator{Name: "pinboard", Stages: []Stage{PinnedFirst, IncompleteFirst, ByRank}}
)

func boolFirst(x, y bool) int {
	switch {
	case x == y:
		return 0
	case x:
		return -1
	default:
		return 1
	}
}

func missingLast(xMissing, yMissing bool, cmp func() int) int {
	switch {
	case xMissing && yMissing:
		return 0
	case xMissing:
		return 1
	case yMissing:
		return -1
	default:
		return cmp()
	}
}
