// Package view derives the ordered groups each view family renders from a
// cache snapshot. A projection has no state of its own: the same snapshot
// and config always give the same output.
package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirbrooks/tasker-board/internal/board"
	"github.com/amirbrooks/tasker-board/internal/cache"
)

// Family is a view family.
type Family string

const (
	Kanban   Family = "kanban"
	Grid     Family = "grid"
	Planner  Family = "planner"
	Quadrant Family = "quadrant"
	Workload Family = "workload"
	Table    Family = "table"
	Stream   Family = "stream"
	Masonry  Family = "masonry"
)

// Families lists every family in a stable order.
var Families = []Family{Kanban, Grid, Planner, Quadrant, Workload, Table, Stream, Masonry}

// ParseFamily accepts a family name and a few aliases.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kanban", "board":
		return Kanban, nil
	case "grid":
		return Grid, nil
	case "planner", "agenda", "week":
		return Planner, nil
	case "quadrant", "matrix":
		return Quadrant, nil
	case "workload":
		return Workload, nil
	case "table":
		return Table, nil
	case "stream":
		return Stream, nil
	case "masonry", "list":
		return Masonry, nil
	default:
		return "", fmt.Errorf("unknown view %q", s)
	}
}

// Config is everything a projection depends on besides the snapshot.
type Config struct {
	Family        Family
	Now           time.Time
	Location      *time.Location
	Labels        []board.Label
	Scale         []board.StoryPoint
	HiddenLabels  []string
	ShowCompleted bool
	// Window, when set, restricts the planner to [Start, End] split into days.
	Window board.Window
}

// OrderedGroup is one rendered bucket.
type OrderedGroup struct {
	Key   board.GroupKey
	Title string
	Items []*board.Item
}

// OrderedGroups is the full projection.
type OrderedGroups []OrderedGroup

// Len counts items across groups.
func (g OrderedGroups) Len() int {
	n := 0
	for _, og := range g {
		n += len(og.Items)
	}
	return n
}

// Spec names the scheme and comparator a family uses.
type Spec struct {
	Scheme     board.Scheme
	Comparator board.Comparator
}

// SpecFor composes the scheme and comparator for cfg.Family.
func SpecFor(cfg Config) (Spec, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	switch cfg.Family {
	case Kanban:
		return Spec{Scheme: board.ByLabel(cfg.Labels), Comparator: board.Ranked}, nil
	case Grid:
		return Spec{Scheme: board.ByLabel(cfg.Labels), Comparator: board.CompletedLast}, nil
	case Planner:
		if cfg.Window.Start.IsZero() {
			return Spec{Scheme: board.PlannerBuckets(cfg.Now, loc), Comparator: board.Ranked}, nil
		}
		days := 1
		if !cfg.Window.End.IsZero() {
			days = calendarDays(cfg.Window.Start, cfg.Window.End, loc) + 1
		}
		if days < 1 {
			return Spec{}, fmt.Errorf("window ends before it starts")
		}
		return Spec{Scheme: board.DayBuckets(cfg.Window.Start, days, loc), Comparator: board.Ranked}, nil
	case Quadrant:
		return Spec{Scheme: board.ByQuadrant(cfg.Now, loc), Comparator: board.DueProximity}, nil
	case Workload:
		return Spec{Scheme: board.ByStoryPoint(cfg.Scale), Comparator: board.Ranked}, nil
	case Table:
		return Spec{Scheme: board.All(), Comparator: board.CompletedLast}, nil
	case Stream:
		return Spec{Scheme: board.All(), Comparator: board.Chronological}, nil
	case Masonry:
		return Spec{Scheme: board.All(), Comparator: board.Pinboard}, nil
	default:
		return Spec{}, fmt.Errorf("unknown view %q", cfg.Family)
	}
}

// Project regroups and orders the snapshot's items for cfg. Every fixed
// bucket of the scheme is present, possibly empty; hidden labels are dropped.
func Project(snap *cache.Snapshot, cfg Config) (OrderedGroups, error) {
	spec, err := SpecFor(cfg)
	if err != nil {
		return nil, err
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	hidden := make(map[string]bool, len(cfg.HiddenLabels))
	for _, l := range cfg.HiddenLabels {
		hidden[l] = true
	}

	var items []*board.Item
	seen := map[string]bool{}
	for _, it := range snap.Items() {
		if seen[it.ID] || it.Trashed || (it.LabelID != "" && hidden[it.LabelID]) {
			continue
		}
		seen[it.ID] = true
		items = append(items, it)
	}

	resolved := board.Resolve(items, spec.Scheme)
	_, byLabel := spec.Scheme.(board.LabelScheme)
	windowed, _ := spec.Scheme.(board.Windowed)
	titled, _ := spec.Scheme.(board.Titled)

	out := make(OrderedGroups, 0, len(resolved))
	for _, key := range board.OrderedKeys(spec.Scheme, resolved) {
		if byLabel && hidden[string(key)] {
			continue
		}
		ctx := board.OrderContext{Location: loc}
		if windowed != nil {
			// Open-ended buckets fall back to each item's own due day.
			if w, ok := windowed.WindowOf(key); ok && !w.Start.IsZero() && !w.End.IsZero() {
				ctx.Occurrence = w
			}
		}
		group := resolved[key]
		kept := make([]*board.Item, 0, len(group))
		for _, it := range group {
			if !cfg.ShowCompleted && it.CompleteIn(ctx.Occurrence, loc) {
				continue
			}
			kept = append(kept, it)
		}
		spec.Comparator.Sort(kept, ctx)

		title := string(key)
		if titled != nil {
			title = titled.TitleOf(key)
		}
		out = append(out, OrderedGroup{Key: key, Title: title, Items: kept})
	}
	return out, nil
}

// calendarDays counts the day boundaries in loc between start and end,
// independent of DST transitions.
func calendarDays(start, end time.Time, loc *time.Location) int {
	sy, sm, sd := start.In(loc).Date()
	ey, em, ed := end.In(loc).Date()
	a := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
