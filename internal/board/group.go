package board

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// GroupKey identifies a bucket under a scheme.
type GroupKey string

// Unlabeled is the by-label bucket for items without a label.
const Unlabeled GroupKey = "unlabeled"

// AllKey is the single bucket of the All scheme.
const AllKey GroupKey = "all"

// Quadrant keys.
const (
	QuadrantPinnedDue     GroupKey = "pinned-due"
	QuadrantPinnedLater   GroupKey = "pinned-later"
	QuadrantUnpinnedDue   GroupKey = "unpinned-due"
	QuadrantUnpinnedLater GroupKey = "unpinned-later"
)

var ErrOverlappingWindows = errors.New("overlapping time buckets")

// Scheme partitions items into buckets. KeyOf reports false for items that do
// not satisfy the scheme's precondition; such items belong to no bucket.
type Scheme interface {
	Name() string
	// Keys lists the scheme's buckets in display order.
	Keys() []GroupKey
	KeyOf(it *Item) (GroupKey, bool)
}

// Windowed is implemented by schemes whose buckets are time ranges.
type Windowed interface {
	WindowOf(key GroupKey) (Window, bool)
}

// Titled is implemented by schemes that have display names for keys.
type Titled interface {
	TitleOf(key GroupKey) string
}

// Resolve buckets items under s. The returned slices hold the same pointers
// as items, in input order; items is not modified.
func Resolve(items []*Item, s Scheme) map[GroupKey][]*Item {
	out := make(map[GroupKey][]*Item)
	for _, it := range items {
		if it == nil {
			continue
		}
		if key, ok := s.KeyOf(it); ok {
			out[key] = append(out[key], it)
		}
	}
	return out
}

// OrderedKeys returns s.Keys() followed by any other keys present in groups,
// sorted.
func OrderedKeys(s Scheme, groups map[GroupKey][]*Item) []GroupKey {
	keys := s.Keys()
	seen := make(map[GroupKey]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	var extra []GroupKey
	for k := range groups {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(append([]GroupKey(nil), keys...), extra...)
}

// LabelScheme groups by label id. Trashed items are ineligible.
type LabelScheme struct {
	Labels []Label
}

func ByLabel(labels []Label) LabelScheme {
	return LabelScheme{Labels: labels}
}

func (s LabelScheme) Name() string { return "by-label" }

func (s LabelScheme) Keys() []GroupKey {
	keys := make([]GroupKey, 0, len(s.Labels)+1)
	for _, l := range s.Labels {
		keys = append(keys, GroupKey(l.ID))
	}
	return append(keys, Unlabeled)
}

func (s LabelScheme) KeyOf(it *Item) (GroupKey, bool) {
	if it.Trashed {
		return "", false
	}
	if it.LabelID == "" {
		return Unlabeled, true
	}
	return GroupKey(it.LabelID), true
}

func (s LabelScheme) TitleOf(key GroupKey) string {
	if key == Unlabeled {
		return "Unlabeled"
	}
	for _, l := range s.Labels {
		if GroupKey(l.ID) == key {
			return l.Name
		}
	}
	return string(key)
}

// Bucket is one named window of a TimeScheme.
type Bucket struct {
	Key    GroupKey
	Title  string
	Window Window
}

// TimeScheme groups dated tasks by disjoint time windows. An item belongs to
// the bucket whose window contains its due, bounds included; items without a
// due, or whose due falls in no window, are ineligible.
type TimeScheme struct {
	Buckets  []Bucket
	Location *time.Location
}

// TimeBuckets validates that no two windows overlap.
func TimeBuckets(loc *time.Location, buckets ...Bucket) (TimeScheme, error) {
	for i := range buckets {
		for j := i + 1; j < len(buckets); j++ {
			if overlaps(buckets[i].Window, buckets[j].Window) {
				return TimeScheme{}, fmt.Errorf("%w: %s and %s", ErrOverlappingWindows, buckets[i].Key, buckets[j].Key)
			}
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	return TimeScheme{Buckets: buckets, Location: loc}, nil
}

func overlaps(a, b Window) bool {
	// a ends before b starts, or b ends before a starts.
	if !a.End.IsZero() && !b.Start.IsZero() && a.End.Before(b.Start) {
		return false
	}
	if !b.End.IsZero() && !a.Start.IsZero() && b.End.Before(a.Start) {
		return false
	}
	return true
}

// SingleWindow is a scheme with one bucket covering [start, end].
func SingleWindow(start, end time.Time, loc *time.Location) TimeScheme {
	s, _ := TimeBuckets(loc, Bucket{Key: "window", Title: "Window", Window: Window{Start: start, End: end}})
	return s
}

// PlannerBuckets covers every possible due: overdue, today, the rest of this
// week, the rest of this month, the rest of this year, later.
func PlannerBuckets(now time.Time, loc *time.Location) TimeScheme {
	if loc == nil {
		loc = time.UTC
	}
	today := StartOfDay(now, loc)
	tomorrow := today.AddDate(0, 0, 1)
	nextWeek := StartOfWeek(now, loc).AddDate(0, 0, 7)
	nextMonth := time.Date(today.Year(), today.Month()+1, 1, 0, 0, 0, 0, loc)
	nextYear := time.Date(today.Year()+1, 1, 1, 0, 0, 0, 0, loc)
	last := func(t time.Time) time.Time { return t.Add(-time.Nanosecond) }

	buckets := []Bucket{
		{Key: "overdue", Title: "Overdue", Window: Window{End: last(today)}},
		{Key: "today", Title: "Today", Window: Window{Start: today, End: last(tomorrow)}},
	}
	cursor := tomorrow
	add := func(key GroupKey, title string, until time.Time) {
		if !until.After(cursor) {
			return
		}
		buckets = append(buckets, Bucket{Key: key, Title: title, Window: Window{Start: cursor, End: last(until)}})
		cursor = until
	}
	add("week", "This week", nextWeek)
	add("month", "This month", nextMonth)
	add("year", "This year", nextYear)
	buckets = append(buckets, Bucket{Key: "later", Title: "Later", Window: Window{Start: cursor}})
	return TimeScheme{Buckets: buckets, Location: loc}
}

// DayBuckets returns one bucket per calendar day starting at start's day.
func DayBuckets(start time.Time, days int, loc *time.Location) TimeScheme {
	if loc == nil {
		loc = time.UTC
	}
	if days <= 0 {
		days = 7
	}
	day := StartOfDay(start, loc)
	buckets := make([]Bucket, 0, days)
	for i := 0; i < days; i++ {
		d := day.AddDate(0, 0, i)
		buckets = append(buckets, Bucket{
			Key:    GroupKey(d.Format("2006-01-02")),
			Title:  fmt.Sprintf("%s (%s)", d.Format("2006-01-02"), d.Weekday().String()[:3]),
			Window: Window{Start: d, End: EndOfDay(d, loc)},
		})
	}
	return TimeScheme{Buckets: buckets, Location: loc}
}

func (s TimeScheme) Name() string { return "by-time-bucket" }

func (s TimeScheme) Keys() []GroupKey {
	keys := make([]GroupKey, len(s.Buckets))
	for i, b := range s.Buckets {
		keys[i] = b.Key
	}
	return keys
}

func (s TimeScheme) KeyOf(it *Item) (GroupKey, bool) {
	if it.Trashed || it.Kind != KindTask {
		return "", false
	}
	due, ok := it.DueIn(s.Location)
	if !ok {
		return "", false
	}
	for _, b := range s.Buckets {
		if b.Window.Contains(due) {
			return b.Key, true
		}
	}
	return "", false
}

func (s TimeScheme) WindowOf(key GroupKey) (Window, bool) {
	for _, b := range s.Buckets {
		if b.Key == key {
			return b.Window, true
		}
	}
	return Window{}, false
}

func (s TimeScheme) TitleOf(key GroupKey) string {
	for _, b := range s.Buckets {
		if b.Key == key {
			return b.Title
		}
	}
	return string(key)
}

// PointScheme groups estimated tasks by story point.
type PointScheme struct {
	Scale []StoryPoint
}

func ByStoryPoint(scale []StoryPoint) PointScheme {
	if len(scale) == 0 {
		scale = DefaultScale
	}
	return PointScheme{Scale: scale}
}

func (s PointScheme) Name() string { return "by-story-point" }

func (s PointScheme) Keys() []GroupKey {
	keys := make([]GroupKey, len(s.Scale))
	for i, p := range s.Scale {
		keys[i] = PointKey(p)
	}
	return keys
}

func (s PointScheme) KeyOf(it *Item) (GroupKey, bool) {
	if it.Trashed || it.Kind != KindTask || it.StoryPoints == nil {
		return "", false
	}
	for _, p := range s.Scale {
		if p == *it.StoryPoints {
			return PointKey(p), true
		}
	}
	return "", false
}

func (s PointScheme) TitleOf(key GroupKey) string {
	return string(key) + " pts"
}

// PointKey is the group key for a story point value.
func PointKey(p StoryPoint) GroupKey {
	return GroupKey(strconv.Itoa(int(p)))
}

// QuadrantScheme crosses pinned with due-by-end-of-today. Only dated tasks
// are eligible.
type QuadrantScheme struct {
	Now      time.Time
	Location *time.Location
}

func ByQuadrant(now time.Time, loc *time.Location) QuadrantScheme {
	if loc == nil {
		loc = time.UTC
	}
	return QuadrantScheme{Now: now, Location: loc}
}

func (s QuadrantScheme) Name() string { return "by-quadrant" }

func (s QuadrantScheme) Keys() []GroupKey {
	return []GroupKey{QuadrantPinnedDue, QuadrantPinnedLater, QuadrantUnpinnedDue, QuadrantUnpinnedLater}
}

func (s QuadrantScheme) KeyOf(it *Item) (GroupKey, bool) {
	if it.Trashed || it.Kind != KindTask || it.Due == nil {
		return "", false
	}
	due := it.DueByEndOfToday(s.Now, s.Location)
	switch {
	case it.Pinned && due:
		return QuadrantPinnedDue, true
	case it.Pinned:
		return QuadrantPinnedLater, true
	case due:
		return QuadrantUnpinnedDue, true
	default:
		return QuadrantUnpinnedLater, true
	}
}

func (s QuadrantScheme) TitleOf(key GroupKey) string {
	switch key {
	case QuadrantPinnedDue:
		return "Pinned, due today"
	case QuadrantPinnedLater:
		return "Pinned, later"
	case QuadrantUnpinnedDue:
		return "Due today"
	case QuadrantUnpinnedLater:
		return "Later"
	default:
		return string(key)
	}
}

// AllScheme puts every live item in one bucket.
type AllScheme struct{}

func All() AllScheme { return AllScheme{} }

func (AllScheme) Name() string { return "all" }

func (AllScheme) Keys() []GroupKey { return []GroupKey{AllKey} }

func (AllScheme) KeyOf(it *Item) (GroupKey, bool) {
	if it.Trashed {
		return "", false
	}
	return AllKey, true
}

func (AllScheme) TitleOf(GroupKey) string { return "All" }
