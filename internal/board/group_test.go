package board

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func points(p StoryPoint) *StoryPoint { return &p }

func TestResolveByLabel(t *testing.T) {
	items := []*Item{
		{Kind: KindTask, ID: "1", LabelID: "work"},
		{Kind: KindNote, ID: "2"},
		{Kind: KindTask, ID: "3", LabelID: "home"},
		{Kind: KindTask, ID: "4", LabelID: "work", Trashed: true},
		{Kind: KindTask, ID: "5", LabelID: "ghost"},
	}
	s := ByLabel([]Label{{ID: "work", Name: "Work"}, {ID: "home", Name: "Home"}})
	got := Resolve(items, s)

	assert.Equal(t, []string{"1"}, ids(got["work"]))
	assert.Equal(t, []string{"3"}, ids(got["home"]))
	assert.Equal(t, []string{"2"}, ids(got[Unlabeled]))
	assert.Equal(t, []string{"5"}, ids(got["ghost"]))
	assert.Same(t, items[0], got["work"][0], "resolve returns references into the input")

	assert.Equal(t, []GroupKey{"work", "home", Unlabeled, "ghost"}, OrderedKeys(s, got))
	assert.Equal(t, "Work", s.TitleOf("work"))
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	items := []*Item{
		{Kind: KindTask, ID: "b", LabelID: "x"},
		{Kind: KindTask, ID: "a", LabelID: "x"},
	}
	snapshot := []*Item{items[0].Clone(), items[1].Clone()}
	Resolve(items, ByLabel(nil))
	for i := range items {
		assert.True(t, items[i].Equal(snapshot[i]))
	}
	assert.Equal(t, "b", items[0].ID)
}

func TestTimeBucketsRejectOverlap(t *testing.T) {
	_, err := TimeBuckets(time.UTC,
		Bucket{Key: "a", Window: Window{Start: refNow, End: refNow.Add(time.Hour)}},
		Bucket{Key: "b", Window: Window{Start: refNow.Add(30 * time.Minute)}},
	)
	require.ErrorIs(t, err, ErrOverlappingWindows)

	_, err = TimeBuckets(time.UTC,
		Bucket{Key: "a", Window: Window{End: refNow}},
		Bucket{Key: "b", Window: Window{Start: refNow.Add(time.Nanosecond)}},
	)
	require.NoError(t, err)
}

func TestTimeBucketBoundsInclusive(t *testing.T) {
	start := StartOfDay(refNow, time.UTC)
	end := EndOfDay(refNow, time.UTC)
	s := SingleWindow(start, end, time.UTC)

	onStart := &Item{Kind: KindTask, ID: "s", Due: &start}
	onEnd := &Item{Kind: KindTask, ID: "e", Due: &end}
	after := end.Add(time.Nanosecond)
	outside := &Item{Kind: KindTask, ID: "o", Due: &after}
	undated := &Item{Kind: KindTask, ID: "u"}

	got := Resolve([]*Item{onStart, onEnd, outside, undated}, s)
	assert.Equal(t, []string{"s", "e"}, ids(got["window"]))
	assert.Len(t, got, 1)
}

func TestDateOnlyDueUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2026, 3, 11, 22, 0, 0, 0, loc) // 03:00 UTC on the 12th
	due := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	it := &Item{Kind: KindTask, ID: "d", Due: &due, DateOnly: true}

	s := PlannerBuckets(now, loc)
	key, ok := s.KeyOf(it)
	require.True(t, ok)
	assert.Equal(t, GroupKey("today"), key)
}

func TestDueOnKeepsForm(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	occ := time.Date(2026, 3, 11, 0, 0, 0, 0, loc)

	dateOnly := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	it := &Item{Kind: KindTask, Due: &dateOnly, DateOnly: true}
	got, ok := it.DueOn(occ, loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), got)

	timed := time.Date(2026, 3, 18, 14, 30, 0, 0, time.UTC) // 09:30 in loc
	it = &Item{Kind: KindTask, Due: &timed}
	got, ok = it.DueOn(occ, loc)
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC)), got)

	_, ok = (&Item{Kind: KindNote}).DueOn(occ, loc)
	assert.False(t, ok)
}

func TestPlannerBucketsPartitionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		now := refNow.AddDate(0, 0, rapid.IntRange(-400, 400).Draw(t, "now"))
		s := PlannerBuckets(now, time.UTC)
		if _, err := TimeBuckets(time.UTC, s.Buckets...); err != nil {
			t.Fatalf("planner buckets overlap: %v", err)
		}

		n := rapid.IntRange(0, 40).Draw(t, "n")
		var items []*Item
		dated := 0
		for i := 0; i < n; i++ {
			it := &Item{Kind: KindTask, ID: fmt.Sprintf("t%d", i)}
			if rapid.Bool().Draw(t, "dated") {
				due := now.Add(time.Duration(rapid.Int64Range(-1e6, 1e6).Draw(t, "offset")) * time.Minute)
				it.Due = &due
				dated++
			}
			items = append(items, it)
		}

		got := Resolve(items, s)
		total := 0
		seen := map[string]int{}
		for _, group := range got {
			total += len(group)
			for _, it := range group {
				seen[it.ID]++
			}
		}
		if total != dated {
			t.Fatalf("bucket sizes sum to %d, want %d", total, dated)
		}
		for id, c := range seen {
			if c != 1 {
				t.Fatalf("%s appears in %d buckets", id, c)
			}
		}
	})
}

func TestResolveByStoryPoint(t *testing.T) {
	items := []*Item{
		{Kind: KindTask, ID: "a", StoryPoints: points(8)},
		{Kind: KindTask, ID: "b", StoryPoints: points(3)},
		{Kind: KindTask, ID: "c"},
		{Kind: KindTask, ID: "d", StoryPoints: points(2)},
		{Kind: KindNote, ID: "e", StoryPoints: points(2)},
	}
	s := ByStoryPoint(nil)
	got := Resolve(items, s)
	assert.Equal(t, []string{"a"}, ids(got["8"]))
	assert.Equal(t, []string{"d"}, ids(got["2"]))
	assert.Len(t, got, 2)
	assert.Equal(t, []GroupKey{"2", "4", "8", "16", "32"}, s.Keys())
}

func TestResolveByQuadrant(t *testing.T) {
	endOfToday := EndOfDay(refNow, time.UTC)
	tomorrow := endOfToday.Add(time.Nanosecond)
	items := []*Item{
		{Kind: KindTask, ID: "pd", Pinned: true, Due: &endOfToday},
		{Kind: KindTask, ID: "pl", Pinned: true, Due: &tomorrow},
		{Kind: KindTask, ID: "ud", Due: at(-5)},
		{Kind: KindTask, ID: "ul", Due: at(9)},
		{Kind: KindTask, ID: "undated", Pinned: true},
	}
	got := Resolve(items, ByQuadrant(refNow, time.UTC))
	assert.Equal(t, []string{"pd"}, ids(got[QuadrantPinnedDue]))
	assert.Equal(t, []string{"pl"}, ids(got[QuadrantPinnedLater]))
	assert.Equal(t, []string{"ud"}, ids(got[QuadrantUnpinnedDue]))
	assert.Equal(t, []string{"ul"}, ids(got[QuadrantUnpinnedLater]))
}

func TestDayBuckets(t *testing.T) {
	s := DayBuckets(refNow, 3, time.UTC)
	require.Len(t, s.Buckets, 3)
	assert.Equal(t, GroupKey("2026-03-11"), s.Buckets[0].Key)
	assert.Equal(t, "2026-03-13 (Fri)", s.Buckets[2].Title)

	w, ok := s.WindowOf("2026-03-12")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), w.Start)
}
