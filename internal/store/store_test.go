package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/amirbrooks/tasker-board/internal/board"
)

var testNow = time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC)

func newWorkspace(t *testing.T) *Workspace {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return testNow }
	t.Cleanup(func() { timeNow = prev })

	ws, err := Open(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, ws.Init())
	return ws
}

func names(items []*board.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestInitWritesDefaultConfig(t *testing.T) {
	ws := newWorkspace(t)
	if _, err := os.Stat(filepath.Join(ws.Root, "config.json")); err != nil {
		t.Fatalf("expected config.json: %v", err)
	}
	if got := len(ws.ListLabels()); got != 3 {
		t.Fatalf("expected 3 default labels, got %d", got)
	}
}

func TestConfigAcceptsCommentsAndTrailingCommas(t *testing.T) {
	root := t.TempDir()
	cfg := `{
	// personal board
	"schema": 1,
	"time_zone": "Europe/Berlin",
	"labels": [
		{"id": "inbox", "name": "Inbox"},
	],
}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.json"), []byte(cfg), 0o644))

	ws, err := Open(root, nil)
	require.NoError(t, err)
	assert.Equal(t, []board.Label{{ID: "inbox", Name: "Inbox"}}, ws.ListLabels())
	loc, err := ws.Config().Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
	assert.Len(t, ws.Config().Scale, 5)
}

func TestAddLabelIsIdempotent(t *testing.T) {
	ws := newWorkspace(t)
	l, err := ws.AddLabel("Side Projects", "#ff8800")
	require.NoError(t, err)
	assert.Equal(t, "side-projects", l.ID)
	again, err := ws.AddLabel("side projects", "")
	require.NoError(t, err)
	assert.Equal(t, l, again)
	assert.Len(t, ws.ListLabels(), 4)

	reopened, err := Open(ws.Root, nil)
	require.NoError(t, err)
	assert.Len(t, reopened.ListLabels(), 4)
}

func TestAddLabelRejectsUnlabeledID(t *testing.T) {
	ws := newWorkspace(t)
	for _, name := range []string{"Unlabeled", " unlabeled "} {
		_, err := ws.AddLabel(name, "")
		assert.ErrorIs(t, err, ErrInvalid, name)
	}
	assert.Len(t, ws.ListLabels(), 3)
}

func TestAddItemAppendsToLabelGroup(t *testing.T) {
	ws := newWorkspace(t)
	a, err := ws.AddItem(AddItemInput{Name: "alpha", Label: "todo"})
	require.NoError(t, err)
	b, err := ws.AddItem(AddItemInput{Name: "beta", Label: "todo"})
	require.NoError(t, err)
	c, err := ws.AddItem(AddItemInput{Name: "gamma", Label: "doing"})
	require.NoError(t, err)

	assert.Less(t, a.Rank, b.Rank)
	assert.Equal(t, a.Rank, c.Rank, "each label group ranks independently")
	assert.Regexp(t, `^tsk_[0-9A-Z]{26}$`, a.ID)

	todo, err := ws.ListItems(ListFilter{Label: "todo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names(todo))
}

func TestAddItemValidation(t *testing.T) {
	ws := newWorkspace(t)
	cases := map[string]AddItemInput{
		"empty name":        {Name: "  "},
		"unknown label":     {Name: "x", Label: "nope"},
		"note with due":     {Name: "x", Kind: board.KindNote, Due: "2026-03-12"},
		"bad due":           {Name: "x", Due: "next tuesday"},
		"off scale":         {Name: "x", StoryPoints: 3},
		"recur without due": {Name: "x", Recurrence: "FREQ=DAILY"},
		"bad recurrence":    {Name: "x", Due: "2026-03-12", Recurrence: "FREQ=SOMETIMES"},
	}
	for name, in := range cases {
		_, err := ws.AddItem(in)
		assert.ErrorIs(t, err, ErrInvalid, name)
	}
}

func TestMoveItemChangesOnlyTheMovedRank(t *testing.T) {
	ws := newWorkspace(t)
	for _, n := range []string{"one", "two", "three", "four"} {
		_, err := ws.AddItem(AddItemInput{Name: n, Label: "todo"})
		require.NoError(t, err)
	}
	before, err := ws.ListItems(ListFilter{Label: "todo"})
	require.NoError(t, err)

	moved, err := ws.MoveItem("four", 1)
	require.NoError(t, err)

	after, err := ws.ListItems(ListFilter{Label: "todo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "four", "two", "three"}, names(after))
	for _, it := range before[:3] {
		got, err := ws.GetItemBySelector(it.ID)
		require.NoError(t, err)
		assert.Equal(t, it.Rank, got.Rank, it.Name)
	}
	assert.Greater(t, moved.Rank, before[0].Rank)
	assert.Less(t, moved.Rank, before[1].Rank)

	_, err = ws.MoveItem("one", 99)
	require.NoError(t, err)
	after, err = ws.ListItems(ListFilter{Label: "todo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"four", "two", "three", "one"}, names(after))
}

func TestRelabelMovesToEndOfTarget(t *testing.T) {
	ws := newWorkspace(t)
	_, err := ws.AddItem(AddItemInput{Name: "doing one", Label: "doing"})
	require.NoError(t, err)
	it, err := ws.AddItem(AddItemInput{Name: "write report", Label: "todo"})
	require.NoError(t, err)

	moved, err := ws.RelabelItem(it.ID, "doing")
	require.NoError(t, err)
	assert.Equal(t, "doing", moved.LabelID)

	doing, err := ws.ListItems(ListFilter{Label: "doing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"doing one", "write report"}, names(doing))

	cleared, err := ws.RelabelItem(it.ID, "")
	require.NoError(t, err)
	assert.Empty(t, cleared.LabelID)
	unlabeled, err := ws.ListItems(ListFilter{Label: string(board.Unlabeled)})
	require.NoError(t, err)
	assert.Equal(t, []string{"write report"}, names(unlabeled))
}

func TestSelectorResolution(t *testing.T) {
	ws := newWorkspace(t)
	a, err := ws.AddItem(AddItemInput{Name: "Write report"})
	require.NoError(t, err)
	_, err = ws.AddItem(AddItemInput{Name: "Write tests"})
	require.NoError(t, err)

	got, err := ws.GetItemBySelector("write report")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	got, err = ws.GetItemBySelector(bareID(a.ID))
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = ws.GetItemBySelector("Write")
	require.ErrorIs(t, err, ErrConflict)
	var conflict *MatchConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Len(t, conflict.Matches, 2)

	_, err = ws.GetItemBySelector("nothing like it")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteAndReopen(t *testing.T) {
	ws := newWorkspace(t)
	it, err := ws.AddItem(AddItemInput{Name: "ship", Due: "2026-03-11"})
	require.NoError(t, err)

	done, err := ws.CompleteItem(it.ID)
	require.NoError(t, err)
	assert.True(t, done.CompleteIn(board.Window{}, time.UTC))
	require.Len(t, done.Completions, 1)
	assert.Equal(t, testNow, done.Completions[0].At)

	again, err := ws.CompleteItem(it.ID)
	require.NoError(t, err)
	assert.Len(t, again.Completions, 1, "completing twice is a no-op")

	reopened, err := ws.ReopenItem(it.ID)
	require.NoError(t, err)
	assert.False(t, reopened.CompleteIn(board.Window{}, time.UTC))
}

func TestCompleteRecurringAdvancesDue(t *testing.T) {
	ws := newWorkspace(t)
	it, err := ws.AddItem(AddItemInput{Name: "standup", Due: "2026-03-11", Recurrence: "FREQ=DAILY"})
	require.NoError(t, err)

	done, err := ws.CompleteItem(it.ID)
	require.NoError(t, err)
	require.NotNil(t, done.Due)
	assert.True(t, done.DateOnly)
	assert.Equal(t, "2026-03-12", done.Due.Format("2006-01-02"))
	require.Len(t, done.Completions, 1)
	assert.Equal(t, "2026-03-11", done.Completions[0].Occurrence.Format("2006-01-02"))

	assert.False(t, done.CompleteIn(board.Window{}, time.UTC), "the next occurrence is open")
	completedDay := board.Window{
		Start: board.StartOfDay(testNow, time.UTC),
		End:   board.EndOfDay(testNow, time.UTC),
	}
	assert.True(t, done.CompleteIn(completedDay, time.UTC))
}

func TestReopenRecurringRestoresDue(t *testing.T) {
	ws := newWorkspace(t)
	daily, err := ws.AddItem(AddItemInput{Name: "standup", Due: "2026-03-11", Recurrence: "FREQ=DAILY"})
	require.NoError(t, err)
	weekly, err := ws.AddItem(AddItemInput{Name: "review", Due: "2026-03-11T09:30:00Z", Recurrence: "FREQ=WEEKLY"})
	require.NoError(t, err)

	cases := []struct {
		id, layout, want, advanced string
	}{
		{daily.ID, "2006-01-02", "2026-03-11", "2026-03-12"},
		{weekly.ID, time.RFC3339, "2026-03-11T09:30:00Z", "2026-03-18T09:30:00Z"},
	}
	for _, tc := range cases {
		done, err := ws.CompleteItem(tc.id)
		require.NoError(t, err)
		require.Equal(t, tc.advanced, done.Due.UTC().Format(tc.layout))

		open, err := ws.ReopenItem(tc.id)
		require.NoError(t, err)
		assert.Empty(t, open.Completions)
		require.NotNil(t, open.Due)
		assert.Equal(t, tc.want, open.Due.UTC().Format(tc.layout))
		assert.False(t, open.CompleteIn(board.Window{}, time.UTC))

		again, err := ws.GetItemBySelector(tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.want, again.Due.UTC().Format(tc.layout), "restored due is persisted")
	}
}

func TestCompleteNoteFails(t *testing.T) {
	ws := newWorkspace(t)
	n, err := ws.AddItem(AddItemInput{Name: "idea", Kind: board.KindNote})
	require.NoError(t, err)
	assert.Regexp(t, `^nte_`, n.ID)
	_, err = ws.CompleteItem(n.ID)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestTrashAndPin(t *testing.T) {
	ws := newWorkspace(t)
	a, err := ws.AddItem(AddItemInput{Name: "keep"})
	require.NoError(t, err)
	b, err := ws.AddItem(AddItemInput{Name: "drop"})
	require.NoError(t, err)

	_, err = ws.TrashItem(b.ID)
	require.NoError(t, err)
	pinned, err := ws.PinItem(a.ID, true)
	require.NoError(t, err)
	assert.True(t, pinned.Pinned)

	live, err := ws.ListItems(ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, names(live))
	all, err := ws.ListItems(ListFilter{IncludeTrashed: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestItemFileRoundTrip(t *testing.T) {
	ws := newWorkspace(t)
	it, err := ws.AddItem(AddItemInput{Name: "Plan trip", Label: "todo", Due: "2026-03-20T09:30:00Z", StoryPoints: 8, Body: "pack bags"})
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(ws.Root, "items", it.ID+"__plan-trip.md"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	rec, err := readItemFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, "pack bags\n", rec.Body)
	got, err := rec.item()
	require.NoError(t, err)
	assert.True(t, it.Equal(got))
	assert.False(t, got.DateOnly)
	require.NotNil(t, got.StoryPoints)
	assert.Equal(t, board.StoryPoint(8), *got.StoryPoints)
}

func TestFetchBuildsSnapshots(t *testing.T) {
	ws := newWorkspace(t)
	_, err := ws.AddItem(AddItemInput{Name: "a", Label: "todo", Due: "2026-03-11"})
	require.NoError(t, err)
	_, err = ws.AddItem(AddItemInput{Name: "b", Label: "doing", Due: "2026-03-01"})
	require.NoError(t, err)
	_, err = ws.AddItem(AddItemInput{Name: "c"})
	require.NoError(t, err)

	snap, err := ws.Fetch(context.Background(), KeyBoard)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Len())
	g, ok := snap.Group("todo")
	require.True(t, ok)
	assert.Len(t, g.Items, 1)
	g, ok = snap.Group(board.Unlabeled)
	require.True(t, ok)
	assert.Len(t, g.Items, 1)

	planner, err := ws.Fetch(context.Background(), KeyPlanner)
	require.NoError(t, err)
	assert.Equal(t, 2, planner.Len(), "undated items are not scheduled")
	g, ok = planner.Group("overdue")
	require.True(t, ok)
	assert.Len(t, g.Items, 1)

	_, err = ws.Fetch(context.Background(), "calendar")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUpdateItem(t *testing.T) {
	ws := newWorkspace(t)
	it, err := ws.AddItem(AddItemInput{Name: "draft", Due: "2026-03-12"})
	require.NoError(t, err)

	name, due, points := "final", "", 16
	got, err := ws.UpdateItem(it.ID, ItemPatch{Name: &name, Due: &due, StoryPoints: &points})
	require.NoError(t, err)
	assert.Equal(t, "final", got.Name)
	assert.Nil(t, got.Due)
	require.NotNil(t, got.StoryPoints)
	assert.Equal(t, board.StoryPoint(16), *got.StoryPoints)
	assert.Equal(t, it.Rank, got.Rank)

	rule := "FREQ=WEEKLY"
	_, err = ws.UpdateItem(it.ID, ItemPatch{Recurrence: &rule})
	assert.ErrorIs(t, err, ErrInvalid, "recurrence without a due date")
}
