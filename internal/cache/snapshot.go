// Package cache holds view-shaped snapshots of the item collection, the pure
// patcher that applies one optimistic mutation to a snapshot, and the keyed
// store that serves snapshots and accepts patched ones.
package cache

import (
	"github.com/amirbrooks/tasker-board/internal/board"
	"github.com/amirbrooks/tasker-board/internal/rank"
)

// Group is one bucket of a snapshot. Items are in ascending rank order.
type Group struct {
	Key   board.GroupKey
	Title string
	Items []*board.Item
}

// Snapshot is an immutable, view-shaped copy of the collection: the scheme
// it was grouped by, and the groups in display order. Snapshots share groups
// and items with the snapshots they were patched from, so nothing may modify
// one in place.
type Snapshot struct {
	Scheme board.Scheme
	Groups []Group
}

// Build groups items under scheme. Every key of scheme.Keys() gets a group,
// even an empty one; items in each group are sorted by rank.
func Build(scheme board.Scheme, items []*board.Item) *Snapshot {
	resolved := board.Resolve(items, scheme)
	keys := board.OrderedKeys(scheme, resolved)
	s := &Snapshot{Scheme: scheme, Groups: make([]Group, 0, len(keys))}
	for _, k := range keys {
		g := Group{Key: k, Title: titleOf(scheme, k, "")}
		for _, it := range resolved[k] {
			g.Items = insertByRank(g.Items, it)
		}
		s.Groups = append(s.Groups, g)
	}
	return s
}

// Find locates an item by id.
func (s *Snapshot) Find(id string) (group, index int, ok bool) {
	if s == nil {
		return 0, 0, false
	}
	for gi, g := range s.Groups {
		for ii, it := range g.Items {
			if it.ID == id {
				return gi, ii, true
			}
		}
	}
	return 0, 0, false
}

// Item returns the item with the given id.
func (s *Snapshot) Item(id string) (*board.Item, bool) {
	gi, ii, ok := s.Find(id)
	if !ok {
		return nil, false
	}
	return s.Groups[gi].Items[ii], true
}

// Group returns the group with the given key.
func (s *Snapshot) Group(key board.GroupKey) (Group, bool) {
	if s == nil {
		return Group{}, false
	}
	for _, g := range s.Groups {
		if g.Key == key {
			return g, true
		}
	}
	return Group{}, false
}

// Items returns every item once, in group order.
func (s *Snapshot) Items() []*board.Item {
	if s == nil {
		return nil
	}
	var out []*board.Item
	for _, g := range s.Groups {
		out = append(out, g.Items...)
	}
	return out
}

// Len counts items across groups.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, g := range s.Groups {
		n += len(g.Items)
	}
	return n
}

func titleOf(scheme board.Scheme, key board.GroupKey, hint string) string {
	if hint != "" {
		return hint
	}
	if t, ok := scheme.(board.Titled); ok {
		return t.TitleOf(key)
	}
	return string(key)
}

// insertByRank returns a new slice with it placed after every item whose
// rank is not greater. Unranked items stay at the end.
func insertByRank(items []*board.Item, it *board.Item) []*board.Item {
	pos := len(items)
	if it.Rank != "" {
		for i, cur := range items {
			if cur.Rank == "" || rank.Compare(it.Rank, cur.Rank) < 0 {
				pos = i
				break
			}
		}
	}
	out := make([]*board.Item, 0, len(items)+1)
	out = append(out, items[:pos]...)
	out = append(out, it)
	return append(out, items[pos:]...)
}

func removeAt(items []*board.Item, i int) []*board.Item {
	out := make([]*board.Item, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}
