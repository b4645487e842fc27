package cache

import (
	"fmt"

	"github.com/amirbrooks/tasker-board/internal/board"
)

// Op is the kind of a mutation.
type Op string

const (
	OpCreate  Op = "create"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
	OpReorder Op = "reorder"
)

// GroupHint steers a create. Key, when set, names the target group instead
// of the scheme's choice; Title names the group if it has to be added.
type GroupHint struct {
	Key   board.GroupKey
	Title string
}

// Mutation is one optimistic change to the collection.
type Mutation struct {
	Op   Op
	Item *board.Item // create, update
	Hint GroupHint   // create
	ID   string      // delete, reorder
	Rank string      // reorder
}

func Create(it *board.Item, hint GroupHint) Mutation {
	return Mutation{Op: OpCreate, Item: it, Hint: hint}
}

func Update(it *board.Item) Mutation {
	return Mutation{Op: OpUpdate, Item: it}
}

func Delete(id string) Mutation {
	return Mutation{Op: OpDelete, ID: id}
}

func Reorder(id, newRank string) Mutation {
	return Mutation{Op: OpReorder, ID: id, Rank: newRank}
}

// ItemID returns the id of the item the mutation targets.
func (m Mutation) ItemID() string {
	if m.Item != nil {
		return m.Item.ID
	}
	return m.ID
}

func (m Mutation) String() string {
	return fmt.Sprintf("%s(%s)", m.Op, m.ItemID())
}

// Apply returns the snapshot that results from m. It never modifies s: the
// result shares every untouched group and item with s, and when m changes
// nothing (unknown id, unchanged update, ineligible create) s itself is
// returned.
func Apply(s *Snapshot, m Mutation) *Snapshot {
	if s == nil {
		return nil
	}
	switch m.Op {
	case OpCreate:
		if m.Item == nil {
			return s
		}
		return s.create(m.Item, m.Hint)
	case OpUpdate:
		if m.Item == nil {
			return s
		}
		return s.update(m.Item)
	case OpDelete:
		return s.remove(m.ID)
	case OpReorder:
		it, ok := s.Item(m.ID)
		if !ok || it.Rank == m.Rank {
			return s
		}
		next := it.Clone()
		next.Rank = m.Rank
		return s.update(next)
	default:
		return s
	}
}

// Invert returns the mutation that undoes m when applied to Apply(before, m).
// It reports false when m had nothing to undo.
func Invert(before *Snapshot, m Mutation) (Mutation, bool) {
	prevGroup, prev, found := before.lookup(m.ItemID())
	switch m.Op {
	case OpCreate:
		if found {
			return Update(prev), true
		}
		return Delete(m.ItemID()), true
	case OpUpdate, OpReorder, OpDelete:
		// A create of an id that is present acts as an update, so this also
		// restores items the change removed from the snapshot.
		if !found {
			return Mutation{}, false
		}
		return Create(prev, GroupHint{Key: prevGroup.Key, Title: prevGroup.Title}), true
	default:
		return Mutation{}, false
	}
}

func (s *Snapshot) lookup(id string) (Group, *board.Item, bool) {
	gi, ii, ok := s.Find(id)
	if !ok {
		return Group{}, nil, false
	}
	return s.Groups[gi], s.Groups[gi].Items[ii], true
}

// keyOf asks the scheme where it belongs. Without a scheme the item stays
// where it is, unless trashed.
func (s *Snapshot) keyOf(it *board.Item, current board.GroupKey) (board.GroupKey, bool) {
	if s.Scheme == nil {
		return current, !it.Trashed
	}
	return s.Scheme.KeyOf(it)
}

func (s *Snapshot) create(it *board.Item, hint GroupHint) *Snapshot {
	if _, _, ok := s.Find(it.ID); ok {
		return s.update(it)
	}
	key, ok := s.keyOf(it, hint.Key)
	if !ok {
		return s
	}
	if hint.Key != "" {
		key = hint.Key
	}
	return s.clone().insert(key, hint.Title, it)
}

func (s *Snapshot) update(it *board.Item) *Snapshot {
	gi, ii, ok := s.Find(it.ID)
	if !ok {
		return s
	}
	cur := s.Groups[gi]
	old := cur.Items[ii]
	key, eligible := s.keyOf(it, cur.Key)
	if eligible && key == cur.Key && old.Equal(it) {
		return s
	}
	out := s.clone()
	out.Groups[gi].Items = removeAt(cur.Items, ii)
	if !eligible {
		return out
	}
	return out.insert(key, "", it)
}

func (s *Snapshot) remove(id string) *Snapshot {
	gi, ii, ok := s.Find(id)
	if !ok {
		return s
	}
	out := s.clone()
	out.Groups[gi].Items = removeAt(s.Groups[gi].Items, ii)
	return out
}

// clone copies the group list; the item slices are still shared and are
// replaced, never written, by insert and removeAt.
func (s *Snapshot) clone() *Snapshot {
	out := &Snapshot{Scheme: s.Scheme, Groups: make([]Group, len(s.Groups))}
	copy(out.Groups, s.Groups)
	return out
}

// insert must only be called on a snapshot returned by clone.
func (s *Snapshot) insert(key board.GroupKey, title string, it *board.Item) *Snapshot {
	for gi := range s.Groups {
		if s.Groups[gi].Key == key {
			s.Groups[gi].Items = insertByRank(s.Groups[gi].Items, it)
			return s
		}
	}
	g := Group{Key: key, Items: []*board.Item{it}}
	if s.Scheme != nil {
		g.Title = titleOf(s.Scheme, key, title)
	} else {
		g.Title = title
	}
	s.Groups = append(s.Groups, g)
	return s
}
