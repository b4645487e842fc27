package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/amirbrooks/tasker-board/internal/board"
	"github.com/amirbrooks/tasker-board/internal/cache"
	"github.com/amirbrooks/tasker-board/internal/store"
)

// session holds the board snapshot for one mutating command. Changes are
// applied to the cache first and persisted second; a failed write rolls the
// cache back.
type session struct {
	a     *app
	cache *cache.Store
}

func (a *app) openSession(ctx context.Context) (*session, error) {
	cs := cache.NewStore(a.ws, cache.WithLogger(a.logger.Named("cache")))
	if _, err := cs.Load(ctx, store.KeyBoard); err != nil {
		cs.Close()
		return nil, err
	}
	return &session{a: a, cache: cs}, nil
}

func (s *session) Close() { s.cache.Close() }

func (s *session) snapshot() *cache.Snapshot {
	return s.cache.Get(store.KeyBoard).Data
}

// change is one optimistic edit: predict derives the local mutation from the
// current snapshot and persist performs the write through the docstore.
type change struct {
	predict func(snap *cache.Snapshot) (cache.Mutation, error)
	persist func() (*board.Item, error)
}

// apply runs c and returns the persisted item. The cache ends up holding the
// docstore's version of the item, or the state before the change when the
// write fails.
func (s *session) apply(c change) (*board.Item, error) {
	before := s.snapshot()
	m, err := c.predict(before)
	if err != nil {
		return nil, err
	}
	token := s.cache.Mutate(store.KeyBoard, m, cache.MutateOptions{})

	saved, err := c.persist()
	if err != nil {
		if undo, ok := cache.Invert(before, m); ok && s.cache.Current(m.ItemID(), token) {
			s.cache.Mutate(store.KeyBoard, undo, cache.MutateOptions{})
			s.a.logger.Debug("rolled back", zap.String("mutation", m.String()), zap.Error(err))
		}
		return nil, err
	}
	if s.cache.Current(m.ItemID(), token) {
		s.cache.Mutate(store.KeyBoard, cache.Update(saved), cache.MutateOptions{})
	}
	return saved, nil
}

// itemFor returns the snapshot's copy of id for editing.
func itemFor(snap *cache.Snapshot, id string) (*board.Item, error) {
	it, ok := snap.Item(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return it.Clone(), nil
}

// groupRanks lists the ranks of key's items in order, skipping exclude.
func groupRanks(snap *cache.Snapshot, key board.GroupKey, exclude string) []string {
	g, ok := snap.Group(key)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.Items))
	for _, it := range g.Items {
		if it.ID != exclude && it.Rank != "" {
			out = append(out, it.Rank)
		}
	}
	return out
}

func labelKey(labelID string) board.GroupKey {
	if labelID == "" {
		return board.Unlabeled
	}
	return board.GroupKey(labelID)
}
