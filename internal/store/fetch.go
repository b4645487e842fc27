package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/amirbrooks/tasker-board/internal/board"
	"github.com/amirbrooks/tasker-board/internal/cache"
)

// Cache keys served by Fetch.
const (
	KeyBoard   = "board"
	KeyPlanner = "planner"
)

// Fetch builds the authoritative snapshot for key from disk. It satisfies
// cache.Fetcher.
func (w *Workspace) Fetch(ctx context.Context, key string) (*cache.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := w.ListItems(ListFilter{})
	if err != nil {
		return nil, err
	}
	var scheme board.Scheme
	switch key {
	case KeyBoard:
		scheme = board.ByLabel(w.cfg.Labels)
	case KeyPlanner:
		scheme = board.PlannerBuckets(timeNow(), w.location())
	default:
		return nil, fmt.Errorf("%w: unknown cache key %q", ErrInvalid, key)
	}
	snap := cache.Build(scheme, items)
	w.logger.Debug("fetched", zap.String("key", key), zap.Int("items", snap.Len()))
	return snap, nil
}

var _ cache.Fetcher = (*Workspace)(nil)
