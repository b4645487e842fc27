package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by Load after Close.
var ErrClosed = errors.New("cache store closed")

// Fetcher is the authoritative read side.
type Fetcher interface {
	Fetch(ctx context.Context, key string) (*Snapshot, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, key string) (*Snapshot, error)

func (f FetcherFunc) Fetch(ctx context.Context, key string) (*Snapshot, error) {
	return f(ctx, key)
}

// Result is what a reader sees for a key.
type Result struct {
	Data         *Snapshot
	Err          error
	IsValidating bool
}

// MutateOptions controls what happens after a local patch. Revalidate
// schedules a background refetch; leave it off when the local result is
// expected to match the server exactly (a pure reorder or toggle).
type MutateOptions struct {
	Revalidate bool
}

type entry struct {
	data       *Snapshot
	err        error
	validating int
	gen        uint64
}

// Store is a keyed snapshot cache. Mutations are applied synchronously under
// one lock, in call order, so a reader never sees a half-applied patch.
// The store has no notion of pending server requests: rollback and stale
// response handling belong to the caller, helped by Invert and Current.
type Store struct {
	fetcher Fetcher
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry
	latest  map[string]uuid.UUID
	closed  bool

	flight singleflight.Group
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewStore(f Fetcher, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		fetcher: f,
		logger:  zap.NewNop(),
		entries: map[string]*entry{},
		latest:  map[string]uuid.UUID{},
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) entryLocked(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}

// Get returns the current state for key without fetching.
func (s *Store) Get(key string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Result{}
	}
	return Result{Data: e.data, Err: e.err, IsValidating: e.validating > 0}
}

// Set replaces the data for key, as a fresh fetch would.
func (s *Store) Set(key string, snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(key)
	e.data = snap
	e.err = nil
	e.gen++
}

// Load fetches key and waits for the result.
func (s *Store) Load(ctx context.Context, key string) (*Snapshot, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	s.refetch(ctx, key)
	r := s.Get(key)
	return r.Data, r.Err
}

// Mutate patches the data for key with m and returns a token identifying
// this mutation as the latest for its item.
func (s *Store) Mutate(key string, m Mutation, opts MutateOptions) uuid.UUID {
	token := uuid.New()
	s.mu.Lock()
	e := s.entryLocked(key)
	before := e.data
	after := Apply(before, m)
	e.data = after
	e.gen++
	if id := m.ItemID(); id != "" {
		s.latest[id] = token
	}
	s.mu.Unlock()

	s.logger.Debug("cache mutate",
		zap.String("key", key),
		zap.String("mutation", m.String()),
		zap.Bool("changed", before != after),
		zap.Bool("revalidate", opts.Revalidate),
		zap.String("token", token.String()))
	if opts.Revalidate {
		s.Revalidate(key)
	}
	return token
}

// MutateFunc replaces the data for key with updater(old).
func (s *Store) MutateFunc(key string, updater func(old *Snapshot) *Snapshot, opts MutateOptions) {
	s.mu.Lock()
	e := s.entryLocked(key)
	e.data = updater(e.data)
	e.gen++
	s.mu.Unlock()
	if opts.Revalidate {
		s.Revalidate(key)
	}
}

// Current reports whether token is still the latest mutation for itemID. A
// server response for a superseded mutation must not be applied.
func (s *Store) Current(itemID string, token uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[itemID] == token
}

// Revalidate refetches key in the background.
func (s *Store) Revalidate(key string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		s.refetch(s.ctx, key)
	}()
}

// fetchResult is a fetched snapshot stamped with the entry generation read
// when the shared fetch started.
type fetchResult struct {
	snap *Snapshot
	gen  uint64
}

// refetch fetches key, deduplicating concurrent fetches of the same key. A
// result is dropped if the entry was mutated after the shared fetch started,
// including for callers that joined it after the mutation.
func (s *Store) refetch(ctx context.Context, key string) {
	s.mu.Lock()
	e := s.entryLocked(key)
	e.validating++
	s.mu.Unlock()

	v, err, shared := s.flight.Do(key, func() (any, error) {
		s.mu.Lock()
		gen := s.entryLocked(key).gen
		s.mu.Unlock()
		snap, err := s.fetcher.Fetch(ctx, key)
		return fetchResult{snap: snap, gen: gen}, err
	})
	res, _ := v.(fetchResult)

	s.mu.Lock()
	defer s.mu.Unlock()
	e.validating--
	if e.gen != res.gen {
		s.logger.Debug("discarding stale fetch", zap.String("key", key), zap.Bool("shared", shared))
		return
	}
	if err != nil {
		e.err = err
		s.logger.Warn("fetch failed", zap.String("key", key), zap.Error(err))
		return
	}
	e.data = res.snap
	e.err = nil
	e.gen++
	s.logger.Debug("fetched", zap.String("key", key), zap.Bool("shared", shared), zap.Int("items", e.data.Len()))
}

// Close cancels background fetches and waits for them to finish.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
