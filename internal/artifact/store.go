package artifact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateID is returned when an added artifact's ID is already present.
var ErrDuplicateID = errors.New("artifact id already exists")

// Mutator edits one artifact in place during Update.
type Mutator func(*Artifact) error

// Store is the client-private set of rendered artifacts. Every method is one
// batched operation: it applies completely or not at all. Subscribers get the
// full set after each change.
type Store struct {
	mu    sync.Mutex
	items map[string]*Artifact
	seq   map[string]uint64 // insertion order
	next  uint64
	subs  map[*storeSub]struct{}
}

type storeSub struct {
	ch chan []*Artifact
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		items: make(map[string]*Artifact),
		seq:   make(map[string]uint64),
		subs:  make(map[*storeSub]struct{}),
	}
}

// List returns copies of every artifact in insertion order.
func (s *Store) List(ctx context.Context) ([]*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// Get returns a copy of one artifact, or false if it does not exist.
func (s *Store) Get(id string) (*Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// Len returns the number of artifacts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Add inserts items. An ID that already exists, or repeats within the batch,
// fails the whole batch.
func (s *Store) Add(ctx context.Context, items []*Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(items))
	for _, a := range items {
		if a == nil || a.ID == "" {
			return fmt.Errorf("artifact id cannot be empty")
		}
		if _, exists := s.items[a.ID]; exists || seen[a.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, a.ID)
		}
		seen[a.ID] = true
	}
	for _, a := range items {
		s.items[a.ID] = a.Clone()
		s.seq[a.ID] = s.next
		s.next++
	}
	s.notifyLocked()
	return nil
}

// Update applies mutate to each listed artifact. IDs that no longer exist
// are skipped. If mutate fails for any artifact, none are changed.
func (s *Store) Update(ctx context.Context, ids []string, mutate Mutator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]*Artifact, len(ids))
	for _, id := range ids {
		a, ok := s.items[id]
		if !ok {
			continue
		}
		c := a.Clone()
		if err := mutate(c); err != nil {
			return fmt.Errorf("failed to update artifact %s: %w", id, err)
		}
		// The mutator may not re-key the artifact.
		c.ID = id
		staged[id] = c
	}
	if len(staged) == 0 {
		return nil
	}
	for id, a := range staged {
		s.items[id] = a
	}
	s.notifyLocked()
	return nil
}

// Delete removes the listed artifacts. Unknown IDs are ignored.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	for _, id := range ids {
		if _, ok := s.items[id]; ok {
			delete(s.items, id)
			delete(s.seq, id)
			removed = true
		}
	}
	if removed {
		s.notifyLocked()
	}
	return nil
}

// Clear removes every artifact.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil
	}
	s.items = make(map[string]*Artifact)
	s.seq = make(map[string]uint64)
	s.notifyLocked()
	return nil
}

// Subscribe returns a channel of full artifact sets, one per change, and a
// function that ends the subscription. A slow reader only ever sees the most
// recent set.
func (s *Store) Subscribe() (<-chan []*Artifact, func()) {
	sub := &storeSub{ch: make(chan []*Artifact, 1)}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

func (s *Store) snapshotLocked() []*Artifact {
	out := make([]*Artifact, 0, len(s.items))
	for _, a := range s.items {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return s.seq[out[i].ID] < s.seq[out[j].ID] })
	return out
}

// notifyLocked replaces any undelivered set with the current one.
func (s *Store) notifyLocked() {
	if len(s.subs) == 0 {
		return
	}
	for sub := range s.subs {
		select {
		case <-sub.ch:
		default:
		}
		// Each subscriber gets its own copies.
		sub.ch <- s.snapshotLocked()
	}
}
