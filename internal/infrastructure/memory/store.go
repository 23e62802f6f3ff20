// Package memory implements the entity store with in-process maps. Write
// transactions are serialized by a store-wide mutex and buffer their writes
// until commit, so a failing transaction leaves no partial state and
// concurrent purchases against the same slot drain it deterministically.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vendstack/vendingmachine/internal/domain/catalog"
	"github.com/vendstack/vendingmachine/internal/domain/storage"
	"github.com/vendstack/vendingmachine/internal/domain/user"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]*user.User
	products map[string]*catalog.Product
	slots    map[string]*catalog.Slot
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]*user.User),
		products: make(map[string]*catalog.Product),
		slots:    make(map[string]*catalog.Slot),
	}
}

// WithinTx runs fn while holding the store write lock. Writes issued through
// the Tx are staged and applied only when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store: s,
		users: make(map[string]*user.User),
		slots: make(map[string]*catalog.Slot),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, u := range tx.users {
		s.users[id] = u
	}
	for id, sl := range tx.slots {
		s.slots[id] = sl
	}
	return nil
}

type memTx struct {
	store *Store
	users map[string]*user.User // staged writes
	slots map[string]*catalog.Slot
}

func (t *memTx) GetUser(ctx context.Context, id string) (*user.User, error) {
	_ = ctx
	if u, ok := t.users[id]; ok {
		return u.Clone(), nil
	}
	u, ok := t.store.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u.Clone(), nil
}

func (t *memTx) SaveUser(ctx context.Context, u *user.User) error {
	_ = ctx
	if u == nil || u.ID == "" {
		return storage.ErrFailure
	}
	if _, staged := t.users[u.ID]; !staged {
		if _, ok := t.store.users[u.ID]; !ok {
			return user.ErrNotFound
		}
	}
	t.users[u.ID] = u.Clone()
	return nil
}

func (t *memTx) GetSlot(ctx context.Context, id string) (*catalog.Slot, error) {
	_ = ctx
	if sl, ok := t.slots[id]; ok {
		return sl.Clone(), nil
	}
	sl, ok := t.store.slots[id]
	if !ok {
		return nil, catalog.ErrSlotNotFound
	}
	return sl.Clone(), nil
}

func (t *memTx) SaveSlot(ctx context.Context, sl *catalog.Slot) error {
	_ = ctx
	if sl == nil || sl.ID == "" {
		return storage.ErrFailure
	}
	if _, staged := t.slots[sl.ID]; !staged {
		if _, ok := t.store.slots[sl.ID]; !ok {
			return catalog.ErrSlotNotFound
		}
	}
	t.slots[sl.ID] = sl.Clone()
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *Store) GetSlot(ctx context.Context, id string) (*catalog.Slot, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	sl, ok := s.slots[id]
	if !ok {
		return nil, catalog.ErrSlotNotFound
	}
	return sl.Clone(), nil
}

func (s *Store) ListSlots(ctx context.Context, maxQuantity *int) ([]*catalog.Slot, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*catalog.Slot, 0, len(s.slots))
	for _, sl := range s.slots {
		if maxQuantity != nil && sl.Quantity > *maxQuantity {
			continue
		}
		out = append(out, sl.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Column < out[j].Column
	})
	return out, nil
}

func (s *Store) FindUserByName(ctx context.Context, name string) (*user.User, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Name, name) {
			return u.Clone(), nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *Store) InsertUser(ctx context.Context, u *user.User) error {
	_ = ctx
	if u == nil || u.ID == "" {
		return storage.ErrFailure
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return storage.ErrConflict
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Name, u.Name) {
			return storage.ErrConflict
		}
	}
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *Store) InsertProduct(ctx context.Context, p *catalog.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return storage.ErrFailure
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[p.ID]; exists {
		return storage.ErrConflict
	}
	s.products[p.ID] = p.Clone()
	return nil
}

func (s *Store) InsertSlot(ctx context.Context, sl *catalog.Slot) error {
	_ = ctx
	if sl == nil || sl.ID == "" || sl.Product == nil {
		return storage.ErrFailure
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.slots[sl.ID]; exists {
		return storage.ErrConflict
	}
	if _, known := s.products[sl.Product.ID]; !known {
		return catalog.ErrProductNotFound
	}
	s.slots[sl.ID] = sl.Clone()
	return nil
}
