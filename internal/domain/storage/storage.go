// Package storage defines the transactional entity-store port the operators
// run against. A purchase touches one user and one slot; WithinTx scopes
// those reads and writes to a single all-or-nothing transaction.
package storage

import (
	"context"
	"errors"

	"github.com/vendstack/vendingmachine/internal/domain/catalog"
	"github.com/vendstack/vendingmachine/internal/domain/user"
)

var (
	// ErrConflict reports a commit that lost against a concurrent
	// transaction. Retrying is the caller's decision.
	ErrConflict = errors.New("storage: transaction conflict")
	ErrFailure  = errors.New("storage: operation failed")
)

// Tx is the view of the store inside one transaction. Reads observe a
// consistent snapshot; writes become visible only when WithinTx commits.
type Tx interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
	SaveUser(ctx context.Context, u *user.User) error
	// GetSlot returns the slot with its product joined in.
	GetSlot(ctx context.Context, id string) (*catalog.Slot, error)
	SaveSlot(ctx context.Context, s *catalog.Slot) error
}

// Store is the durable home of users, products, and slots.
type Store interface {
	// WithinTx runs fn in a transaction. A nil return from fn commits the
	// buffered writes; any error discards them and is returned unchanged.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetUser(ctx context.Context, id string) (*user.User, error)
	GetSlot(ctx context.Context, id string) (*catalog.Slot, error)

	// ListSlots returns slots ordered by (row, column) ascending,
	// optionally keeping only those with quantity <= *maxQuantity.
	ListSlots(ctx context.Context, maxQuantity *int) ([]*catalog.Slot, error)
	// FindUserByName matches the display name case-insensitively.
	FindUserByName(ctx context.Context, name string) (*user.User, error)

	InsertUser(ctx context.Context, u *user.User) error
	InsertProduct(ctx context.Context, p *catalog.Product) error
	InsertSlot(ctx context.Context, s *catalog.Slot) error
}
