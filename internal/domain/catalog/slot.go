package catalog

import (
	"errors"
	"time"
)

var (
	ErrSlotNotFound    = errors.New("catalog: slot not found")
	ErrOutOfStock      = errors.New("catalog: not enough product quantity")
	ErrInvalidQuantity = errors.New("catalog: quantity must be between 0 and 100")
	ErrInvalidPosition = errors.New("catalog: position is outside the grid")
)

const (
	MaxQuantity = 100
	MaxRow      = 10
	MaxColumn   = 5
)

// Slot is one position in the machine grid. It references exactly one
// product and tracks how many units of it remain.
type Slot struct {
	ID        string
	Product   *Product
	Quantity  int
	Row       int
	Column    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewSlot(id string, product *Product, quantity, row, column int) (*Slot, error) {
	if product == nil {
		return nil, ErrProductNotFound
	}
	if quantity < 0 || quantity > MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	if row < 1 || row > MaxRow || column < 1 || column > MaxColumn {
		return nil, ErrInvalidPosition
	}
	now := time.Now().UTC()
	return &Slot{
		ID:        id,
		Product:   product,
		Quantity:  quantity,
		Row:       row,
		Column:    column,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Decrement removes one unit from the slot. The quantity never goes negative.
func (s *Slot) Decrement() error {
	if s.Quantity <= 0 {
		return ErrOutOfStock
	}
	s.Quantity--
	s.touch()
	return nil
}

func (s *Slot) Clone() *Slot {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Product = s.Product.Clone()
	return &clone
}

func (s *Slot) touch() {
	s.UpdatedAt = time.Now().UTC()
}
