// Package catalog exposes the read-only projections of the machine grid.
package catalog

import (
	"context"

	"github.com/vendstack/vendingmachine/internal/domain/catalog"
	"github.com/vendstack/vendingmachine/internal/domain/storage"
)

// Query serves slot listings and the per-row product grid.
type Query struct {
	store storage.Store
}

func NewQuery(store storage.Store) *Query {
	return &Query{store: store}
}

// ListSlots returns slots ordered by (row, column), optionally keeping only
// those with quantity at or below maxQuantity.
func (q *Query) ListSlots(ctx context.Context, maxQuantity *int) ([]*catalog.Slot, error) {
	return q.store.ListSlots(ctx, maxQuantity)
}

func (q *Query) GetSlot(ctx context.Context, id string) (*catalog.Slot, error) {
	return q.store.GetSlot(ctx, id)
}

// GridItem is one product as shown on the machine front: what it is, how
// many are left, and which slot dispenses it.
type GridItem struct {
	SlotID   string
	Product  *catalog.Product
	Quantity int
	Row      int
	Column   int
}

// ProductGrid groups slots into rows ordered by (row, column) ascending.
// Rows with no slots are omitted.
func (q *Query) ProductGrid(ctx context.Context) ([][]GridItem, error) {
	slots, err := q.store.ListSlots(ctx, nil)
	if err != nil {
		return nil, err
	}

	var grid [][]GridItem
	lastRow := 0
	for _, sl := range slots {
		item := GridItem{
			SlotID:   sl.ID,
			Product:  sl.Product,
			Quantity: sl.Quantity,
			Row:      sl.Row,
			Column:   sl.Column,
		}
		if sl.Row != lastRow {
			grid = append(grid, []GridItem{item})
			lastRow = sl.Row
			continue
		}
		grid[len(grid)-1] = append(grid[len(grid)-1], item)
	}
	return grid, nil
}
