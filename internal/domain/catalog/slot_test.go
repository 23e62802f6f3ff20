package catalog_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendstack/vendingmachine/internal/domain/catalog"
	"github.com/vendstack/vendingmachine/internal/domain/money"
)

func newProduct(t *testing.T) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct("product-1", "Chocolate Bar", "milk chocolate", decimal.RequireFromString("2.00"))
	require.NoError(t, err)
	return p
}

func TestNewProduct(t *testing.T) {
	p := newProduct(t)
	assert.Equal(t, "2.00", money.Format(p.Price))

	_, err := catalog.NewProduct("product-2", "", "", decimal.Zero)
	assert.ErrorIs(t, err, catalog.ErrInvalidProduct)

	_, err = catalog.NewProduct("product-3", "Soda", "", decimal.RequireFromString("-1.00"))
	assert.ErrorIs(t, err, money.ErrInvalidAmount)
}

func TestNewSlotValidation(t *testing.T) {
	p := newProduct(t)

	cases := []struct {
		name     string
		quantity int
		row      int
		column   int
		wantErr  error
	}{
		{name: "valid", quantity: 5, row: 1, column: 1},
		{name: "empty is valid", quantity: 0, row: 10, column: 5},
		{name: "full is valid", quantity: 100, row: 3, column: 2},
		{name: "negative quantity", quantity: -1, row: 1, column: 1, wantErr: catalog.ErrInvalidQuantity},
		{name: "over capacity", quantity: 101, row: 1, column: 1, wantErr: catalog.ErrInvalidQuantity},
		{name: "row zero", quantity: 1, row: 0, column: 1, wantErr: catalog.ErrInvalidPosition},
		{name: "row too large", quantity: 1, row: 11, column: 1, wantErr: catalog.ErrInvalidPosition},
		{name: "column too large", quantity: 1, row: 1, column: 6, wantErr: catalog.ErrInvalidPosition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := catalog.NewSlot("slot-1", p, tc.quantity, tc.row, tc.column)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := catalog.NewSlot("slot-1", nil, 1, 1, 1)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestSlotDecrement(t *testing.T) {
	p := newProduct(t)
	sl, err := catalog.NewSlot("slot-1", p, 2, 1, 1)
	require.NoError(t, err)

	require.NoError(t, sl.Decrement())
	require.NoError(t, sl.Decrement())
	assert.Equal(t, 0, sl.Quantity)

	err = sl.Decrement()
	assert.ErrorIs(t, err, catalog.ErrOutOfStock)
	assert.Equal(t, 0, sl.Quantity)
}

func TestSlotCloneIsDeep(t *testing.T) {
	p := newProduct(t)
	sl, err := catalog.NewSlot("slot-1", p, 5, 1, 1)
	require.NoError(t, err)

	clone := sl.Clone()
	require.NoError(t, clone.Decrement())
	clone.Product.Name = "changed"

	assert.Equal(t, 5, sl.Quantity)
	assert.Equal(t, "Chocolate Bar", sl.Product.Name)
}
