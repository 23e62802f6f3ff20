// Package catalog holds the vending machine inventory model: products and
// the grid slots that dispense them.
package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendstack/vendingmachine/internal/domain/money"
)

var (
	ErrProductNotFound = errors.New("catalog: product not found")
	ErrInvalidProduct  = errors.New("catalog: product name is required")
)

// Product is a purchasable item. It is immutable after creation except
// through admin tooling, which is outside this module.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewProduct(id, name, description string, price decimal.Decimal) (*Product, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidProduct
	}
	if err := money.Validate(price); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Product{
		ID:          id,
		Name:        name,
		Description: description,
		Price:       price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
