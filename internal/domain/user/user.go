package user

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendstack/vendingmachine/internal/domain/money"
)

var (
	ErrNotFound            = errors.New("user: not found")
	ErrInvalidName         = errors.New("user: name is required")
	ErrInsufficientBalance = errors.New("user: insufficient balance")
)

// User is an account holder with a spendable, non-negative balance.
// Balance mutations go through Credit, Debit, and ResetBalance; no other
// path may change the balance once the user exists.
type User struct {
	ID        string
	Name      string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a user with a zero balance.
func New(id, name string) (*User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	now := time.Now().UTC()
	return &User{
		ID:        id,
		Name:      name,
		Balance:   money.Zero(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Credit adds amount to the balance. The resulting balance must still be a
// valid amount, so topping up past the maximum is rejected.
func (u *User) Credit(amount decimal.Decimal) error {
	if err := money.Validate(amount); err != nil {
		return err
	}
	next := u.Balance.Add(amount)
	if err := money.Validate(next); err != nil {
		return err
	}
	u.Balance = next
	u.touch()
	return nil
}

// Debit subtracts amount from the balance. The balance never goes negative.
func (u *User) Debit(amount decimal.Decimal) error {
	if err := money.Validate(amount); err != nil {
		return err
	}
	next := u.Balance.Sub(amount)
	if next.IsNegative() {
		return ErrInsufficientBalance
	}
	u.Balance = next
	u.touch()
	return nil
}

// ResetBalance clears the balance to exactly 0.00 regardless of its value.
func (u *User) ResetBalance() {
	u.Balance = money.Zero()
	u.touch()
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (u *User) touch() {
	u.UpdatedAt = time.Now().UTC()
}
