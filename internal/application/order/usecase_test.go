package order_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendstack/vendingmachine/internal/application/balance"
	"github.com/vendstack/vendingmachine/internal/application/order"
	"github.com/vendstack/vendingmachine/internal/domain/catalog"
	"github.com/vendstack/vendingmachine/internal/domain/money"
	"github.com/vendstack/vendingmachine/internal/domain/user"
	"github.com/vendstack/vendingmachine/internal/infrastructure/memory"
)

type fixture struct {
	uc    *order.UseCase
	store *memory.Store
	user  *user.User
	slot  *catalog.Slot
}

func setup(t *testing.T, balanceStr, priceStr string, quantity int) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	u, err := user.New("user-1", "Robin")
	require.NoError(t, err)
	if balanceStr != "0.00" {
		require.NoError(t, u.Credit(decimal.RequireFromString(balanceStr)))
	}
	require.NoError(t, store.InsertUser(ctx, u))

	p, err := catalog.NewProduct("product-1", "Crisps", "", decimal.RequireFromString(priceStr))
	require.NoError(t, err)
	require.NoError(t, store.InsertProduct(ctx, p))

	sl, err := catalog.NewSlot("slot-1", p, quantity, 1, 1)
	require.NoError(t, err)
	require.NoError(t, store.InsertSlot(ctx, sl))

	balanceOperator := balance.NewUseCase(store, nil)
	return fixture{
		uc:    order.NewUseCase(store, balanceOperator, nil),
		store: store,
		user:  u,
		slot:  sl,
	}
}

func TestExecuteDebitsAndDecrements(t *testing.T) {
	f := setup(t, "10.00", "2.00", 5)
	ctx := context.Background()

	got, err := f.uc.Execute(ctx, f.user.ID, f.slot.ID)
	require.NoError(t, err)
	assert.Equal(t, "8.00", money.Format(got.Balance))

	persistedUser, err := f.store.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "8.00", money.Format(persistedUser.Balance))

	persistedSlot, err := f.store.GetSlot(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, persistedSlot.Quantity)
}

func TestExecuteUnknownUser(t *testing.T) {
	f := setup(t, "10.00", "2.00", 5)

	_, err := f.uc.Execute(context.Background(), "missing", f.slot.ID)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestExecuteUnknownSlot(t *testing.T) {
	f := setup(t, "10.00", "2.00", 5)

	_, err := f.uc.Execute(context.Background(), f.user.ID, "missing")
	assert.ErrorIs(t, err, catalog.ErrSlotNotFound)
}

func TestExecuteInsufficientBalance(t *testing.T) {
	f := setup(t, "1.00", "2.00", 5)
	ctx := context.Background()

	_, err := f.uc.Execute(ctx, f.user.ID, f.slot.ID)
	assert.ErrorIs(t, err, order.ErrInsufficientBalance)

	persistedUser, err := f.store.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.00", money.Format(persistedUser.Balance))

	persistedSlot, err := f.store.GetSlot(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, persistedSlot.Quantity)
}

func TestExecuteOutOfStock(t *testing.T) {
	f := setup(t, "10.00", "2.00", 0)
	ctx := context.Background()

	_, err := f.uc.Execute(ctx, f.user.ID, f.slot.ID)
	assert.ErrorIs(t, err, order.ErrOutOfStock)

	persistedUser, err := f.store.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", money.Format(persistedUser.Balance))
}

// The balance check runs before the stock check, matching the precondition
// order: a broke user at an empty slot hears about the balance first.
func TestExecuteInsufficientBalanceBeatsOutOfStock(t *testing.T) {
	f := setup(t, "1.00", "2.00", 0)

	_, err := f.uc.Execute(context.Background(), f.user.ID, f.slot.ID)
	assert.ErrorIs(t, err, order.ErrInsufficientBalance)
}

func TestExecuteDrainsSlotExactly(t *testing.T) {
	f := setup(t, "10.00", "2.00", 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.uc.Execute(ctx, f.user.ID, f.slot.ID)
		require.NoError(t, err)
	}

	_, err := f.uc.Execute(ctx, f.user.ID, f.slot.ID)
	assert.ErrorIs(t, err, order.ErrOutOfStock)

	persistedUser, err := f.store.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "4.00", money.Format(persistedUser.Balance))
}

func TestExecuteConcurrentPurchasesOfLastUnit(t *testing.T) {
	const attempts = 16

	f := setup(t, "99.00", "1.00", 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.uc.Execute(ctx, f.user.ID, f.slot.ID)
		}(i)
	}
	wg.Wait()

	successes, outOfStock := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, order.ErrOutOfStock):
			outOfStock++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, outOfStock)

	persistedSlot, err := f.store.GetSlot(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, persistedSlot.Quantity)

	persistedUser, err := f.store.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "98.00", money.Format(persistedUser.Balance))
}

func TestExecuteConcurrentPurchasesNeverOverspend(t *testing.T) {
	const attempts = 20

	// Balance covers 5 purchases, stock covers 8.
	f := setup(t, "10.00", "2.00", 8)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.uc.Execute(ctx, f.user.ID, f.slot.ID)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, order.ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 5, successes)

	persistedUser, err := f.store.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", money.Format(persistedUser.Balance))

	persistedSlot, err := f.store.GetSlot(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, persistedSlot.Quantity)
}
