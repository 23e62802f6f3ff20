// Package order implements the order operator: a purchase debits the user
// and decrements the slot as one transaction, or changes nothing at all.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vendstack/vendingmachine/internal/domain/catalog"
	"github.com/vendstack/vendingmachine/internal/domain/storage"
	"github.com/vendstack/vendingmachine/internal/domain/user"
	"github.com/vendstack/vendingmachine/internal/observability"
	"github.com/vendstack/vendingmachine/internal/observability/logctx"
)

var (
	ErrInsufficientBalance = user.ErrInsufficientBalance
	ErrOutOfStock          = catalog.ErrOutOfStock
)

const (
	serviceName    = "order-operator"
	useCaseExecute = "order.execute"
	spanPrefix     = "UC."
)

// Debiter is the balance operator's debit path, applied inside the purchase
// transaction.
type Debiter interface {
	DebitWithin(ctx context.Context, tx storage.Tx, userID string, amount decimal.Decimal) (*user.User, error)
}

type UseCase struct {
	store   storage.Store
	balance Debiter

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewUseCase(store storage.Store, balance Debiter, tel observability.Observability) *UseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &UseCase{
		store:        store,
		balance:      balance,
		log:          tel.Logger().With(observability.F("service", serviceName)),
		tracer:       tel.Tracer(),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// Execute purchases one unit from slotID on behalf of userID and returns the
// user with the post-purchase balance. Preconditions are checked in order:
// user exists, slot exists, balance covers the price, slot has stock. Each
// failure leaves both records untouched.
func (uc *UseCase) Execute(ctx context.Context, userID, slotID string) (_ *user.User, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseExecute))

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"ExecuteOrder",
		attribute.String("use_case", useCaseExecute),
		attribute.String("order.user_id", userID),
		attribute.String("order.slot_id", slotID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseExecute),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseExecute),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	var result *user.User
	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		sl, err := tx.GetSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if u.Balance.LessThan(sl.Product.Price) {
			return ErrInsufficientBalance
		}
		if sl.Quantity == 0 {
			return ErrOutOfStock
		}

		debited, err := uc.balance.DebitWithin(ctx, tx, userID, sl.Product.Price)
		if err != nil {
			return err
		}
		if err := sl.Decrement(); err != nil {
			return err
		}
		if err := tx.SaveSlot(ctx, sl); err != nil {
			return err
		}
		result = debited
		return nil
	})
	if err != nil {
		outcome, statusText = "error", statusFor(err)
		return nil, err
	}

	span.AddEvent("order.dispensed",
		trace.WithAttributes(
			attribute.String("order.slot_id", slotID),
			attribute.String("order.new_balance", result.Balance.StringFixed(2)),
		),
	)
	return result, nil
}

func statusFor(err error) string {
	switch {
	case errors.Is(err, user.ErrNotFound):
		return "USER_NOT_FOUND"
	case errors.Is(err, catalog.ErrSlotNotFound):
		return "SLOT_NOT_FOUND"
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrOutOfStock):
		return "OUT_OF_STOCK"
	case errors.Is(err, storage.ErrConflict):
		return "STORE_CONFLICT"
	default:
		return "STORE_FAILED"
	}
}
