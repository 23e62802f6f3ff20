// Package balance implements the balance operator: the only write path for a
// user's funds besides the order operator's debit.
package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vendstack/vendingmachine/internal/domain/money"
	"github.com/vendstack/vendingmachine/internal/domain/storage"
	"github.com/vendstack/vendingmachine/internal/domain/user"
	"github.com/vendstack/vendingmachine/internal/observability"
	"github.com/vendstack/vendingmachine/internal/observability/logctx"
)

// Operation is a balance mutation kind.
type Operation string

const (
	// OpCredit adds the amount to the balance.
	OpCredit Operation = "credit"
	// OpReset clears the balance to 0.00. It models a refund: the funds are
	// not returned through any side channel.
	OpReset Operation = "reset"
	// OpDebit subtracts the amount. Sufficiency is the caller's concern; the
	// balance still never goes negative.
	OpDebit Operation = "debit"
)

var ErrUnknownOperation = errors.New("balance: unknown operation")

const (
	serviceName  = "balance-operator"
	useCaseApply = "balance.apply"
	spanPrefix   = "UC."
)

type Input struct {
	UserID    string
	Operation Operation
	// Amount is required for credit and debit and ignored for reset.
	Amount *decimal.Decimal
}

// UseCase applies balance mutations inside a store transaction.
type UseCase struct {
	store storage.Store

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewUseCase(store storage.Store, tel observability.Observability) *UseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &UseCase{
		store:        store,
		log:          tel.Logger().With(observability.F("service", serviceName)),
		tracer:       tel.Tracer(),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// Apply runs one balance mutation and returns the user as persisted.
func (uc *UseCase) Apply(ctx context.Context, cmd Input) (_ *user.User, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseApply))

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"ApplyBalance",
		attribute.String("use_case", useCaseApply),
		attribute.String("balance.user_id", cmd.UserID),
		attribute.String("balance.operation", string(cmd.Operation)),
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
			observability.L("use_case", useCaseApply),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseApply),
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

	amount, err := uc.requiredAmount(cmd)
	if err != nil {
		outcome, statusText = "error", "AMOUNT_INVALID"
		if errors.Is(err, ErrUnknownOperation) {
			statusText = "OPERATION_UNKNOWN"
		}
		return nil, err
	}

	var result *user.User
	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		u, err := tx.GetUser(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		if err := mutate(u, cmd.Operation, amount); err != nil {
			return err
		}
		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}
		result = u
		return nil
	})
	if err != nil {
		outcome, statusText = "error", statusFor(err)
		return nil, err
	}
	return result, nil
}

// DebitWithin applies a debit inside an already-open transaction. The order
// operator uses it so the debit and the slot decrement commit together.
func (uc *UseCase) DebitWithin(ctx context.Context, tx storage.Tx, userID string, amount decimal.Decimal) (*user.User, error) {
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := u.Debit(amount); err != nil {
		return nil, err
	}
	if err := tx.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (uc *UseCase) requiredAmount(cmd Input) (decimal.Decimal, error) {
	switch cmd.Operation {
	case OpReset:
		return decimal.Zero, nil
	case OpCredit, OpDebit:
		if cmd.Amount == nil {
			return decimal.Zero, fmt.Errorf("%w: amount is required for %s", money.ErrInvalidAmount, cmd.Operation)
		}
		return *cmd.Amount, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownOperation, cmd.Operation)
	}
}

func mutate(u *user.User, op Operation, amount decimal.Decimal) error {
	switch op {
	case OpCredit:
		return u.Credit(amount)
	case OpDebit:
		return u.Debit(amount)
	case OpReset:
		u.ResetBalance()
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
}

func statusFor(err error) string {
	switch {
	case errors.Is(err, user.ErrNotFound):
		return "USER_NOT_FOUND"
	case errors.Is(err, money.ErrInvalidAmount):
		return "AMOUNT_INVALID"
	case errors.Is(err, user.ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, storage.ErrConflict):
		return "STORE_CONFLICT"
	default:
		return "STORE_FAILED"
	}
}
