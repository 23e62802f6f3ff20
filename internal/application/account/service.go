// Package account handles the login flow: users come into existence on
// first login, with a zero balance.
package account

import (
	"context"
	"errors"

	"github.com/vendstack/vendingmachine/internal/domain/storage"
	"github.com/vendstack/vendingmachine/internal/domain/user"
	"github.com/vendstack/vendingmachine/internal/observability"
	"github.com/vendstack/vendingmachine/internal/observability/logctx"
)

type IDGenerator interface {
	NewID() string
}

type Service struct {
	store       storage.Store
	idGenerator IDGenerator
	log         observability.Logger
}

func NewService(store storage.Store, idGen IDGenerator, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		store:       store,
		idGenerator: idGen,
		log:         tel.Logger().With(observability.F("service", "account")),
	}
}

// Login finds the user by name (case-insensitive) or creates one with a zero
// balance. The second return value reports whether the user was created.
func (s *Service) Login(ctx context.Context, name string) (*user.User, bool, error) {
	logger := logctx.FromOr(ctx, s.log)

	existing, err := s.store.FindUserByName(ctx, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, false, err
	}

	u, err := user.New(s.idGenerator.NewID(), name)
	if err != nil {
		return nil, false, err
	}
	if err := s.store.InsertUser(ctx, u); err != nil {
		// Lost a first-login race; the winner's record is the account.
		if errors.Is(err, storage.ErrConflict) {
			if winner, findErr := s.store.FindUserByName(ctx, name); findErr == nil {
				return winner, false, nil
			}
		}
		return nil, false, err
	}

	logger.Info("user_created", observability.F("user_id", u.ID))
	return u, true, nil
}
