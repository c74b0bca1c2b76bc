package core

import (
	"context"
	"errors"

	"github.com/dkeye/DigitalRoom/internal/domain"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

//go:generate mockgen -source=store_iface.go -destination=mocks/account_store_mock.go -package=mocks

// AccountStore persists registered accounts. Lookups by name are exact;
// callers normalize names beforehand.
type AccountStore interface {
	FindByName(ctx context.Context, username string) (*domain.Account, error)
	FindByID(ctx context.Context, id domain.AccountID) (*domain.Account, error)
	Create(ctx context.Context, acc *domain.Account) error
	UpdateAttributes(ctx context.Context, id domain.AccountID, patch domain.AccountPatch) error
	Close() error
}
