package store

import (
	"context"

	"chairbook/internal/domain"
)

type AccountTx interface {
	GetAccount(ctx context.Context, username string) (domain.Account, error)
	InsertAccount(ctx context.Context, a domain.Account) (domain.Account, error)
	// PromoteEarliest makes the earliest-created account owner when no owner
	// exists and returns its username, or "" when nothing changed.
	PromoteEarliest(ctx context.Context) (string, error)
}

type AccountRepository interface {
	GetAccount(ctx context.Context, username string) (domain.Account, error)
	HasAnyAccount(ctx context.Context) (bool, error)
	SetRole(ctx context.Context, username string, role domain.Role) error

	InAccountTransaction(ctx context.Context, fn func(ctx context.Context, tx AccountTx) error) error
}
