package bunstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"chairbook/internal/domain"
	"chairbook/internal/store"
)

const accountLockKey = "chairbook.accounts"

type accountQueries struct {
	db bun.IDB
}

func (q accountQueries) GetAccount(ctx context.Context, username string) (domain.Account, error) {
	var a domain.Account
	err := q.db.NewSelect().
		Model(&a).
		Where("username = ?", username).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, store.Wrap("get account", err)
	}
	return a, nil
}

func (q accountQueries) PromoteEarliest(ctx context.Context) (string, error) {
	hasOwner, err := q.db.NewSelect().
		Model((*domain.Account)(nil)).
		Where("role = ?", domain.RoleOwner).
		Exists(ctx)
	if err != nil {
		return "", store.Wrap("has owner", err)
	}
	if hasOwner {
		return "", nil
	}

	var earliest domain.Account
	err = q.db.NewSelect().
		Model(&earliest).
		OrderExpr("created_at ASC, id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", store.Wrap("earliest account", err)
	}

	_, err = q.db.NewUpdate().
		Model((*domain.Account)(nil)).
		Set("role = ?", domain.RoleOwner).
		Where("id = ?", earliest.ID).
		Exec(ctx)
	if err != nil {
		return "", store.Wrap("promote account", err)
	}
	return earliest.Username, nil
}

func (q accountQueries) InsertAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	m := a
	m.ID = 0
	if _, err := q.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.Account{}, store.ErrDuplicate
		}
		return domain.Account{}, store.Wrap("insert account", err)
	}
	return m, nil
}

type AccountRepo struct {
	conn *bun.DB

	accountQueries
}

func NewAccountRepo(db *bun.DB) *AccountRepo {
	return &AccountRepo{conn: db, accountQueries: accountQueries{db: db}}
}

func (r *AccountRepo) HasAnyAccount(ctx context.Context) (bool, error) {
	ok, err := r.conn.NewSelect().Model((*domain.Account)(nil)).Exists(ctx)
	if err != nil {
		return false, store.Wrap("has any account", err)
	}
	return ok, nil
}

func (r *AccountRepo) SetRole(ctx context.Context, username string, role domain.Role) error {
	res, err := r.conn.NewUpdate().
		Model((*domain.Account)(nil)).
		Set("role = ?", role).
		Where("username = ?", username).
		Exec(ctx)
	if err != nil {
		return store.Wrap("set role", err)
	}
	return expectAffected(res)
}

func (r *AccountRepo) InAccountTransaction(ctx context.Context, fn func(ctx context.Context, tx store.AccountTx) error) error {
	return r.conn.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockKey(ctx, tx, accountLockKey); err != nil {
			return store.Wrap("lock accounts", err)
		}
		return fn(ctx, accountQueries{db: tx})
	})
}
