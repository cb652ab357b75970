package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleViewer Role = "viewer"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleViewer
}

type Account struct {
	bun.BaseModel `bun:"table:accounts"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Username     string    `bun:"username,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Salt         string    `bun:"salt,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	Role         Role      `bun:"role,notnull"`
}

func (a *Account) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		if a.Role == "" {
			a.Role = RoleViewer
		}
	}
	return nil
}
