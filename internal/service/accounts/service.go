package accounts

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"chairbook/internal/domain"
	"chairbook/internal/store"
)

const (
	minUsernameLen = 3
	minPasswordLen = 4
	saltBytes      = 16
)

// Service is the credential store: account creation, login checks and roles.
type Service struct {
	repo store.AccountRepository
	log  *slog.Logger
	now  func() time.Time
}

func NewService(repo store.AccountRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo: repo,
		log:  log.With(slog.String("component", "service.accounts")),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccount stores a new account as a viewer. When no owner exists the
// earliest-created account is promoted in the same transaction, which makes
// the very first account the owner.
func (s *Service) CreateAccount(ctx context.Context, username, password string) (domain.Account, error) {
	name := strings.TrimSpace(username)
	if utf8.RuneCountInString(name) < minUsernameLen {
		return domain.Account{}, domain.NewValidationError("username must be at least 3 characters")
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return domain.Account{}, domain.NewValidationError("password must be at least 4 characters")
	}

	salt, err := newSalt()
	if err != nil {
		return domain.Account{}, err
	}

	acct := domain.Account{
		Username:     name,
		Salt:         salt,
		PasswordHash: hashPassword(salt, password),
		CreatedAt:    s.now(),
	}

	var created domain.Account
	err = s.repo.InAccountTransaction(ctx, func(ctx context.Context, tx store.AccountTx) error {
		if _, err := tx.GetAccount(ctx, name); err == nil {
			return store.ErrDuplicate
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		acct.Role = domain.RoleViewer
		created, err = tx.InsertAccount(ctx, acct)
		if err != nil {
			return err
		}

		promoted, err := tx.PromoteEarliest(ctx)
		if err != nil {
			return err
		}
		if promoted != "" && promoted != name {
			s.log.Info("promoted earliest account to owner", slog.String("username", promoted))
		}
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}

	stored, err := s.repo.GetAccount(ctx, name)
	if err != nil || stored.ID != created.ID {
		s.log.Error("account missing after create", slog.String("username", name), slog.Any("err", err))
		return domain.Account{}, store.ErrIntegrity
	}

	s.log.Info("account created", slog.String("username", name), slog.String("role", string(stored.Role)))
	return stored, nil
}

// VerifyLogin never returns an error: unknown users, malformed stored
// credentials and storage failures all read as a failed login.
func (s *Service) VerifyLogin(ctx context.Context, username, password string) bool {
	acct, err := s.repo.GetAccount(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("login lookup failed", slog.Any("err", err))
		}
		return false
	}
	if acct.Salt == "" || len(acct.PasswordHash) != sha256.Size*2 {
		s.log.Warn("malformed stored credentials", slog.String("username", acct.Username))
		return false
	}
	want := hashPassword(acct.Salt, password)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(acct.PasswordHash))) == 1
}

func (s *Service) RoleOf(ctx context.Context, username string) (domain.Role, bool) {
	acct, err := s.repo.GetAccount(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", false
	}
	return acct.Role, true
}

func (s *Service) HasAnyAccount(ctx context.Context) (bool, error) {
	return s.repo.HasAnyAccount(ctx)
}

func (s *Service) SetRole(ctx context.Context, username string, role domain.Role) error {
	if !role.Valid() {
		return domain.NewValidationError("unknown role")
	}
	name := strings.TrimSpace(username)
	if err := s.repo.SetRole(ctx, name, role); err != nil {
		return err
	}
	s.log.Info("account role changed", slog.String("username", name), slog.String("role", string(role)))
	return nil
}

func hashPassword(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + ":" + password))
	return hex.EncodeToString(sum[:])
}

func newSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
