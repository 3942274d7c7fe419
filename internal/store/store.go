package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/todopro/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a username or e-mail is already taken.
	ErrDuplicate = errors.New("already exists")

	// ErrResetNotFound is returned when no unused, unexpired reset code
	// exists for an address.
	ErrResetNotFound = errors.New("reset code not found or expired")

	// ErrResetCodeMismatch is returned when the supplied reset code does not
	// match the stored one.
	ErrResetCodeMismatch = errors.New("reset code mismatch")
)

// TaskStore persists whole task collections per user. The server uses it
// for the remote collection and the client for its last known copy.
type TaskStore interface {
	ReplaceTasks(ctx context.Context, userID int64, tasks []model.Task) error
	GetTasks(ctx context.Context, userID int64) ([]model.Task, error)
}

// Store defines the persistence interface of the server.
type Store interface {
	TaskStore

	// === Accounts ===

	CreateAccount(ctx context.Context, acc model.Account) (int64, error)
	GetAccountByID(ctx context.Context, id int64) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByVerificationToken(ctx context.Context, token string) (*model.Account, error)
	MarkEmailVerified(ctx context.Context, id int64) error
	UpdateUsername(ctx context.Context, id int64, username string) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error

	// === Password resets ===

	UpsertPasswordReset(ctx context.Context, reset model.PasswordReset) error
	ConsumePasswordReset(ctx context.Context, email, code, newHash string, now time.Time) error
}
