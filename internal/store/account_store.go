package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/todopro/internal/model"
)

// accountRow mirrors the users table.
type accountRow struct {
	ID                int64          `db:"id"`
	Username          string         `db:"username"`
	Email             string         `db:"email"`
	PasswordHash      string         `db:"password_hash"`
	EmailVerified     int            `db:"email_verified"`
	VerificationToken sql.NullString `db:"email_verification_token"`
	VerificationCode  sql.NullString `db:"email_verification_code"`
	CreatedAt         time.Time      `db:"created_at"`
}

func (r accountRow) toModel() *model.Account {
	return &model.Account{
		User: model.User{
			ID:       r.ID,
			Username: r.Username,
			Email:    r.Email,
		},
		PasswordHash:      r.PasswordHash,
		EmailVerified:     r.EmailVerified != 0,
		VerificationToken: r.VerificationToken.String,
		VerificationCode:  r.VerificationCode.String,
		CreatedAt:         r.CreatedAt,
	}
}

const selectAccount = `
	SELECT id, username, email, password_hash, email_verified,
		email_verification_token, email_verification_code, created_at
	FROM users`

// CreateAccount inserts a new account and returns its id. It fails with
// ErrDuplicate when the username or e-mail is already registered.
func (s *SQLiteStore) CreateAccount(ctx context.Context, acc model.Account) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var taken int
	err = tx.GetContext(ctx, &taken,
		"SELECT COUNT(*) FROM users WHERE username = ? OR email = ?",
		acc.Username, acc.Email,
	)
	if err != nil {
		return 0, fmt.Errorf("checking existing accounts: %w", err)
	}
	if taken > 0 {
		return 0, ErrDuplicate
	}

	createdAt := acc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO users (
			username, email, password_hash, email_verified,
			email_verification_token, email_verification_code, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		acc.Username, acc.Email, acc.PasswordHash, boolToInt(acc.EmailVerified),
		nullString(acc.VerificationToken), nullString(acc.VerificationCode), createdAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("creating account %s: %w", acc.Username, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading new account id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing account %s: %w", acc.Username, err)
	}
	return id, nil
}

func (s *SQLiteStore) getAccount(ctx context.Context, where string, arg interface{}) (*model.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, selectAccount+" WHERE "+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLiteStore) GetAccountByID(ctx context.Context, id int64) (*model.Account, error) {
	return s.getAccount(ctx, "id = ?", id)
}

func (s *SQLiteStore) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return s.getAccount(ctx, "username = ?", username)
}

func (s *SQLiteStore) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return s.getAccount(ctx, "email = ?", email)
}

// GetAccountByVerificationToken finds an unverified account by the token
// issued at registration.
func (s *SQLiteStore) GetAccountByVerificationToken(ctx context.Context, token string) (*model.Account, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.getAccount(ctx, "email_verification_token = ? AND email_verified = 0", token)
}

// MarkEmailVerified confirms the account and drops its verification data.
func (s *SQLiteStore) MarkEmailVerified(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			email_verified = 1,
			email_verification_token = NULL,
			email_verification_code = NULL
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("verifying account %d: %w", id, err)
	}
	return expectRow(result)
}

// UpdateUsername renames an account. It fails with ErrDuplicate when
// another account already uses the name.
func (s *SQLiteStore) UpdateUsername(ctx context.Context, id int64, username string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var taken int
	err = tx.GetContext(ctx, &taken,
		"SELECT COUNT(*) FROM users WHERE username = ? AND id != ?", username, id)
	if err != nil {
		return fmt.Errorf("checking username %s: %w", username, err)
	}
	if taken > 0 {
		return ErrDuplicate
	}

	result, err := tx.ExecContext(ctx, "UPDATE users SET username = ? WHERE id = ?", username, id)
	if err != nil {
		return fmt.Errorf("renaming account %d: %w", id, err)
	}
	if err := expectRow(result); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	result, err := s.db.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", hash, id)
	if err != nil {
		return fmt.Errorf("updating password of account %d: %w", id, err)
	}
	return expectRow(result)
}

// UpsertPasswordReset stores a fresh reset code for an address, replacing
// any previous one.
func (s *SQLiteStore) UpsertPasswordReset(ctx context.Context, reset model.PasswordReset) error {
	createdAt := reset.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (email, reset_code, expires_at, used, created_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(email) DO UPDATE SET
			reset_code = excluded.reset_code,
			expires_at = excluded.expires_at,
			used = 0,
			created_at = excluded.created_at`,
		reset.Email, reset.Code, reset.ExpiresAt.UTC(), createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storing reset code for %s: %w", reset.Email, err)
	}
	return nil
}

// ConsumePasswordReset checks a reset code and, in one transaction, sets
// the new password hash and marks the code used.
func (s *SQLiteStore) ConsumePasswordReset(
	ctx context.Context,
	email, code, newHash string,
	now time.Time,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var row struct {
		Code      string    `db:"reset_code"`
		ExpiresAt time.Time `db:"expires_at"`
		Used      int       `db:"used"`
	}
	err = tx.GetContext(ctx, &row,
		"SELECT reset_code, expires_at, used FROM password_resets WHERE email = ?", email)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrResetNotFound
	}
	if err != nil {
		return fmt.Errorf("reading reset code for %s: %w", email, err)
	}
	if row.Used != 0 || !now.Before(row.ExpiresAt) {
		return ErrResetNotFound
	}
	if row.Code != code {
		return ErrResetCodeMismatch
	}

	result, err := tx.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE email = ?", newHash, email)
	if err != nil {
		return fmt.Errorf("resetting password for %s: %w", email, err)
	}
	if err := expectRow(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE password_resets SET used = 1 WHERE email = ?", email); err != nil {
		return fmt.Errorf("marking reset code used for %s: %w", email, err)
	}

	return tx.Commit()
}

func expectRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
