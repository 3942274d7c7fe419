package model

import "time"

// Account is the server-side record of a user, including secrets that
// never leave the server.
type Account struct {
	User

	PasswordHash  string
	EmailVerified bool

	// VerificationToken and VerificationCode are cleared once the e-mail
	// address is confirmed.
	VerificationToken string
	VerificationCode  string

	CreatedAt time.Time
}

// PasswordReset is a one-time code that allows setting a new password.
type PasswordReset struct {
	Email     string
	Code      string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}
