package model

import "time"

// SessionTTL is how long a session stays valid after login or revalidation.
const SessionTTL = 30 * 24 * time.Hour

// User is the public identity of an account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Session is an authenticated user's access: a bearer token bound to a user
// until Expiry.
type Session struct {
	Token  string    `json:"token"`
	User   User      `json:"user"`
	Expiry time.Time `json:"expiry"`
}

// Valid reports whether the session holds a credential and a user and has
// not expired at now.
func (s Session) Valid(now time.Time) bool {
	if s.Token == "" || s.User.ID == 0 {
		return false
	}
	return now.Before(s.Expiry)
}
