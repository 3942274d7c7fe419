// Package token encodes and decodes the bearer credential shared by the
// client and the server: base64 of a JSON claim set. The token is not
// signed, so decoded claims must not be trusted beyond what the server
// confirms.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformed is returned for tokens that are not base64 JSON claims.
var ErrMalformed = errors.New("malformed token")

// Claims is the payload of a bearer token.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	// Exp is the expiry as Unix seconds.
	Exp int64 `json:"exp"`
}

// New returns claims for userID expiring ttl after now.
func New(userID int64, username string, now time.Time, ttl time.Duration) Claims {
	return Claims{UserID: userID, Username: username, Exp: now.Add(ttl).Unix()}
}

// ExpiresAt returns the expiry as a time.
func (c Claims) ExpiresAt() time.Time {
	return time.Unix(c.Exp, 0)
}

// Expired reports whether the claims have expired at now.
func (c Claims) Expired(now time.Time) bool {
	return now.Unix() > c.Exp
}

// Encode serializes claims into a token.
func Encode(c Claims) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshaling token claims: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode parses a token. It accepts padded and unpadded standard base64
// as well as the URL-safe alphabet.
func Decode(tok string) (Claims, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return Claims{}, ErrMalformed
	}

	var data []byte
	var err error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		data, err = enc.DecodeString(tok)
		if err == nil {
			break
		}
	}
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var c Claims
	if err := json.Unmarshal(data, &c); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if c.UserID == 0 || c.Exp == 0 {
		return Claims{}, fmt.Errorf("%w: missing user_id or exp", ErrMalformed)
	}
	return c, nil
}
