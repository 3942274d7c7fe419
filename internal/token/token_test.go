package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := New(42, "alice", now, 30*24*time.Hour)

	tok, err := Encode(c)
	require.NoError(t, err)

	got, err := Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Equal(t, now.Add(30*24*time.Hour).Unix(), got.ExpiresAt().Unix())
}

func TestTokenIsPlainBase64JSON(t *testing.T) {
	tok, err := Encode(Claims{UserID: 7, Username: "bob", Exp: 100})
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":7,"username":"bob","exp":100}`, string(raw))
}

func TestDecodeAcceptsUnpadded(t *testing.T) {
	raw := base64.RawStdEncoding.EncodeToString([]byte(`{"user_id":3,"exp":99}`))
	c, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.UserID)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, tok := range []string{"", "!!!", base64.StdEncoding.EncodeToString([]byte("not json")), base64.StdEncoding.EncodeToString([]byte(`{"exp":1}`))} {
		_, err := Decode(tok)
		assert.ErrorIs(t, err, ErrMalformed, "token %q", tok)
	}
}

func TestExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	assert.False(t, Claims{Exp: 1000}.Expired(now))
	assert.True(t, Claims{Exp: 999}.Expired(now))
}
