package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestNewPairAndParse(t *testing.T) {
	pair, err := NewPair(secret, 42, time.Hour, 24*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	uid, err := ParseAccess(secret, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)

	uid, err = ParseRefresh(secret, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
}

func TestParseAccessRejectsRefreshToken(t *testing.T) {
	pair, err := NewPair(secret, 1, time.Hour, time.Hour)
	require.NoError(t, err)

	_, err = ParseAccess(secret, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseRefreshRejectsAccessToken(t *testing.T) {
	pair, err := NewPair(secret, 1, time.Hour, time.Hour)
	require.NoError(t, err)

	_, err = ParseRefresh(secret, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseExpired(t *testing.T) {
	pair, err := NewPair(secret, 1, -time.Minute, -time.Minute)
	require.NoError(t, err)

	_, err = ParseAccess(secret, pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpired)
	_, err = ParseRefresh(secret, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestParseWrongSecret(t *testing.T) {
	pair, err := NewPair(secret, 1, time.Hour, time.Hour)
	require.NoError(t, err)

	_, err = ParseAccess("other-secret", pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseGarbage(t *testing.T) {
	_, err := ParseAccess(secret, "not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestHashRaw(t *testing.T) {
	h1 := HashRaw("token-a")
	h2 := HashRaw("token-a")
	h3 := HashRaw("token-b")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64) // sha256 hex
}

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse 1")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.True(t, VerifyPassword(hash, "correct horse 1"))
	assert.False(t, VerifyPassword(hash, "wrong horse 1"))
}
