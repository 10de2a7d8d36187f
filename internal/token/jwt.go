// Package token issues and validates the credential material used by the
// API: bcrypt password hashes and the HS256-signed access/refresh token pair.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors let callers distinguish a token the client can refresh
// past (expired) from one it cannot (bad signature, wrong shape).
var (
	ErrExpired = errors.New("token expired")
	ErrInvalid = errors.New("invalid token")
)

// Pair bundles a freshly issued access and refresh token with their
// expiry times.
type Pair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// NewPair issues an access token and a refresh token for a user, both
// signed with the shared secret. The refresh token carries a typ claim so
// it can never be replayed as an access token.
func NewPair(secret string, userID uint64, accessTTL, refreshTTL time.Duration) (Pair, error) {
	now := time.Now().UTC()
	accessExp := now.Add(accessTTL)
	refreshExp := now.Add(refreshTTL)

	access, err := sign(secret, jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": accessExp.Unix(),
	})
	if err != nil {
		return Pair{}, err
	}
	refresh, err := sign(secret, jwt.MapClaims{
		"sub": userID,
		"typ": "refresh",
		"iat": now.Unix(),
		"exp": refreshExp.Unix(),
	})
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ParseAccess verifies an access token and returns the subject user ID.
// Expired tokens return ErrExpired; anything else wrong returns ErrInvalid.
// Refresh tokens are rejected here so they cannot authenticate requests.
func ParseAccess(secret, raw string) (uint64, error) {
	claims, err := parse(secret, raw)
	if err != nil {
		return 0, err
	}
	if typ, _ := claims["typ"].(string); typ == "refresh" {
		return 0, ErrInvalid
	}
	return subject(claims)
}

// ParseRefresh verifies a refresh token: same signature/expiry rules as
// ParseAccess plus a required typ claim of "refresh".
func ParseRefresh(secret, raw string) (uint64, error) {
	claims, err := parse(secret, raw)
	if err != nil {
		return 0, err
	}
	if typ, _ := claims["typ"].(string); typ != "refresh" {
		return 0, ErrInvalid
	}
	return subject(claims)
}

// HashRaw returns the SHA-256 hash of a token as a hex string. Only hashes
// are persisted, so stolen session rows cannot be replayed.
func HashRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func sign(secret string, claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

func parse(secret, raw string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, ErrInvalid
	}
	return claims, nil
}

func subject(claims jwt.MapClaims) (uint64, error) {
	// JWT numeric claims decode as float64.
	sub, ok := claims["sub"].(float64)
	if !ok || sub <= 0 {
		return 0, ErrInvalid
	}
	return uint64(sub), nil
}
