package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTokenService_MintVerifyRoundTrip checks that a freshly minted token
// verifies to its own subject username.
func TestTokenService_MintVerifyRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret")

	token, err := svc.Mint("alice")
	require.NoError(t, err)

	username, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

// TestTokenService_Verify_WrongSecretFails ensures a token signed with a
// different key never verifies.
func TestTokenService_Verify_WrongSecretFails(t *testing.T) {
	svc := NewTokenService("test-secret")
	other := NewTokenService("other-secret")

	token, err := other.Mint("alice")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.Error(t, err)
}

func TestTokenService_Verify_MalformedTokenFails(t *testing.T) {
	svc := NewTokenService("test-secret")

	_, err := svc.Verify("not-a-jwt-at-all")
	assert.Error(t, err)
}

// TestTokenService_Verify_ExpiredTokenFails crafts a token whose exp is
// already well past the 60-second leeway the service grants, and expects
// verification to fail.
func TestTokenService_Verify_ExpiredTokenFails(t *testing.T) {
	svc := NewTokenService("test-secret")

	past := time.Now().Add(-(tokenValidity + 2*clockSkew))
	claims := Claims{
		Username: "alice",
		Type:     tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(tokenValidity)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secret)
	require.NoError(t, err)

	_, err = svc.Verify(signed)
	assert.Error(t, err)
}

// TestTokenService_Verify_WrongIssuerFails ensures the issuer claim must
// match exactly.
func TestTokenService_Verify_WrongIssuerFails(t *testing.T) {
	svc := NewTokenService("test-secret")

	now := time.Now()
	claims := Claims{
		Username: "alice",
		Type:     tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "some-other-issuer",
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenValidity)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secret)
	require.NoError(t, err)

	_, err = svc.Verify(signed)
	assert.Error(t, err)
}
