package auth

import (
	"time"

	"relaychat/server/internal/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer   = "relaychat-auth"
	tokenType     = "JWT"
	tokenValidity = 120 * time.Hour
	clockSkew     = 60 * time.Second
)

// Claims is the payload of a minted bearer token.
type Claims struct {
	Username string `json:"username"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies the bearer tokens returned by login,
// checked by /verify-token, and optionally required by the messaging
// broker's handshake.
type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// Mint issues a token bound to username, valid for 120 hours.
func (s *TokenService) Mint(username string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		Type:     tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenValidity)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrStoreFailure)
	}

	return signed, nil
}

// Verify checks a token's signature, issuer, type and expiry (allowing a
// 60-second clock skew) and returns the bound username.
func (s *TokenService) Verify(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New(errors.ErrAuthFailure, "unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithLeeway(clockSkew), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return "", errors.New(errors.ErrAuthFailure, "invalid or expired token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Type != tokenType || claims.Username == "" {
		return "", errors.New(errors.ErrAuthFailure, "invalid token claims")
	}

	return claims.Username, nil
}
