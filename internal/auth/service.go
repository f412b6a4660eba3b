package auth

import (
	"strings"

	"relaychat/server/internal/database"
	"relaychat/server/internal/errors"
	"relaychat/server/internal/models"
)

// Service wires the Credential Store (database) and Token Service together
// behind the operations the auth HTTP gateway needs.
type Service struct {
	db     *database.DB
	tokens *TokenService
	pepper string
}

func NewService(db *database.DB, tokens *TokenService, pepper string) *Service {
	return &Service{db: db, tokens: tokens, pepper: pepper}
}

// Signup creates a new user, rejecting an already-registered username.
func (s *Service) Signup(username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)

	passwordHash, err := HashPassword(password, s.pepper)
	if err != nil {
		return nil, err
	}

	return s.db.CreateUser(username, passwordHash)
}

// Exists reports whether username is already registered.
func (s *Service) Exists(username string) (bool, error) {
	return s.db.UserExists(strings.TrimSpace(username))
}

// Login verifies credentials and mints a bearer token.
func (s *Service) Login(username, password string) (string, error) {
	username = strings.TrimSpace(username)

	passwordHash, err := s.db.GetUserPasswordHash(username)
	if err != nil {
		return "", err
	}

	if !CheckPasswordHash(password, s.pepper, passwordHash) {
		return "", errors.New(errors.ErrAuthFailure, "invalid credentials")
	}

	return s.tokens.Mint(username)
}

// VerifyToken validates a bearer token and returns its bound username.
func (s *Service) VerifyToken(token string) (string, error) {
	return s.tokens.Verify(token)
}

// Search proxies to the Credential Store's search operation.
func (s *Service) Search(query string) ([]string, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return nil, errors.New(errors.ErrBadRequest, "query must be at least 2 characters")
	}
	return s.db.SearchUsers(query)
}

// StorePublicKey stores a user's public key, provided as a decoded blob.
func (s *Service) StorePublicKey(username string, publicKey []byte) error {
	return s.db.StorePublicKey(username, publicKey)
}

// FetchPublicKey returns a user's stored public key.
func (s *Service) FetchPublicKey(username string) ([]byte, error) {
	return s.db.GetPublicKey(username)
}

// ExtractBearerToken extracts the token from an Authorization header.
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New(errors.ErrAuthFailure, "missing authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New(errors.ErrAuthFailure, "invalid authorization header format")
	}

	return parts[1], nil
}
