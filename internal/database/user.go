package database

import (
	"database/sql"

	"relaychat/server/internal/errors"
	"relaychat/server/internal/models"
)

// CreateUser inserts a new user row. A duplicate username is reported as
// ErrConflict rather than a raw driver error.
func (db *DB) CreateUser(username, passwordHash string) (*models.User, error) {
	user := &models.User{Username: username, PasswordHash: passwordHash}

	query := `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING username, password_hash, created_at`

	err := db.QueryRow(query, username, passwordHash).Scan(&user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err.Error() == `pq: duplicate key value violates unique constraint "users_pkey"` {
			return nil, errors.New(errors.ErrConflict, "User Already Exist")
		}
		return nil, errors.Wrap(err, errors.ErrStoreFailure)
	}

	return user, nil
}

// GetUserPasswordHash retrieves the stored verifier for a username.
func (db *DB) GetUserPasswordHash(username string) (string, error) {
	var passwordHash string

	query := `SELECT password_hash FROM users WHERE username = $1`
	err := db.QueryRow(query, username).Scan(&passwordHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", errors.New(errors.ErrNotFound, "user not found")
		}
		return "", errors.Wrap(err, errors.ErrStoreFailure)
	}

	return passwordHash, nil
}

// UserExists reports whether username is registered.
func (db *DB) UserExists(username string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`

	err := db.QueryRow(query, username).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrStoreFailure)
	}

	return exists, nil
}

// SearchUsers returns up to 10 usernames containing query, case-insensitive,
// ordered ascending.
func (db *DB) SearchUsers(query string) ([]string, error) {
	sqlQuery := `
		SELECT username FROM users
		WHERE username ILIKE '%' || $1 || '%'
		ORDER BY username ASC
		LIMIT 10`

	rows, err := db.Query(sqlQuery, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreFailure)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, errors.Wrap(err, errors.ErrStoreFailure)
		}
		usernames = append(usernames, username)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreFailure)
	}

	return usernames, nil
}

// StorePublicKey attaches or replaces a user's public key.
func (db *DB) StorePublicKey(username string, publicKey []byte) error {
	query := `UPDATE users SET public_key = $2 WHERE username = $1`

	result, err := db.Exec(query, username, publicKey)
	if err != nil {
		return errors.Wrap(err, errors.ErrStoreFailure)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrStoreFailure)
	}
	if rowsAffected == 0 {
		return errors.New(errors.ErrNotFound, "user not found")
	}

	return nil
}

// GetPublicKey returns a user's stored public key, if any.
func (db *DB) GetPublicKey(username string) ([]byte, error) {
	var key []byte
	query := `SELECT public_key FROM users WHERE username = $1`

	err := db.QueryRow(query, username).Scan(&key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrNotFound, "user not found")
		}
		return nil, errors.Wrap(err, errors.ErrStoreFailure)
	}
	if key == nil {
		return nil, errors.New(errors.ErrNotFound, "public key not set")
	}

	return key, nil
}
