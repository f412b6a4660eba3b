// Package validation holds the input checks used by the auth HTTP
// gateway's handlers (usernames, passwords, search queries) and by the
// messaging broker's send path (message bodies).
package validation

import (
	"strings"

	"relaychat/server/internal/errors"
)

const (
	maxUsernameLen = 255
	maxPasswordLen = 256
	minSearchLen   = 2
	maxMessageLen  = 4096
)

// ValidateUsername requires 1-255 characters.
func ValidateUsername(username string) error {
	if len(username) == 0 {
		return errors.New(errors.ErrBadRequest, "username is required")
	}
	if len(username) > maxUsernameLen {
		return errors.New(errors.ErrBadRequest, "username exceeds maximum length")
	}
	return nil
}

// ValidatePassword requires a non-empty password within a sane bound, so
// the stored hash is never empty for a persisted user.
func ValidatePassword(password string) error {
	if len(password) == 0 {
		return errors.New(errors.ErrBadRequest, "password is required")
	}
	if len(password) > maxPasswordLen {
		return errors.New(errors.ErrBadRequest, "password exceeds maximum length")
	}
	return nil
}

// ValidateSearchQuery enforces the HTTP surface's "q length >= 2" rule.
func ValidateSearchQuery(query string) error {
	if len(strings.TrimSpace(query)) < minSearchLen {
		return errors.New(errors.ErrBadRequest, "query must be at least 2 characters")
	}
	return nil
}

// ValidateMessageBody enforces the Message Log's body size ceiling.
func ValidateMessageBody(body string) error {
	if len(body) > maxMessageLen {
		return errors.New(errors.ErrBadRequest, "message body exceeds maximum length")
	}
	return nil
}

// SanitizeString trims surrounding whitespace and strips control
// characters other than tab/newline/carriage-return.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, input)
}
