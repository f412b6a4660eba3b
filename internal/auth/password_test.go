package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHashPassword_RoundTrip checks that a password verifies against its
// own hash, and a different password does not.
func TestHashPassword_RoundTrip(t *testing.T) {
	encoded, err := HashPassword("correct-horse", "pepper-value")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("correct-horse", "pepper-value", encoded))
	assert.False(t, CheckPasswordHash("wrong-horse", "pepper-value", encoded))
}

// TestHashPassword_WrongPepperFails checks that verification uses the
// current pepper: a stale or mismatched pepper must fail to verify even
// with the right password.
func TestHashPassword_WrongPepperFails(t *testing.T) {
	encoded, err := HashPassword("correct-horse", "pepper-value")
	require.NoError(t, err)

	assert.False(t, CheckPasswordHash("correct-horse", "different-pepper", encoded))
}

// TestHashPassword_DistinctSalts ensures two hashes of the same password
// never collide, since each call draws a fresh random salt.
func TestHashPassword_DistinctSalts(t *testing.T) {
	first, err := HashPassword("correct-horse", "pepper-value")
	require.NoError(t, err)
	second, err := HashPassword("correct-horse", "pepper-value")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, CheckPasswordHash("correct-horse", "pepper-value", first))
	assert.True(t, CheckPasswordHash("correct-horse", "pepper-value", second))
}

func TestCheckPasswordHash_MalformedEncodingRejected(t *testing.T) {
	assert.False(t, CheckPasswordHash("correct-horse", "pepper-value", "not-a-valid-hash"))
	assert.False(t, CheckPasswordHash("correct-horse", "pepper-value", "bcrypt$10$abc"))
}
