package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	h, err := HashPassword("secret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, "secret-pass"))
	assert.False(t, VerifyPassword(h, "other-pass"))
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("abc", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestHashPassword_BadCostFallsBack(t *testing.T) {
	h, err := HashPassword("secret-pass", 99)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(h))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
