package auth

import (
	"strings"
	"testing"

	"microblog/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.GeneratePasswordHash("pw123")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123", hash)

	assert.NoError(t, h.ComparePasswordHash([]byte(hash), "pw123"))
	assert.Error(t, h.ComparePasswordHash([]byte(hash), "pw1234"))
}

func TestPasswordHasher_IsSalted(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	first, err := h.GeneratePasswordHash("same")
	require.NoError(t, err)
	second, err := h.GeneratePasswordHash("same")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestPasswordHasher_UsesConfiguredCost(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost + 1)

	hash, err := h.GeneratePasswordHash("pw")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}

func TestNewPasswordHasher_OutOfRangeCost(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(0).Cost())
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(bcrypt.MaxCost+1).Cost())
}

func TestPasswordHasher_TooLong(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	_, err := h.GeneratePasswordHash(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, common.ErrPasswordTooLong)
	assert.ErrorIs(t, err, common.ErrValidation)
}
