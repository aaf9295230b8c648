package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 2, 7)

	tokenString, err := manager.GenerateToken(42, "user@example.com", "USER")
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := manager.VerifyToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "USER", claims.Role)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	manager := NewJWTManager("test-secret", 2, 7)
	other := NewJWTManager("other-secret", 2, 7)

	tokenString, err := manager.GenerateToken(1, "user@example.com", "USER")
	require.NoError(t, err)

	_, err = other.VerifyToken(tokenString)
	assert.Error(t, err)
}

func TestVerifyExpiredToken(t *testing.T) {
	// 负的有效期直接签出已过期的 token
	manager := NewJWTManager("test-secret", -1, 7)

	tokenString, err := manager.GenerateToken(1, "user@example.com", "USER")
	require.NoError(t, err)

	_, err = manager.VerifyToken(tokenString)
	assert.Error(t, err)
}

func TestVerifyGarbageToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 2, 7)
	_, err := manager.VerifyToken("not-a-jwt")
	assert.Error(t, err)
}
