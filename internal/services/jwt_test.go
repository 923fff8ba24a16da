package services

import (
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentverse-backend/internal/models"
)

func TestJWT_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", 24, "rentverse-backend")
	userID := uuid.New()

	token, err := svc.Generate(userID, models.RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "rentverse-backend", claims.Issuer)
}

func TestJWT_Expired(t *testing.T) {
	clock := newTestClock()
	svc := NewJWTService("test-secret", 24, "rentverse-backend")
	svc.now = clock.Now

	token, err := svc.Generate(uuid.New(), models.RoleUser)
	require.NoError(t, err)

	clock.Advance(23 * time.Hour)
	_, err = svc.Validate(token)
	assert.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestJWT_WrongSecret(t *testing.T) {
	token, err := NewJWTService("one", 24, "rentverse-backend").Generate(uuid.New(), models.RoleUser)
	require.NoError(t, err)

	_, err = NewJWTService("two", 24, "rentverse-backend").Validate(token)
	assert.Error(t, err)

	_, err = NewJWTService("one", 24, "rentverse-backend").Validate("not.a.token")
	assert.Error(t, err)
}

func TestNumericCode(t *testing.T) {
	gen := NumericCode(6)
	for i := 0; i < 500; i++ {
		code, err := gen()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestPasswordHasher(t *testing.T) {
	h := &PasswordHasher{cost: 4}

	_, err := h.Hash("abc")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	hash, err := h.Hash("hunter22")
	require.NoError(t, err)
	assert.True(t, h.Matches("hunter22", hash))
	assert.False(t, h.Matches("hunter23", hash))
}
