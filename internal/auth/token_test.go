package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khata-app/khata/internal/shared"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, claims, err := m.Generate(&User{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)

	parsed, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", parsed.UserID)
	assert.Equal(t, "a@example.com", parsed.Email)
	assert.Equal(t, claims.ID, parsed.ID)
}

func TestJWTExpired(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	token, _, err := m.Generate(&User{ID: "u1"})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestJWTUniqueIDs(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	_, a, err := m.Generate(&User{ID: "u1"})
	require.NoError(t, err)
	_, b, err := m.Generate(&User{ID: "u1"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}
