package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager() *Manager {
	return &Manager{
		Secret:     []byte("test-secret"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Issuer:     "workflow-backend",
	}
}

func TestTokenKinds(t *testing.T) {
	m := newManager()

	access, err := m.NewAccessToken("user-1", RoleAdmin)
	require.NoError(t, err)
	refresh, err := m.NewRefreshToken("user-1", RoleAdmin)
	require.NoError(t, err)

	claims, err := m.ParseAccess(access)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "user-1", claims.Subject)

	_, err = m.ParseAccess(refresh)
	assert.ErrorIs(t, err, ErrWrongTokenKind)

	_, err = m.ParseRefresh(refresh)
	assert.NoError(t, err)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	m := newManager()
	token, err := m.NewAccessToken("user-1", RoleAdmin)
	require.NoError(t, err)

	other := newManager()
	other.Secret = []byte("another-secret")
	_, err = other.Parse(token)
	assert.Error(t, err)

	otherIssuer := newManager()
	otherIssuer.Issuer = "someone-else"
	_, err = otherIssuer.Parse(token)
	assert.Error(t, err)

	expired := newManager()
	expired.AccessTTL = -time.Minute
	stale, err := expired.NewAccessToken("user-1", RoleAdmin)
	require.NoError(t, err)
	_, err = m.Parse(stale)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3nha-forte")
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "s3nha-forte"))
	assert.Error(t, ComparePassword(hash, "errada"))

	assert.ErrorIs(t, ComparePassword(hash, "errada"), ErrPasswordMismatch)

	_, err = HashPassword("")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
	_, err = HashPassword("curta")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
	_, err = HashPassword(strings.Repeat("a", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	assert.ErrorIs(t, ComparePassword("", "x"), ErrPasswordMismatch)
}
