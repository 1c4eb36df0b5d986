package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	h, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", h)
	require.True(t, strings.HasPrefix(h, "$2a$10$"), "unexpected hash format %q", h)

	require.NoError(t, CheckPassword(h, "hunter2"))
	require.ErrorIs(t, CheckPassword(h, "hunter3"), ErrWrongPassword)
}

func TestHashPasswordEmpty(t *testing.T) {
	_, err := HashPassword("")
	require.Error(t, err)
}

func TestCheckPasswordMalformedHash(t *testing.T) {
	err := CheckPassword("not-a-hash", "pw")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrWrongPassword)
}

func TestTokenRoundTrip(t *testing.T) {
	ti, err := NewTokenIssuer("secretkey", 0)
	require.NoError(t, err)
	require.Equal(t, DefaultTokenTTL, ti.TTL())

	raw, err := ti.Issue("u_1", "Alice", "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(raw, "."))

	c, err := ti.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "u_1", c.UserID)
	require.Equal(t, "Alice", c.Name)
	require.Equal(t, "alice@example.com", c.Email)
	require.WithinDuration(t, c.IssuedAt.Add(DefaultTokenTTL), c.ExpiresAt, time.Second)
}

func TestTokenWrongSecret(t *testing.T) {
	a, _ := NewTokenIssuer("one", time.Hour)
	b, _ := NewTokenIssuer("two", time.Hour)

	raw, err := a.Issue("u_1", "A", "a@test.com")
	require.NoError(t, err)

	_, err = b.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	ti, _ := NewTokenIssuer("s", time.Hour)
	base := time.Now()
	ti.now = func() time.Time { return base }

	raw, err := ti.Issue("u_1", "A", "a@test.com")
	require.NoError(t, err)

	ti.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = ti.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenGarbage(t *testing.T) {
	ti, _ := NewTokenIssuer("s", time.Hour)
	for _, raw := range []string{"", "abc", "a.b.c"} {
		_, err := ti.Verify(raw)
		require.ErrorIs(t, err, ErrInvalidToken, "token %q", raw)
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer("", time.Hour)
	require.Error(t, err)
}
