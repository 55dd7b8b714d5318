package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-entropy"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestTokens(t *testing.T, clock *fakeClock) *TokenService {
	t.Helper()
	s, err := NewTokenService(testSecret, "HS256", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	return s
}

func testIdentity() Identity {
	return Identity{
		Subject:  uuid.New(),
		TenantID: uuid.New(),
		Email:    "ada@example.com",
		Role:     "ADMIN",
	}
}

func TestTokenRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestTokens(t, clock)
	id := testIdentity()

	tok, exp, err := s.Issue(id)
	require.NoError(t, err)
	require.Equal(t, clock.t.Add(time.Hour), exp)

	got, err := s.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, id, *got)
}

func TestTokenExpired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestTokens(t, clock)

	tok, _, err := s.Issue(testIdentity())
	require.NoError(t, err)

	clock.t = clock.t.Add(time.Hour + time.Second)
	_, err = s.Verify(tok)
	require.True(t, IsTokenError(err, TokenExpired), "got %v", err)
}

func TestTokenAnyEditIsBadSignature(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	s := newTestTokens(t, clock)

	tok, _, err := s.Issue(testIdentity())
	require.NoError(t, err)

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	for i := 0; i < len(tok); i++ {
		if tok[i] == '.' {
			continue
		}
		for _, c := range []byte(alphabet) {
			if c == tok[i] {
				continue
			}
			edited := tok[:i] + string(c) + tok[i+1:]
			_, err := s.Verify(edited)
			if !IsTokenError(err, TokenBadSignature) {
				t.Fatalf("pos %d %q->%q: got %v", i, tok[i], c, err)
			}
		}
	}
}

func TestTokenWrongSecret(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	s := newTestTokens(t, clock)
	other, err := NewTokenService("another-secret", "HS256", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)

	tok, _, err := other.Issue(testIdentity())
	require.NoError(t, err)

	_, err = s.Verify(tok)
	require.True(t, IsTokenError(err, TokenBadSignature), "got %v", err)
}

func TestTokenRejectsOtherAlgorithm(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	s := newTestTokens(t, clock)
	hs512, err := NewTokenService(testSecret, "HS512", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)

	tok, _, err := hs512.Issue(testIdentity())
	require.NoError(t, err)

	_, err = s.Verify(tok)
	require.True(t, IsTokenError(err, TokenBadSignature), "got %v", err)
}

func TestTokenMalformed(t *testing.T) {
	s := newTestTokens(t, &fakeClock{t: time.Now()})

	for _, tok := range []string{"", "garbage", "a.b.c", "eyJhbGciOiJIUzI1NiJ9..."} {
		_, err := s.Verify(tok)
		require.True(t, IsTokenError(err, TokenMalformed), "%q: got %v", tok, err)
	}
}

func TestTokenNonUUIDSubject(t *testing.T) {
	now := time.Now()
	s := newTestTokens(t, &fakeClock{t: now})

	claims := Claims{
		TenantID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = s.Verify(tok)
	require.True(t, IsTokenError(err, TokenMalformed), "got %v", err)
}

func TestTokenMissingExpiry(t *testing.T) {
	s := newTestTokens(t, &fakeClock{t: time.Now()})

	claims := Claims{
		TenantID:         uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = s.Verify(tok)
	require.Error(t, err)
	require.False(t, IsTokenError(err, TokenBadSignature))
}

func TestNewTokenService(t *testing.T) {
	_, err := NewTokenService("", "HS256", time.Hour)
	require.Error(t, err)

	_, err = NewTokenService(testSecret, "RS256", time.Hour)
	require.Error(t, err)

	s, err := NewTokenService(testSecret, "", 0)
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, s.TTL())
}
