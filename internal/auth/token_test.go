package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, s *Signer, user uuid.UUID, ttl time.Duration) string {
	t.Helper()
	token, err := s.Sign(user, ttl)
	require.NoError(t, err)
	return token
}

func TestSigner_RoundTrip(t *testing.T) {
	s := NewSigner("s3cret")
	user := uuid.New()

	claims, err := s.Verify(sign(t, s, user, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, user, claims.UserID)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestSigner_IssuesRegisteredClaims(t *testing.T) {
	s := NewSigner("s3cret")
	user := uuid.New()

	var rc jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(sign(t, s, user, time.Hour), &rc)
	require.NoError(t, err)
	assert.Equal(t, user.String(), rc.Subject)
	assert.Equal(t, Issuer, rc.Issuer)
	require.NotNil(t, rc.ExpiresAt)
}

func TestSigner_Rejects(t *testing.T) {
	s := NewSigner("s3cret")
	user := uuid.New()
	token := sign(t, s, user, time.Hour)

	forge := func(method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
		signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return signed
	}
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	badSignature := map[string]string{
		"other secret":    sign(t, NewSigner("other"), user, time.Hour),
		"none algorithm":  forge(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.RegisteredClaims{Issuer: Issuer, Subject: user.String(), ExpiresAt: exp}),
		"other algorithm": forge(jwt.SigningMethodHS512, []byte("s3cret"), jwt.RegisteredClaims{Issuer: Issuer, Subject: user.String(), ExpiresAt: exp}),
	}
	for name, bad := range badSignature {
		t.Run(name, func(t *testing.T) {
			_, err := s.Verify(bad)
			assert.ErrorIs(t, err, ErrBadSignature)
		})
	}

	malformed := map[string]string{
		"empty":        "",
		"garbage":      "abc",
		"truncated":    token[:len(token)/2],
		"wrong issuer": forge(jwt.SigningMethodHS256, []byte("s3cret"), jwt.RegisteredClaims{Issuer: "elsewhere", Subject: user.String(), ExpiresAt: exp}),
		"no expiry":    forge(jwt.SigningMethodHS256, []byte("s3cret"), jwt.RegisteredClaims{Issuer: Issuer, Subject: user.String()}),
		"bad subject":  forge(jwt.SigningMethodHS256, []byte("s3cret"), jwt.RegisteredClaims{Issuer: Issuer, Subject: "priya", ExpiresAt: exp}),
	}
	for name, bad := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := s.Verify(bad)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestSigner_Expiry(t *testing.T) {
	s := NewSigner("s3cret")
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	token := sign(t, s, uuid.New(), time.Minute)

	s.now = func() time.Time { return issued.Add(30 * time.Second) }
	_, err := s.Verify(token)
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrExpired)
}
