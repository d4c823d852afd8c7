// Package auth issues and verifies the HS256 JWTs that identify assistant
// callers.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMalformedToken is returned for tokens that do not parse or carry
	// an unusable subject.
	ErrMalformedToken = errors.New("malformed token")
	// ErrBadSignature is returned when the signature does not match.
	ErrBadSignature = errors.New("invalid token signature")
	// ErrExpired is returned for tokens past their expiry.
	ErrExpired = errors.New("token expired")
)

// Issuer is written to and required in the iss claim.
const Issuer = "commerce-assistant"

// Claims identify a caller.
type Claims struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// Signer issues and verifies tokens whose subject is the caller's user id.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a signer for secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// Sign issues a token for userID valid for ttl.
func (s *Signer) Sign(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks the signature, issuer and expiry of token.
func (s *Signer) Verify(token string) (*Claims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &rc, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrBadSignature
	default:
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	userID, err := uuid.Parse(rc.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject: %v", ErrMalformedToken, err)
	}
	return &Claims{UserID: userID, ExpiresAt: rc.ExpiresAt.Time}, nil
}
