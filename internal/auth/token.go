package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenErrorKind classifies why a token was rejected.
type TokenErrorKind string

const (
	TokenMalformed    TokenErrorKind = "malformed"
	TokenBadSignature TokenErrorKind = "bad_signature"
	TokenExpired      TokenErrorKind = "expired"
)

type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return "token " + string(e.Kind)
	}
	return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// IsTokenError reports whether err is a *TokenError of the given kind.
func IsTokenError(err error, kind TokenErrorKind) bool {
	var te *TokenError
	return errors.As(err, &te) && te.Kind == kind
}

// Identity is the claim set carried by an access token.
type Identity struct {
	Subject  uuid.UUID
	TenantID uuid.UUID
	Email    string
	Role     string
}

type Claims struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access tokens with one process-wide
// HMAC secret. There are no key ids: rotating the secret invalidates
// every outstanding token.
type TokenService struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	now    func() time.Time
}

type TokenOption func(*TokenService)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(secret, algorithm string, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	s := &TokenService{
		secret: []byte(secret),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs id and returns the token with its expiry.
func (s *TokenService) Issue(id Identity) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		TenantID: id.TenantID.String(),
		Email:    id.Email,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature and expiry and returns the embedded identity.
// All failures are *TokenError. The HMAC over header.payload is checked
// before anything is decoded, so an edit to any segment of a well-formed
// token reports bad_signature.
func (s *TokenService) Verify(token string) (*Identity, error) {
	if err := s.checkSignature(token); err != nil {
		return nil, err
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return nil, classify(err)
	}

	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, &TokenError{Kind: TokenMalformed, Err: fmt.Errorf("subject: %w", err)}
	}
	tid, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return nil, &TokenError{Kind: TokenMalformed, Err: fmt.Errorf("tenant_id: %w", err)}
	}

	return &Identity{Subject: sub, TenantID: tid, Email: claims.Email, Role: claims.Role}, nil
}

// minSignatureLen is the encoded length of the shortest HMAC (SHA-256).
const minSignatureLen = 43

func (s *TokenService) checkSignature(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || len(parts[2]) < minSignatureLen {
		return &TokenError{Kind: TokenMalformed, Err: errors.New("not a compact JWS")}
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return &TokenError{Kind: TokenMalformed, Err: fmt.Errorf("signature encoding: %w", err)}
	}
	// Non-canonical trailing bits decode to the same bytes; reject them.
	if base64.RawURLEncoding.EncodeToString(sig) != parts[2] {
		return &TokenError{Kind: TokenBadSignature, Err: jwt.ErrTokenSignatureInvalid}
	}
	if err := s.method.Verify(parts[0]+"."+parts[1], sig, s.secret); err != nil {
		return &TokenError{Kind: TokenBadSignature, Err: err}
	}
	return nil
}

func classify(err error) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: TokenExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &TokenError{Kind: TokenBadSignature, Err: err}
	default:
		return &TokenError{Kind: TokenMalformed, Err: err}
	}
}
