// Package password hashes and verifies user credentials.
//
// Passwords are pre-hashed with SHA-256 (lowercase hex, 64 bytes) before
// bcrypt so the primitive never sees more than its 72-byte input limit.
// Every hash in the system must be produced and checked through Hasher;
// a caller that skips Normalize writes hashes nothing else can verify.
package password

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordEmpty    = errors.New("password empty")
)

// Normalize maps any password to a fixed-length input for bcrypt.
func Normalize(password string) string {
	if password == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

type Hasher struct {
	cost      int
	minLength int

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher returns a Hasher using cost, clamped to bcrypt's bounds
// (0 selects bcrypt.DefaultCost). minLength counts runes.
func NewHasher(cost, minLength int) *Hasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	if minLength < 1 {
		minLength = 1
	}
	return &Hasher{cost: cost, minLength: minLength}
}

func (h *Hasher) Cost() int { return h.cost }

// Validate applies the password policy to a new password.
func (h *Hasher) Validate(password string) error {
	if password == "" {
		return ErrPasswordEmpty
	}
	if utf8.RuneCountInString(password) < h.minLength {
		return ErrPasswordTooShort
	}
	return nil
}

// Hash returns a bcrypt encoding ($2a$<cost>$<salt+digest>) of the
// normalized password.
func (h *Hasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(Normalize(password)), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(out), nil
}

// Verify reports whether password matches stored. Malformed hashes are
// a mismatch.
func (h *Hasher) Verify(password, stored string) bool {
	if stored == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(Normalize(password))) == nil
}

// VerifyNothing spends the same bcrypt work as a real Verify against a
// throwaway hash. Login calls it for unknown emails so response timing
// does not reveal whether an account exists.
func (h *Hasher) VerifyNothing(password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte(Normalize("unused-placeholder")), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(Normalize(password)))
}
