package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is bcrypt's input limit. Longer passwords would be
// silently truncated, so Hash refuses them.
const MaxPasswordBytes = 72

var (
	ErrPasswordMismatch = errors.New("auth: invalid password")
	ErrPasswordTooLong  = fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
)

// PasswordService hashes and checks account passwords with bcrypt.
//
// The stored form is bcrypt's self-describing string ($2a$<cost>$<salt+hash>),
// kept as-is in users.password_hash. An empty stored hash marks an account
// that has no password (GitHub sign-in only).
type PasswordService struct {
	cost int

	// decoy is hashed once and compared against when there is no real
	// hash to check, so every failed login costs one bcrypt comparison.
	decoyOnce sync.Once
	decoy     []byte
}

// NewPasswordServiceWithCost clamps cost into bcrypt's accepted range.
// Production uses auth.password_cost (12 by default); tests pass bcrypt.MinCost.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	cost = max(bcrypt.MinCost, min(cost, bcrypt.MaxCost))
	return &PasswordService{cost: cost}
}

func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash.
//
// An empty hash (unknown user, or an account without a password) never
// matches, but still spends the time of a real comparison so response
// latency does not reveal which usernames exist.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if hash == "" {
		p.decoyOnce.Do(func() {
			p.decoy, _ = bcrypt.GenerateFromPassword([]byte("decoy password"), p.cost)
		})
		_ = bcrypt.CompareHashAndPassword(p.decoy, []byte(plaintext))
		return ErrPasswordMismatch
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
}
