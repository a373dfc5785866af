/*
Package credential stores and checks account passwords.

Two modes exist. Plain keeps the secret as given and compares in constant time; it
matches the behavior older clients were tested against. Bcrypt stores a hash and is
the default for deployments.
*/
package credential

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrMismatch is returned by Verify when the secret does not match.
	ErrMismatch = errors.New("credential mismatch")

	// ErrTooLong is returned by Hash when the secret exceeds what the mode can store.
	ErrTooLong = errors.New("credential too long")
)

const (
	ModePlain  = "plain"
	ModeBcrypt = "bcrypt"

	// MaxBcryptBytes is the longest secret bcrypt accepts.
	MaxBcryptBytes = 72
)

// Hasher turns a secret into its stored form and checks secrets against it.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(stored, secret string) error
}

// New returns the Hasher for mode.
func New(mode string) (Hasher, error) {
	switch mode {
	case ModePlain:
		return Plain{}, nil
	case ModeBcrypt, "":
		return Bcrypt{Cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unknown credential mode %q", mode)
	}
}

// Plain stores secrets verbatim. Any length is accepted.
type Plain struct{}

func (Plain) Hash(secret string) (string, error) { return secret, nil }

func (Plain) Verify(stored, secret string) error {
	if subtle.ConstantTimeCompare([]byte(stored), []byte(secret)) != 1 {
		return ErrMismatch
	}
	return nil
}

// Bcrypt stores bcrypt hashes.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(secret string) (string, error) {
	if len(secret) > MaxBcryptBytes {
		return "", ErrTooLong
	}
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(hashed), nil
}

func (Bcrypt) Verify(stored, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return err
}
