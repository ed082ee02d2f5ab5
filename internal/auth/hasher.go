package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is used when HasherConfig.Cost is zero.
const DefaultBcryptCost = 12

// ErrPasswordTooLong is returned by Hash for inputs bcrypt cannot represent.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// HasherConfig is fixed at process start.
type HasherConfig struct {
	Cost int
	// MaxConcurrent bounds simultaneous hash/verify operations. Zero means 4.
	MaxConcurrent int
}

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	// Verify reports whether plaintext matches hash. Malformed hashes and
	// cancelled contexts report false.
	Verify(ctx context.Context, plaintext, hash string) bool
}

type bcryptHasher struct {
	cost int
	sem  chan struct{}
}

func NewHasher(cfg HasherConfig) (Hasher, error) {
	if cfg.Cost == 0 {
		cfg.Cost = DefaultBcryptCost
	}
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &bcryptHasher{
		cost: cfg.Cost,
		sem:  make(chan struct{}, cfg.MaxConcurrent),
	}, nil
}

func (h *bcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release()

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h *bcryptHasher) Verify(ctx context.Context, plaintext, hash string) bool {
	if err := h.acquire(ctx); err != nil {
		return false
	}
	defer h.release()

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

func (h *bcryptHasher) acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case h.sem <- struct{}{}:
		return nil
	}
}

func (h *bcryptHasher) release() {
	<-h.sem
}
