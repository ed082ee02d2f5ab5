package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the access token lifetime when TokenConfig.TTL is zero.
const DefaultTokenTTL = 30 * time.Minute

// ErrTokenInvalid is returned for tokens that are malformed, carry a bad
// signature, or have expired.
var ErrTokenInvalid = errors.New("token invalid")

// TokenConfig is fixed at process start; the secret is never rotated at runtime.
type TokenConfig struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
	Now       func() time.Time
}

// TokenCodec issues and verifies signed access tokens.
type TokenCodec interface {
	Issue(subjectID int64, ttl time.Duration) (string, error)
	// IssueDefault issues a token with the configured TTL.
	IssueDefault(subjectID int64) (string, error)
	Verify(token string) (int64, error)
	TTL() time.Duration
}

type accessClaims struct {
	jwt.RegisteredClaims
}

type jwtCodec struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenCodec(cfg TokenConfig) (TokenCodec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(strings.ToUpper(cfg.Algorithm)).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported token algorithm %q", cfg.Algorithm)
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.TTL < 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &jwtCodec{
		secret: secret,
		method: method,
		ttl:    cfg.TTL,
		now:    cfg.Now,
	}, nil
}

func (c *jwtCodec) TTL() time.Duration {
	return c.ttl
}

func (c *jwtCodec) IssueDefault(subjectID int64) (string, error) {
	return c.Issue(subjectID, c.ttl)
}

func (c *jwtCodec) Issue(subjectID int64, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}
	issuedAt := c.now().UTC()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (c *jwtCodec) Verify(token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, fmt.Errorf("%w: token is empty", ErrTokenInvalid)
	}

	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return 0, mapJWTError(err)
	}

	subjectID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || subjectID <= 0 {
		return 0, fmt.Errorf("%w: subject is invalid", ErrTokenInvalid)
	}
	return subjectID, nil
}

// mapJWTError keeps the reason for logs while collapsing every failure into
// ErrTokenInvalid.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: token is expired", ErrTokenInvalid)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: signature is invalid", ErrTokenInvalid)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: algorithm is invalid", ErrTokenInvalid)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: required claim missing", ErrTokenInvalid)
	default:
		return fmt.Errorf("%w: malformed token", ErrTokenInvalid)
	}
}
