package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"taskflow/internal/apperrors"
	"taskflow/internal/domain"
	"taskflow/internal/repository"
)

// Internal causes of an authentication failure. They are wrapped inside an
// UNAUTHENTICATED error so logs can tell them apart while clients cannot.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserInactive     = errors.New("user inactive")
	ErrPasswordMismatch = errors.New("password mismatch")
)

// MsgInvalidCredentials is returned for any unusable token.
const MsgInvalidCredentials = "Could not validate credentials"

// Resolver maps an inbound access token to the actor it identifies.
type Resolver interface {
	Resolve(ctx context.Context, token string) (domain.Actor, error)
}

type resolver struct {
	tokens TokenCodec
	users  repository.UserRepository
	logger *logrus.Logger
}

func NewResolver(tokens TokenCodec, users repository.UserRepository, logger *logrus.Logger) Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &resolver{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

// Resolve looks the user up on every call; nothing is cached between requests.
func (r *resolver) Resolve(ctx context.Context, token string) (domain.Actor, error) {
	subjectID, err := r.tokens.Verify(token)
	if err != nil {
		r.reject("token_invalid", 0, err)
		return domain.Actor{}, apperrors.Wrap(apperrors.CodeUnauthenticated, MsgInvalidCredentials, err)
	}

	user, err := r.users.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.reject("token_user_missing", subjectID, ErrUserNotFound)
			return domain.Actor{}, apperrors.Wrap(apperrors.CodeUnauthenticated, MsgInvalidCredentials, ErrUserNotFound)
		}
		return domain.Actor{}, fmt.Errorf("load token subject: %w", err)
	}
	if !user.IsActive {
		r.reject("user_inactive", subjectID, ErrUserInactive)
		return domain.Actor{}, apperrors.Wrap(apperrors.CodeUnauthenticated, MsgInvalidCredentials, ErrUserInactive)
	}

	return user.Actor(), nil
}

func (r *resolver) reject(reason string, subjectID int64, err error) {
	r.logger.WithFields(logrus.Fields{
		"reason":  reason,
		"subject": subjectID,
	}).Warnf("token rejected: %v", err)
}
