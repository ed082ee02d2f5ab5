package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"taskflow/internal/apperrors"
	"taskflow/internal/auth"
	"taskflow/internal/domain"
	"taskflow/internal/repository"
)

const (
	MsgEmailTaken         = "Email already registered"
	MsgUsernameTaken      = "Username already taken"
	MsgIncorrectLogin     = "Incorrect username or password"
	msgPasswordTooLong    = "password must be at most 72 bytes"
	dummyPasswordForTimer = "taskflow-dummy-password"

	minUsernameLen = 3
	maxUsernameLen = 50
)

// AuthService describes registration, login, and profile operations.
type AuthService interface {
	Register(ctx context.Context, input domain.RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, string, error)
	CurrentUser(ctx context.Context, actor domain.Actor) (*domain.User, error)
	UpdateProfile(ctx context.Context, actor domain.Actor, patch domain.ProfilePatch) (*domain.User, error)
}

type authService struct {
	users  repository.UserRepository
	hasher auth.Hasher
	tokens auth.TokenCodec
	logger *logrus.Logger

	// dummyHash is compared against for unknown usernames.
	dummyHash string
}

func NewAuthService(users repository.UserRepository, hasher auth.Hasher, tokens auth.TokenCodec, logger *logrus.Logger) (AuthService, error) {
	if logger == nil {
		logger = logrus.New()
	}
	dummyHash, err := hasher.Hash(context.Background(), dummyPasswordForTimer)
	if err != nil {
		return nil, fmt.Errorf("compute dummy hash: %w", err)
	}
	return &authService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		logger:    logger,
		dummyHash: dummyHash,
	}, nil
}

// Register checks email before username so callers can report the specific
// collision. The store's unique constraints back both checks.
func (s *authService) Register(ctx context.Context, input domain.RegisterInput) (*domain.User, error) {
	email := strings.TrimSpace(input.Email)
	username := strings.TrimSpace(input.Username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if email == "" {
		return nil, apperrors.Validation("email is required")
	}

	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, apperrors.Conflict("username", MsgUsernameTaken)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}

	hash, err := s.hashPassword(ctx, input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		Username:     username,
		FullName:     input.FullName,
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  false,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, conflictFromStore(err, "create user")
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	return sanitizeUser(user), nil
}

// Authenticate looks users up by username only. Every failure carries the same
// message; the wrapped cause records which check failed.
func (s *authService) Authenticate(ctx context.Context, username, password string) (*domain.User, string, error) {
	username = strings.TrimSpace(username)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, "", fmt.Errorf("load user: %w", err)
		}
		// burn one comparison so unknown usernames cost as much as known ones
		s.hasher.Verify(ctx, password, s.dummyHash)
		if err := ctx.Err(); err != nil {
			return nil, "", fmt.Errorf("verify password: %w", err)
		}
		return nil, "", s.loginFailure(username, 0, "user_not_found", auth.ErrUserNotFound)
	}

	if !s.hasher.Verify(ctx, password, user.PasswordHash) {
		if err := ctx.Err(); err != nil {
			return nil, "", fmt.Errorf("verify password: %w", err)
		}
		return nil, "", s.loginFailure(username, user.ID, "password_mismatch", auth.ErrPasswordMismatch)
	}
	if !user.IsActive {
		return nil, "", s.loginFailure(username, user.ID, "user_inactive", auth.ErrUserInactive)
	}

	token, err := s.tokens.IssueDefault(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("user logged in")
	return sanitizeUser(user), token, nil
}

func (s *authService) CurrentUser(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeUnauthenticated, auth.MsgInvalidCredentials, auth.ErrUserNotFound)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return sanitizeUser(user), nil
}

func (s *authService) UpdateProfile(ctx context.Context, actor domain.Actor, patch domain.ProfilePatch) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeUnauthenticated, auth.MsgInvalidCredentials, auth.ErrUserNotFound)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if email == "" {
			return nil, apperrors.Validation("email is required")
		}
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}
	if patch.FullName != nil {
		fullName := *patch.FullName
		user.FullName = &fullName
	}
	if patch.Password != nil {
		hash, err := s.hashPassword(ctx, *patch.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, conflictFromStore(err, "update user")
	}

	s.logger.WithField("user_id", user.ID).Info("profile updated")
	return sanitizeUser(user), nil
}

func (s *authService) ensureEmailFree(ctx context.Context, email string, selfID int64) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		if existing.ID != selfID {
			return apperrors.Conflict("email", MsgEmailTaken)
		}
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("check email: %w", err)
	}
	return nil
}

func (s *authService) hashPassword(ctx context.Context, password string) (string, error) {
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", apperrors.Validation(msgPasswordTooLong)
		}
		return "", err
	}
	return hash, nil
}

// validateUsername checks the length of the trimmed username.
func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLen || n > maxUsernameLen {
		return apperrors.Validation(fmt.Sprintf("username must be %d to %d characters", minUsernameLen, maxUsernameLen))
	}
	return nil
}

func (s *authService) loginFailure(username string, userID int64, reason string, cause error) error {
	s.logger.WithFields(logrus.Fields{
		"username": username,
		"user_id":  userID,
		"reason":   reason,
	}).Warn("login rejected")
	return apperrors.Wrap(apperrors.CodeUnauthenticated, MsgIncorrectLogin, cause)
}

// conflictFromStore turns a unique-constraint rejection into a CONFLICT. Two
// concurrent registrations that both pass the pre-checks end up here.
func conflictFromStore(err error, op string) error {
	var uniqueErr *repository.UniqueViolationError
	if errors.As(err, &uniqueErr) {
		switch uniqueErr.Field {
		case "email":
			return apperrors.Conflict("email", MsgEmailTaken)
		case "username":
			return apperrors.Conflict("username", MsgUsernameTaken)
		default:
			return apperrors.Conflict(uniqueErr.Field, "Record already exists")
		}
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.Wrap(apperrors.CodeUnauthenticated, auth.MsgInvalidCredentials, auth.ErrUserNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// sanitizeUser drops the password hash before the user leaves the service.
func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	copied := *user
	copied.PasswordHash = ""
	if user.FullName != nil {
		fullName := *user.FullName
		copied.FullName = &fullName
	}
	return &copied
}
