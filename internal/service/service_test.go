package service

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"taskflow/internal/auth"
	"taskflow/internal/domain"
	"taskflow/internal/repository"
	"taskflow/internal/repository/sqlite"
)

type testEnv struct {
	users  repository.UserRepository
	tasks  repository.TaskRepository
	hasher auth.Hasher
	tokens auth.TokenCodec
	logger *logrus.Logger
	clock  *testClock
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	users := sqlite.NewUserRepository(db)
	tasks := sqlite.NewTaskRepository(db)
	require.NoError(t, users.Init(ctx))
	require.NoError(t, tasks.Init(ctx))

	hasher, err := auth.NewHasher(auth.HasherConfig{Cost: bcrypt.MinCost})
	require.NoError(t, err)
	tokens, err := auth.NewTokenCodec(auth.TokenConfig{Secret: []byte("service-test-secret")})
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return &testEnv{
		users:  users,
		tasks:  tasks,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		clock:  &testClock{now: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)},
	}
}

func (e *testEnv) authService(t *testing.T) AuthService {
	t.Helper()
	svc, err := NewAuthService(e.users, e.hasher, e.tokens, e.logger)
	require.NoError(t, err)
	return svc
}

func (e *testEnv) taskService() TaskService {
	return NewTaskService(e.tasks, e.clock.Now)
}

// registerActor creates an active user directly in the store.
func (e *testEnv) registerActor(t *testing.T, username string, superuser bool) domain.Actor {
	t.Helper()
	user := &domain.User{
		Email:        username + "@x.com",
		Username:     username,
		PasswordHash: "unused",
		IsActive:     true,
		IsSuperuser:  superuser,
	}
	_, err := e.users.Create(context.Background(), user)
	require.NoError(t, err)
	return user.Actor()
}
