package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"taskdesk/backend/internal/cache"
	"taskdesk/backend/internal/database"
	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/repositories"
	"taskdesk/backend/internal/services"
)

type testEnv struct {
	ctx       context.Context
	pool      *database.DatabasePool
	redis     *miniredis.Miniredis
	users     repositories.UserRepository
	tokens    repositories.TokenRepository
	manager   *services.TokenManager
	blacklist *services.TokenBlacklist
	auth      *services.AuthServiceImpl
	tasks     *services.TaskServiceImpl
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	pool, err := database.NewDatabasePool(database.MemoryPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	require.NoError(t, database.Migrate(pool.DB))

	mr := miniredis.RunT(t)
	redisCache := cache.NewRedisCache(&redis.Options{Addr: mr.Addr(), DialTimeout: time.Second, ReadTimeout: time.Second}, cache.DefaultBreakerConfig())
	t.Cleanup(func() { redisCache.Close() })

	users := repositories.NewUserRepository(pool.DB)
	tokens := repositories.NewTokenRepository(pool.DB)
	manager := services.NewTokenManager(services.TokenConfig{
		Secret:     "test-secret",
		Issuer:     "taskdesk-test",
		AccessTTL:  5 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	blacklist := services.NewTokenBlacklist(tokens, redisCache)

	return &testEnv{
		ctx:       context.Background(),
		pool:      pool,
		redis:     mr,
		users:     users,
		tokens:    tokens,
		manager:   manager,
		blacklist: blacklist,
		auth:      services.NewAuthService(users, manager, blacklist, bcrypt.MinCost),
		tasks:     services.NewTaskService(repositories.NewTaskRepository(pool.DB), users),
	}
}

func ptr(s string) *string {
	return &s
}

func (e *testEnv) register(t *testing.T, email, username, password string) *services.RegisterResult {
	t.Helper()

	result, err := e.auth.Register(e.ctx, services.RegisterInput{
		Email:    ptr(email),
		Username: ptr(username),
		Password: ptr(password),
	})
	require.NoError(t, err)
	return result
}

func (e *testEnv) user(t *testing.T, email string) *models.User {
	t.Helper()

	user, err := e.users.FindByEmail(e.ctx, email)
	require.NoError(t, err)
	return user
}
