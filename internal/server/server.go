// Package server wires configuration, storage and services into the HTTP
// router.
package server

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	gormlogger "gorm.io/gorm/logger"

	"taskdesk/backend/internal/cache"
	"taskdesk/backend/internal/config"
	"taskdesk/backend/internal/database"
	"taskdesk/backend/internal/repositories"
	"taskdesk/backend/internal/services"
)

const healthCheckTimeout = 3 * time.Second

type Dependencies struct {
	Config      *config.Config
	DB          *database.DatabasePool
	Cache       *cache.RedisCache
	AuthService services.AuthService
	TaskService services.TaskService
}

// BuildDependencies assembles the services on top of an open database and an
// optional Redis cache. A nil cache leaves the blacklist database only.
func BuildDependencies(cfg *config.Config, db *database.DatabasePool, redisCache *cache.RedisCache) *Dependencies {
	users := repositories.NewUserRepository(db.DB)
	tasks := repositories.NewTaskRepository(db.DB)
	tokens := repositories.NewTokenRepository(db.DB)

	manager := services.NewTokenManager(services.TokenConfig{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	})

	var revocations services.RevocationCache
	if redisCache != nil {
		revocations = redisCache
	}
	blacklist := services.NewTokenBlacklist(tokens, revocations)

	return &Dependencies{
		Config:      cfg,
		DB:          db,
		Cache:       redisCache,
		AuthService: services.NewAuthService(users, manager, blacklist, cfg.Auth.BCryptCost),
		TaskService: services.NewTaskService(tasks, users),
	}
}

// ConnectCache returns nil when Redis is disabled or does not answer, in which
// case the server runs without the revocation cache.
func ConnectCache(ctx context.Context, cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Redis.DialTimeout)
	defer cancel()

	return cache.Connect(ctx, &redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}, cache.DefaultBreakerConfig())
}

// OpenDatabase opens the pool described by cfg and migrates the schema.
func OpenDatabase(cfg *config.Config) (*database.DatabasePool, error) {
	poolConfig := database.DefaultPoolConfig()
	poolConfig.Driver = cfg.Database.Driver
	poolConfig.DSN = cfg.GetDatabaseDSN()
	poolConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	poolConfig.MaxIdleConns = cfg.Database.MaxIdleConns
	poolConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.ConnMaxIdleTime = cfg.Database.ConnMaxIdleTime
	if cfg.IsProduction() {
		poolConfig.LogLevel = gormlogger.Warn
	}

	pool, err := database.NewDatabasePool(poolConfig)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(pool.DB); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
