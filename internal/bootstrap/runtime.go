// Package bootstrap opens the process-wide dependencies shared by the
// server and the operator commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"charityfeed/internal/cache"
	"charityfeed/internal/config"
	"charityfeed/internal/database"
	"charityfeed/internal/middleware"
	"charityfeed/internal/models"
	"charityfeed/internal/observability"
	"charityfeed/internal/repository"
	"charityfeed/internal/storage"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema migrates the database on connect.
	ApplySchema bool
	// SkipStorage leaves Store nil for commands that never touch media.
	SkipStorage bool
}

// Runtime is the set of connected backends.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
	Store storage.ObjectStore

	shutdownTracing func(context.Context) error
}

// InitRuntime connects to the database, Redis and the object store.
// Redis is optional: an unreachable server leaves Redis nil.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "charityfeed-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: opts.ApplySchema})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	rt := &Runtime{
		DB:              db,
		Redis:           cache.Connect(cfg.RedisURL),
		shutdownTracing: shutdownTracing,
	}

	if !opts.SkipStorage {
		store, err := NewObjectStore(ctx, cfg)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("object store init failed: %w", err)
		}
		rt.Store = store
	}

	if err := EnsureDevRootAdmin(ctx, cfg, repository.NewUserRepository(db)); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	return rt, nil
}

// NewObjectStore builds the store selected by STORAGE_DRIVER and provisions
// its buckets.
func NewObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	var store storage.ObjectStore
	switch cfg.StorageDriver {
	case "memory":
		store = storage.NewMemoryStore(fmt.Sprintf("http://localhost:%s/media", cfg.Port))
	case "", "minio":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := storage.NewMinioStore(connectCtx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if err := store.EnsureBuckets(ctx, storage.DefaultBuckets...); err != nil {
		return nil, err
	}
	return store, nil
}

// Close releases everything InitRuntime opened. The server closes the
// database and Redis itself on shutdown, so Close is for commands.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.shutdownTracing != nil {
		errs = append(errs, r.shutdownTracing(ctx))
	}
	return errors.Join(errs...)
}

// ShutdownTracing flushes pending spans.
func (r *Runtime) ShutdownTracing(ctx context.Context) error {
	if r.shutdownTracing == nil {
		return nil
	}
	return r.shutdownTracing(ctx)
}

// EnsureDevRootAdmin makes sure DEV_ROOT_EMAIL is an admin account in
// development. It creates the account on first boot and promotes it if it
// already exists with another role.
func EnsureDevRootAdmin(ctx context.Context, cfg *config.Config, users repository.UserRepository) error {
	if cfg == nil || users == nil || cfg.Env != "development" {
		return nil
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		return nil
	}
	if cfg.DevRootPassword == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_ROOT_EMAIL is set")
	}

	existing, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin() {
			return nil
		}
		if err := users.UpdateRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return err
		}
	case models.HasCode(err, models.CodeNotFound):
		hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash root password: %w", err)
		}
		if err := users.Create(ctx, &models.User{
			Email:    email,
			Password: string(hashed),
			FullName: cfg.DevRootName,
			Role:     models.RoleAdmin,
		}); err != nil {
			return err
		}
	default:
		return err
	}

	middleware.Logger.Info("development root admin ensured", slog.String("email", email))
	return nil
}
