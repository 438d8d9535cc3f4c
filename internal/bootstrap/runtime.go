// Package bootstrap wires the database and Redis for the server binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloudysky/internal/cache"
	"cloudysky/internal/config"
	"cloudysky/internal/database"
	"cloudysky/internal/middleware"
	"cloudysky/internal/models"
	"cloudysky/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	defaultRootUsername = "cloudysky_root"
	defaultRootEmail    = "root@cloudysky.local"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo loads the embedded demo fixture after connecting.
	SeedDemo bool
}

// InitRuntime connects to DB and Redis and optionally loads demo data.
// Redis is optional and the returned client may be nil.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := Prepare(ctx, cfg, db, opts); err != nil {
		return nil, nil, err
	}
	return db, r, nil
}

// Prepare runs the post-connect steps on an open database.
func Prepare(ctx context.Context, cfg *config.Config, db *gorm.DB, opts Options) error {
	if err := ensureDevRootAdmin(ctx, cfg, db); err != nil {
		return fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedDemo {
		fx, err := seed.LoadBuiltinFixture("demo")
		if err != nil {
			return err
		}
		summary, err := seed.ApplyFixture(ctx, db, fx, bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to load demo fixture: %w", err)
		}
		middleware.Logger.InfoContext(ctx, "demo fixture loaded", slog.String("summary", summary.String()))
	}
	return nil
}

// ensureDevRootAdmin makes user 1 a staff account with known credentials.
// It only acts in development with DEV_BOOTSTRAP_ROOT set.
func ensureDevRootAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = defaultRootUsername
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = defaultRootEmail
	}
	password := cfg.DevRootPassword
	if password == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.First(&root, 1).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				ID:       1,
				Username: username,
				Email:    email,
				Password: string(hashedPassword),
			}
			root.SetStaff(true)
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
		case findErr != nil:
			return findErr
		default:
			updates := map[string]any{"is_staff": true, "role": models.RoleAdmin}
			if cfg.DevRootForceCredentials {
				updates["username"] = username
				updates["email"] = email
				updates["password"] = string(hashedPassword)
			}
			if err := tx.Model(&models.User{}).Where("id = ?", 1).Updates(updates).Error; err != nil {
				return err
			}
		}

		// The explicit ID insert leaves the postgres sequence behind.
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(`
				SELECT setval(
					pg_get_serial_sequence('users', 'id'),
					GREATEST((SELECT COALESCE(MAX(id), 1) FROM users), 1),
					true
				)
			`).Error; err != nil {
				return fmt.Errorf("failed to reset users sequence: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	middleware.Logger.InfoContext(ctx, "development root admin ensured",
		slog.Uint64("user_id", 1),
		slog.String("email", email),
	)
	return nil
}
