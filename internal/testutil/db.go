// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"cloudysky/internal/cache"
	"cloudysky/internal/config"
	"cloudysky/internal/database"
	"cloudysky/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestConfig returns the configuration used by in-process tests.
func TestConfig() *config.Config {
	return &config.Config{
		Env:                  "test",
		DBDriver:             "sqlite",
		DBSchemaMode:         database.SchemaModeAuto,
		JWTSecret:            "test-secret-key-for-tests-only-0123456789",
		SessionTTLHours:      1,
		ProvisioningMode:     config.ProvisioningIdempotentUpsert,
		HidePostMissing:      config.MissingTargetSucceed,
		HideCommentMissing:   config.MissingTargetSucceed,
		LenientCommentTarget: true,
		MediaBackend:         config.MediaBackendDisk,
		MediaMaxUploadMB:     1,
	}
}

// OpenSQLite opens a private in-memory database without creating tables.
func OpenSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewSQLiteDB opens a private in-memory database with the schema applied.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := OpenSQLite(t)
	if err := database.ApplySchema(context.Background(), db, TestConfig()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

// CreateUser inserts a user whose password is the username.
func CreateUser(t *testing.T, db *gorm.DB, username string, staff bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(username), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hash),
	}
	user.SetStaff(staff)
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// CreatePost inserts a post authored by author.
func CreatePost(t *testing.T, db *gorm.DB, author *models.User, title, content string) *models.Post {
	t.Helper()
	post := &models.Post{AuthorID: author.ID, Title: title, Content: content}
	if err := db.Omit("Author").Create(post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post
}

// CreateComment inserts a comment on post authored by author.
func CreateComment(t *testing.T, db *gorm.DB, author *models.User, post *models.Post, content string) *models.Comment {
	t.Helper()
	comment := &models.Comment{AuthorID: author.ID, PostID: post.ID, Content: content}
	if err := db.Omit("Author", "Post").Create(comment).Error; err != nil {
		t.Fatalf("create comment: %v", err)
	}
	return comment
}

// UseMiniredis installs a miniredis-backed client in the cache package for
// the duration of the test.
func UseMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	prev := cache.GetClient()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(client)
	t.Cleanup(func() {
		cache.SetClient(prev)
		_ = client.Close()
	})
	return mr
}
