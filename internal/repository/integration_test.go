//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"cloudysky/internal/database"
	"cloudysky/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupPostgres starts a disposable PostgreSQL container without any schema.
func setupPostgres(t *testing.T) *gorm.DB {
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:alpine",
		tcpostgres.WithDatabase("cloudysky"),
		tcpostgres.WithUsername("cloudysky"),
		tcpostgres.WithPassword("cloudysky"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	return db
}

func TestPostgresStore(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	users := NewUserRepository(db)

	_, err := users.GetByUsername(ctx, "alice")
	require.True(t, models.HasCode(err, models.CodeStorageUnavailable), "got %v", err)

	require.NoError(t, database.RunMigrations(ctx, db))
	require.NoError(t, database.RunMigrations(ctx, db), "migrations are idempotent")

	alice := &models.User{Username: "alice", Email: "alice@example.com", Password: "hash"}
	require.NoError(t, users.Create(ctx, alice))
	err = users.Create(ctx, &models.User{Username: "alice", Email: "other@example.com", Password: "hash"})
	assert.True(t, models.HasCode(err, models.CodeConflict), "got %v", err)

	admin := &models.User{Username: "admin", Email: "admin@example.com", Password: "hash"}
	admin.SetStaff(true)
	require.NoError(t, users.Create(ctx, admin))

	posts := NewPostRepository(db)
	post := &models.Post{AuthorID: alice.ID, Title: "hello", Content: "world"}
	require.NoError(t, posts.Create(ctx, post))

	moderation := NewModerationRepository(db)

	t.Run("concurrent reason creation yields one row", func(t *testing.T) {
		var wg sync.WaitGroup
		ids := make([]uint, 8)
		errs := make([]error, 8)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				reason, err := moderation.GetOrCreateReason(ctx, "spam")
				errs[i] = err
				if reason != nil {
					ids[i] = reason.ID
				}
			}(i)
		}
		wg.Wait()

		for i := range ids {
			require.NoError(t, errs[i])
			assert.Equal(t, ids[0], ids[i])
		}
	})

	t.Run("hide writes every field at once", func(t *testing.T) {
		at := time.Now().UTC().Truncate(time.Microsecond)
		reason, err := moderation.Hide(ctx, HidePostTarget, post.ID, HideFields{ActorID: admin.ID, ReasonText: "spam", At: at})
		require.NoError(t, err)

		stored, err := posts.GetByID(ctx, post.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsHidden)
		assert.Equal(t, admin.ID, *stored.HiddenByID)
		assert.Equal(t, reason.ID, *stored.HiddenReasonID)
		assert.True(t, stored.HiddenAt.Equal(at))

		_, err = moderation.Hide(ctx, HidePostTarget, 424242, HideFields{ActorID: admin.ID, At: at})
		assert.True(t, models.HasCode(err, models.CodeNotFound))
	})

	t.Run("media rows reject two owners", func(t *testing.T) {
		comment := &models.Comment{AuthorID: alice.ID, PostID: post.ID, Content: "c"}
		require.NoError(t, NewCommentRepository(db).Create(ctx, comment))
		err := NewMediaRepository(db).Create(ctx, &models.Media{PostID: &post.ID, CommentID: &comment.ID, File: "x"})
		assert.Error(t, err)
	})
}
