package repository

import (
	"context"
	"regexp"
	"testing"

	"cloudysky/internal/models"
	"cloudysky/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	post := &models.Post{AuthorID: 1, Title: "Test Post", Content: "Content"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, post)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), post.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE "posts"."id" = $1 ORDER BY "posts"."id" LIMIT $2`)).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_id"}).AddRow(1, "Post 1", 10))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(10, "user10"))

	post, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Post 1", post.Title)
	assert.Equal(t, "user10", post.Author.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_SQLite(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	oldest, err := repo.Oldest(ctx)
	require.NoError(t, err)
	assert.Nil(t, oldest, "no posts yet")

	alice := testutil.CreateUser(t, db, "alice", false)
	first := testutil.CreatePost(t, db, alice, "first", "one")
	second := testutil.CreatePost(t, db, alice, "second", "two")
	third := testutil.CreatePost(t, db, alice, "third", "three")

	t.Run("list newest first with authors", func(t *testing.T) {
		posts, err := repo.List(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, posts, 3)
		assert.Equal(t, []uint{third.ID, second.ID, first.ID}, []uint{posts[0].ID, posts[1].ID, posts[2].ID})
		assert.Equal(t, "alice", posts[0].Author.Username)
	})

	t.Run("limit and offset", func(t *testing.T) {
		posts, err := repo.List(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, second.ID, posts[0].ID)
	})

	t.Run("oldest", func(t *testing.T) {
		got, err := repo.Oldest(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first.ID, got.ID)
	})

	t.Run("missing post", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 9999)
		assert.True(t, models.HasCode(err, models.CodeNotFound))
	})

	t.Run("deleting the author cascades", func(t *testing.T) {
		bob := testutil.CreateUser(t, db, "bob", false)
		p := testutil.CreatePost(t, db, bob, "bye", "soon gone")
		require.NoError(t, db.Delete(&models.User{}, bob.ID).Error)
		_, err := repo.GetByID(ctx, p.ID)
		assert.True(t, models.HasCode(err, models.CodeNotFound))
	})
}
