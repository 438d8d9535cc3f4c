package repository

import (
	"context"
	"testing"
	"time"

	"cloudysky/internal/models"
	"cloudysky/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModerationRepository_GetOrCreateReason(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewModerationRepository(db)
	ctx := context.Background()

	spam, err := repo.GetOrCreateReason(ctx, "spam")
	require.NoError(t, err)
	again, err := repo.GetOrCreateReason(ctx, "spam")
	require.NoError(t, err)
	assert.Equal(t, spam.ID, again.ID)

	upper, err := repo.GetOrCreateReason(ctx, "Spam")
	require.NoError(t, err)
	assert.NotEqual(t, spam.ID, upper.ID, "reason text matches case-sensitively")

	var count int64
	require.NoError(t, db.Model(&models.ModerationReason{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestModerationRepository_Hide(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewModerationRepository(db)
	ctx := context.Background()

	admin := testutil.CreateUser(t, db, "admin", true)
	alice := testutil.CreateUser(t, db, "alice", false)
	p1 := testutil.CreatePost(t, db, alice, "p1", "one")
	p2 := testutil.CreatePost(t, db, alice, "p2", "two")
	c1 := testutil.CreateComment(t, db, alice, p1, "comment")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("same reason reused across posts", func(t *testing.T) {
		r1, err := repo.Hide(ctx, HidePostTarget, p1.ID, HideFields{ActorID: admin.ID, ReasonText: "spam", At: at})
		require.NoError(t, err)
		r2, err := repo.Hide(ctx, HidePostTarget, p2.ID, HideFields{ActorID: admin.ID, ReasonText: "spam", At: at})
		require.NoError(t, err)
		assert.Equal(t, r1.ID, r2.ID)

		var stored models.Post
		require.NoError(t, db.First(&stored, p1.ID).Error)
		assert.True(t, stored.IsHidden)
		require.NotNil(t, stored.HiddenByID)
		assert.Equal(t, admin.ID, *stored.HiddenByID)
		require.NotNil(t, stored.HiddenAt)
		assert.True(t, stored.HiddenAt.Equal(at))
		require.NotNil(t, stored.HiddenReasonID)
		assert.Equal(t, r1.ID, *stored.HiddenReasonID)
	})

	t.Run("empty reason clears the reason", func(t *testing.T) {
		reason, err := repo.Hide(ctx, HidePostTarget, p1.ID, HideFields{ActorID: admin.ID, At: at.Add(time.Hour)})
		require.NoError(t, err)
		assert.Nil(t, reason)

		var stored models.Post
		require.NoError(t, db.First(&stored, p1.ID).Error)
		assert.True(t, stored.IsHidden)
		assert.Nil(t, stored.HiddenReasonID)
		assert.True(t, stored.HiddenAt.Equal(at.Add(time.Hour)))
	})

	t.Run("comment target", func(t *testing.T) {
		_, err := repo.Hide(ctx, HideCommentTarget, c1.ID, HideFields{ActorID: admin.ID, ReasonText: "rude", At: at})
		require.NoError(t, err)

		var stored models.Comment
		require.NoError(t, db.First(&stored, c1.ID).Error)
		assert.True(t, stored.IsHidden)
	})

	t.Run("missing target rolls back the reason", func(t *testing.T) {
		_, err := repo.Hide(ctx, HideCommentTarget, 9999, HideFields{ActorID: admin.ID, ReasonText: "never stored", At: at})
		assert.True(t, models.HasCode(err, models.CodeNotFound), "got %v", err)

		var count int64
		require.NoError(t, db.Model(&models.ModerationReason{}).Where("reason_text = ?", "never stored").Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("deleting the moderator nulls hidden_by", func(t *testing.T) {
		mod := testutil.CreateUser(t, db, "mod", true)
		_, err := repo.Hide(ctx, HidePostTarget, p2.ID, HideFields{ActorID: mod.ID, At: at})
		require.NoError(t, err)
		require.NoError(t, db.Delete(&models.User{}, mod.ID).Error)

		var stored models.Post
		require.NoError(t, db.First(&stored, p2.ID).Error)
		assert.True(t, stored.IsHidden)
		assert.Nil(t, stored.HiddenByID)
	})
}
