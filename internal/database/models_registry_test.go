package database

import (
	"testing"

	"cloudysky/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_ReferencedTablesFirst(t *testing.T) {
	list := PersistentModels()
	require.Len(t, list, 5)
	_, userFirst := list[0].(*models.User)
	require.True(t, userFirst, "users must be created before tables that reference them")
	_, mediaLast := list[len(list)-1].(*models.Media)
	require.True(t, mediaLast, "media references posts and comments")
}
