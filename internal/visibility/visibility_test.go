package visibility

import (
	"errors"
	"strings"
	"testing"

	"cloudysky/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userViewer(id uint, staff bool) models.Viewer {
	return models.Viewer{Authenticated: true, IsStaff: staff, UserID: &id}
}

func TestCanSee(t *testing.T) {
	t.Parallel()

	const author = uint(10)
	viewers := map[string]models.Viewer{
		"anonymous": models.Anonymous(),
		"stranger":  userViewer(11, false),
		"author":    userViewer(author, false),
		"staff":     userViewer(12, true),
	}

	tests := []struct {
		name   string
		hidden bool
		want   map[string]bool
	}{
		{
			name:   "visible item is readable by everyone",
			hidden: false,
			want:   map[string]bool{"anonymous": true, "stranger": true, "author": true, "staff": true},
		},
		{
			name:   "hidden item is readable by author and staff only",
			hidden: true,
			want:   map[string]bool{"anonymous": false, "stranger": false, "author": true, "staff": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := Item{IsHidden: tt.hidden, AuthorID: author, Content: "body"}
			for who, v := range viewers {
				assert.Equal(t, tt.want[who], CanSee(v, it), who)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	hidden := Item{IsHidden: true, AuthorID: 1}
	visible := Item{AuthorID: 1}

	assert.Equal(t, ClassOwn, Classify(userViewer(1, false), hidden))
	assert.Equal(t, ClassOwn, Classify(userViewer(1, true), hidden))
	assert.Equal(t, ClassHidden, Classify(userViewer(2, true), hidden))
	assert.Equal(t, ClassOwn, Classify(userViewer(1, false), visible))
	assert.Equal(t, ClassOther, Classify(userViewer(2, false), visible))
	assert.Equal(t, ClassOther, Classify(models.Anonymous(), visible))
}

func TestPreview(t *testing.T) {
	t.Parallel()

	exact := strings.Repeat("a", PreviewLimit)
	long := strings.Repeat("b", PreviewLimit+1)
	multibyte := strings.Repeat("é", PreviewLimit+5)

	assert.Equal(t, exact, Preview(exact))
	assert.Equal(t, strings.Repeat("b", PreviewLimit)+ContinuationMarker, Preview(long))
	assert.Equal(t, strings.Repeat("é", PreviewLimit)+ContinuationMarker, Preview(multibyte))
	assert.Equal(t, "", Preview(""))
}

func TestForListing(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 60)
	it := Item{IsHidden: true, AuthorID: 1, Content: long}

	_, ok := ForListing(userViewer(2, false), it, Previewed)
	assert.False(t, ok)

	d, ok := ForListing(userViewer(3, true), it, Previewed)
	require.True(t, ok)
	assert.Equal(t, ClassHidden, d.Class)
	assert.Equal(t, Preview(long), d.Content)

	d, ok = ForListing(userViewer(1, false), it, Full)
	require.True(t, ok)
	assert.Equal(t, ClassOwn, d.Class)
	assert.Equal(t, long, d.Content)
}

func TestForDetail(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("y", 80)
	it := Item{IsHidden: true, AuthorID: 1, Content: long}

	_, err := ForDetail(userViewer(2, false), it)
	assert.True(t, errors.Is(err, ErrNotPermitted))

	_, err = ForDetail(models.Anonymous(), it)
	assert.True(t, errors.Is(err, ErrNotPermitted))

	d, err := ForDetail(userViewer(2, true), it)
	require.NoError(t, err)
	assert.Equal(t, long, d.Content, "detail views are never truncated")
	assert.False(t, d.Redacted)
}

func TestForNested(t *testing.T) {
	t.Parallel()

	it := Item{IsHidden: true, AuthorID: 1, Content: "rude words"}

	d := ForNested(userViewer(2, false), it, Previewed)
	assert.True(t, d.Redacted)
	assert.Equal(t, RedactionMarker, d.Content)
	assert.Equal(t, ClassHidden, d.Class)

	d = ForNested(userViewer(1, false), it, Previewed)
	assert.False(t, d.Redacted)
	assert.Equal(t, "rude words", d.Content)

	d = ForNested(models.Anonymous(), Item{AuthorID: 1, Content: "fine"}, Full)
	assert.False(t, d.Redacted)
	assert.Equal(t, "fine", d.Content)
}

func TestAdapters(t *testing.T) {
	t.Parallel()

	p := &models.Post{AuthorID: 3, Content: "post", IsHidden: true}
	c := &models.Comment{AuthorID: 4, Content: "comment"}

	assert.Equal(t, Item{IsHidden: true, AuthorID: 3, Content: "post"}, PostItem(p))
	assert.Equal(t, Item{AuthorID: 4, Content: "comment"}, CommentItem(c))
}
