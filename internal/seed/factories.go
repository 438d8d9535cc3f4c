// Package seed creates demo data for development databases and tests.
package seed

import (
	"fmt"
	"strings"
	"time"

	"cloudysky/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

// Factory builds random users, posts and comments. The same seed always
// produces the same data.
type Factory struct {
	faker   *gofakeit.Faker
	maxDays int
	now     time.Time
	serial  int
}

// NewFactory returns a factory. A zero seed picks a random one.
func NewFactory(seed int64, maxDays int) *Factory {
	if maxDays <= 0 {
		maxDays = 30
	}
	return &Factory{
		faker:   gofakeit.New(seed),
		maxDays: maxDays,
		now:     time.Now().UTC(),
	}
}

// User builds an unsaved user. passwordHash is stored as is.
func (f *Factory) User(passwordHash string) *models.User {
	f.serial++
	first := f.faker.FirstName()
	last := f.faker.LastName()
	username := strings.ToLower(fmt.Sprintf("%s.%s%d", first, last, f.serial))
	username = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\'' {
			return -1
		}
		return r
	}, username)

	return &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: passwordHash,
		LastName: last,
		Bio:      f.faker.Sentence(8),
		Role:     models.RoleSerf,
	}
}

// Post builds an unsaved post by author with a created_at within the last
// maxDays days.
func (f *Factory) Post(author *models.User) *models.Post {
	return &models.Post{
		AuthorID:  author.ID,
		Title:     strings.TrimSuffix(f.faker.Sentence(5), "."),
		Content:   f.faker.Paragraph(1, 3, 12, " "),
		CreatedAt: f.pastTime(),
	}
}

// Comment builds an unsaved comment by author on post.
func (f *Factory) Comment(author *models.User, post *models.Post) *models.Comment {
	created := post.CreatedAt.Add(time.Duration(f.faker.Number(1, 600)) * time.Minute)
	if created.After(f.now) {
		created = f.now
	}
	return &models.Comment{
		AuthorID:  author.ID,
		PostID:    post.ID,
		Content:   f.faker.Sentence(f.faker.Number(3, 20)),
		CreatedAt: created,
	}
}

// Reason returns a moderation reason text from a small fixed vocabulary so
// reasons are shared between hidden items.
func (f *Factory) Reason() string {
	return f.faker.RandomString([]string{"spam", "off-topic", "offensive", "duplicate"})
}

// Chance reports true with the given percentage.
func (f *Factory) Chance(percent int) bool {
	return percent > 0 && f.faker.Number(1, 100) <= percent
}

// Pick returns a random element of users.
func (f *Factory) Pick(users []*models.User) *models.User {
	return users[f.faker.Number(0, len(users)-1)]
}

func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.faker.Number(0, f.maxDays*24*60)) * time.Minute
	return f.now.Add(-back)
}
