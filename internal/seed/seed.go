package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloudysky/internal/middleware"
	"cloudysky/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the password of every generated user.
const DefaultPassword = "password123"

// Options configuration for the seeder
type Options struct {
	NumUsers        int
	PostsPerUser    int
	CommentsPerPost int
	// HiddenPercent of posts and comments are hidden by a staff user.
	HiddenPercent int
	Seed          int64
	MaxDays       int
	ShouldClean   bool
	BcryptCost    int
}

// Summary counts what a seeding run inserted.
type Summary struct {
	Users    int
	Posts    int
	Comments int
	Hidden   int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d posts, %d comments (%d hidden)", s.Users, s.Posts, s.Comments, s.Hidden)
}

// Seed populates the database with generated data. The first generated
// user is staff and acts as the moderator of hidden items.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	if opts.NumUsers <= 0 {
		return nil, errors.New("NumUsers must be positive")
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	start := time.Now()
	middleware.Logger.InfoContext(ctx, "seeding database",
		slog.Int("users", opts.NumUsers),
		slog.Int("posts_per_user", opts.PostsPerUser),
		slog.Int64("seed", opts.Seed),
	)

	if opts.ShouldClean {
		if err := Clean(ctx, db); err != nil {
			return nil, fmt.Errorf("clean: %w", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	f := NewFactory(opts.Seed, opts.MaxDays)
	summary := &Summary{}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make([]*models.User, 0, opts.NumUsers)
		for i := 0; i < opts.NumUsers; i++ {
			u := f.User(string(hash))
			if i == 0 {
				u.SetStaff(true)
			}
			users = append(users, u)
		}
		if err := tx.CreateInBatches(users, 100).Error; err != nil {
			return fmt.Errorf("create users: %w", err)
		}
		summary.Users = len(users)
		moderator := users[0]

		posts := make([]*models.Post, 0, opts.NumUsers*opts.PostsPerUser)
		for _, u := range users {
			for j := 0; j < opts.PostsPerUser; j++ {
				p := f.Post(u)
				if f.Chance(opts.HiddenPercent) {
					if err := hideWith(tx, f, moderator, &p.IsHidden, &p.HiddenByID, &p.HiddenAt, &p.HiddenReasonID); err != nil {
						return err
					}
					summary.Hidden++
				}
				posts = append(posts, p)
			}
		}
		if len(posts) > 0 {
			if err := tx.Omit(clause.Associations).CreateInBatches(posts, 100).Error; err != nil {
				return fmt.Errorf("create posts: %w", err)
			}
		}
		summary.Posts = len(posts)

		var comments []*models.Comment
		for _, p := range posts {
			for j := 0; j < opts.CommentsPerPost; j++ {
				c := f.Comment(f.Pick(users), p)
				if f.Chance(opts.HiddenPercent) {
					if err := hideWith(tx, f, moderator, &c.IsHidden, &c.HiddenByID, &c.HiddenAt, &c.HiddenReasonID); err != nil {
						return err
					}
					summary.Hidden++
				}
				comments = append(comments, c)
			}
		}
		if len(comments) > 0 {
			if err := tx.Omit(clause.Associations).CreateInBatches(comments, 200).Error; err != nil {
				return fmt.Errorf("create comments: %w", err)
			}
		}
		summary.Comments = len(comments)
		return nil
	})
	if err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "seeding completed",
		slog.String("summary", summary.String()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return summary, nil
}

func hideWith(tx *gorm.DB, f *Factory, moderator *models.User,
	hidden *bool, by **uint, hiddenAt **time.Time, reasonID **uint) error {
	users := map[string]*models.User{moderator.Username: moderator}
	return applyHide(tx, users, hideRequest{hidden: true, by: moderator.Username, reason: f.Reason()},
		f.now, hidden, by, hiddenAt, reasonID)
}

// Clean removes all content and accounts. Media rows go with their posts
// and comments through the foreign keys.
func Clean(ctx context.Context, db *gorm.DB) error {
	middleware.Logger.WarnContext(ctx, "clearing existing data")
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.Media{}, &models.Comment{}, &models.Post{}, &models.ModerationReason{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
