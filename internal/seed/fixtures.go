package seed

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"time"

	"cloudysky/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed fixtures/*.yml
var fixtureFS embed.FS

// Fixture is a hand-written data set loaded from YAML.
type Fixture struct {
	Users []FixtureUser `yaml:"users"`
	Posts []FixturePost `yaml:"posts"`
}

type FixtureUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	LastName string `yaml:"last_name"`
	Staff    bool   `yaml:"staff"`
}

type FixturePost struct {
	Author       string           `yaml:"author"`
	Title        string           `yaml:"title"`
	Content      string           `yaml:"content"`
	Hidden       bool             `yaml:"hidden"`
	HiddenBy     string           `yaml:"hidden_by"`
	HiddenReason string           `yaml:"hidden_reason"`
	Comments     []FixtureComment `yaml:"comments"`
}

type FixtureComment struct {
	Author       string `yaml:"author"`
	Content      string `yaml:"content"`
	Hidden       bool   `yaml:"hidden"`
	HiddenBy     string `yaml:"hidden_by"`
	HiddenReason string `yaml:"hidden_reason"`
}

// hideRequest is the moderation a fixture item asks for.
type hideRequest struct {
	hidden bool
	by     string
	reason string
}

// ParseFixture decodes a fixture and checks that every author it names is
// declared in its users list.
func ParseFixture(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}

	known := make(map[string]bool, len(fx.Users))
	for _, u := range fx.Users {
		if u.Username == "" || u.Email == "" || u.Password == "" {
			return nil, fmt.Errorf("fixture user %q needs username, email and password", u.Username)
		}
		known[u.Username] = true
	}
	check := func(name, what string) error {
		if name != "" && !known[name] {
			return fmt.Errorf("fixture %s references unknown user %q", what, name)
		}
		return nil
	}
	for _, p := range fx.Posts {
		if err := errors.Join(check(p.Author, "post author"), check(p.HiddenBy, "post moderator")); err != nil {
			return nil, err
		}
		if p.Author == "" {
			return nil, fmt.Errorf("fixture post %q has no author", p.Title)
		}
		for _, c := range p.Comments {
			if err := errors.Join(check(c.Author, "comment author"), check(c.HiddenBy, "comment moderator")); err != nil {
				return nil, err
			}
			if c.Author == "" {
				return nil, fmt.Errorf("fixture comment on %q has no author", p.Title)
			}
		}
	}
	return &fx, nil
}

// LoadBuiltinFixture returns one of the embedded fixtures by name, e.g. "demo".
func LoadBuiltinFixture(name string) (*Fixture, error) {
	f, err := fixtureFS.Open("fixtures/" + name + ".yml")
	if err != nil {
		return nil, fmt.Errorf("unknown fixture %q: %w", name, err)
	}
	defer f.Close()
	return ParseFixture(f)
}

// ApplyFixture inserts the fixture in one transaction. Users are matched by
// username, so applying the same fixture twice adds posts again but never
// duplicates accounts.
func ApplyFixture(ctx context.Context, db *gorm.DB, fx *Fixture, bcryptCost int) (*Summary, error) {
	summary := &Summary{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make(map[string]*models.User, len(fx.Users))
		for _, fu := range fx.Users {
			hash, err := bcrypt.GenerateFromPassword([]byte(fu.Password), bcryptCost)
			if err != nil {
				return err
			}
			var u models.User
			attrs := models.User{Email: fu.Email, Password: string(hash), LastName: fu.LastName}
			attrs.SetStaff(fu.Staff)
			res := tx.Where(models.User{Username: fu.Username}).Attrs(attrs).FirstOrCreate(&u)
			if res.Error != nil {
				return fmt.Errorf("user %s: %w", fu.Username, res.Error)
			}
			if res.RowsAffected > 0 {
				summary.Users++
			}
			users[fu.Username] = &u
		}

		now := time.Now().UTC()
		for i, fp := range fx.Posts {
			// The last post in the file is the newest.
			post := models.Post{
				AuthorID:  users[fp.Author].ID,
				Title:     fp.Title,
				Content:   fp.Content,
				CreatedAt: now.Add(time.Duration(i-len(fx.Posts)) * time.Minute),
			}
			if err := applyHide(tx, users, hideRequest{fp.Hidden, fp.HiddenBy, fp.HiddenReason}, now, &post.IsHidden, &post.HiddenByID, &post.HiddenAt, &post.HiddenReasonID); err != nil {
				return err
			}
			if err := tx.Omit(clause.Associations).Create(&post).Error; err != nil {
				return fmt.Errorf("post %q: %w", fp.Title, err)
			}
			summary.Posts++
			if post.IsHidden {
				summary.Hidden++
			}

			for _, fc := range fp.Comments {
				comment := models.Comment{
					AuthorID: users[fc.Author].ID,
					PostID:   post.ID,
					Content:  fc.Content,
				}
				if err := applyHide(tx, users, hideRequest{fc.Hidden, fc.HiddenBy, fc.HiddenReason}, now, &comment.IsHidden, &comment.HiddenByID, &comment.HiddenAt, &comment.HiddenReasonID); err != nil {
					return err
				}
				if err := tx.Omit(clause.Associations).Create(&comment).Error; err != nil {
					return fmt.Errorf("comment on %q: %w", fp.Title, err)
				}
				summary.Comments++
				if comment.IsHidden {
					summary.Hidden++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func applyHide(tx *gorm.DB, users map[string]*models.User, h hideRequest, at time.Time,
	hidden *bool, by **uint, hiddenAt **time.Time, reasonID **uint) error {
	if !h.hidden {
		return nil
	}
	*hidden = true
	*hiddenAt = &at
	if u, ok := users[h.by]; ok {
		id := u.ID
		*by = &id
	}
	if h.reason != "" {
		var reason models.ModerationReason
		if err := tx.Where(models.ModerationReason{ReasonText: h.reason}).FirstOrCreate(&reason).Error; err != nil {
			return fmt.Errorf("reason %q: %w", h.reason, err)
		}
		id := reason.ID
		*reasonID = &id
	}
	return nil
}
