package service

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"cloudysky/internal/models"
	"cloudysky/internal/notifications"
	"cloudysky/internal/repository"
	"cloudysky/internal/testutil"

	"gorm.io/gorm"
)

type store struct {
	db       *gorm.DB
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	mod      repository.ModerationRepository
	media    repository.MediaRepository
}

func newStore(t *testing.T) *store {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	return &store{
		db:       db,
		users:    repository.NewUserRepository(db),
		posts:    repository.NewPostRepository(db),
		comments: repository.NewCommentRepository(db),
		mod:      repository.NewModerationRepository(db),
		media:    repository.NewMediaRepository(db),
	}
}

// userRepoStub is a stub for repository.UserRepository. Unset functions
// fall through to next when it is provided.
type userRepoStub struct {
	next            repository.UserRepository
	getByUsernameFn func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.next.GetByID(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.next.GetByEmail(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if s.getByUsernameFn != nil {
		return s.getByUsernameFn(ctx, username)
	}
	return s.next.GetByUsername(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	if s.createFn != nil {
		return s.createFn(ctx, user)
	}
	return s.next.Create(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.next.Update(ctx, user)
}
func (s *userRepoStub) UpdateProfile(ctx context.Context, user *models.User) error {
	return s.next.UpdateProfile(ctx, user)
}
func (s *userRepoStub) SetStaff(ctx context.Context, username string, staff bool) (*models.User, error) {
	return s.next.SetStaff(ctx, username, staff)
}
func (s *userRepoStub) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.next.List(ctx, limit, offset)
}

// sessionStub issues fixed tokens.
type sessionStub struct {
	token string
	err   error
	calls int
}

func (s *sessionStub) Issue(uint, string) (string, error) {
	s.calls++
	return s.token, s.err
}

// eventRecorder collects published moderation events.
type eventRecorder struct {
	mu     sync.Mutex
	events []notifications.ModerationEvent
	err    error
}

func (r *eventRecorder) PublishModeration(_ context.Context, ev notifications.ModerationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func viewerOf(u *models.User) models.Viewer {
	return models.ViewerFor(u)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
