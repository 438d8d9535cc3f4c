package service

import (
	"context"
	"strings"

	"cloudysky/internal/models"
	"cloudysky/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	userRepo repository.UserRepository
}

type UpdateProfileInput struct {
	Bio      *string
	LastName *string
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ResolveViewer turns a session's user id into a viewer. The staff flag is
// read from the store, not from the token, so demotions apply immediately.
// A user that no longer exists resolves to the anonymous viewer.
func (s *UserService) ResolveViewer(ctx context.Context, userID uint) (models.Viewer, error) {
	if userID == 0 {
		return models.Anonymous(), nil
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return models.Anonymous(), nil
		}
		return models.Anonymous(), err
	}
	return models.ViewerFor(user), nil
}

// Authenticate checks a username and password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, models.NewValidationError("Username and password are required")
	}
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, viewer models.Viewer, in UpdateProfileInput) (*models.User, error) {
	if !viewer.Authenticated {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	user, err := s.userRepo.GetByID(ctx, viewer.ID())
	if err != nil {
		return nil, err
	}

	const maxBioLen = 500
	const maxLastNameLen = 150

	if in.Bio != nil {
		if len(*in.Bio) > maxBioLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = *in.Bio
	}
	if in.LastName != nil {
		if len(*in.LastName) > maxLastNameLen {
			return nil, models.NewValidationError("Last name too long (max 150 characters)")
		}
		user.LastName = *in.LastName
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}
