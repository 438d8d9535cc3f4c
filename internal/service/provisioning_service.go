package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloudysky/internal/config"
	"cloudysky/internal/middleware"
	"cloudysky/internal/models"
	"cloudysky/internal/observability"
	"cloudysky/internal/repository"
	"cloudysky/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// maxLookupAttempts bounds the lookup/create loop when concurrent callers
// race on the username unique index.
const maxLookupAttempts = 3

// SessionIssuer binds an authenticated session to a user.
type SessionIssuer interface {
	Issue(userID uint, username string) (string, error)
}

// ProvisionInput is the field bag of a provisioning request.
type ProvisionInput struct {
	Email    string
	Username string
	Password string
	LastName string
	IsStaff  string
}

// ProvisionResult reports the provisioned user and whether the caller was
// logged in. Authentication failure does not fail provisioning.
type ProvisionResult struct {
	User          *models.User
	Created       bool
	Authenticated bool
	Token         string
}

// Message is the confirmation shown to the caller.
func (r *ProvisionResult) Message() string {
	return fmt.Sprintf("User %s successfully created and logged in!", r.User.Username)
}

// ProvisioningService creates or updates a user and logs the caller in.
type ProvisioningService struct {
	users      repository.UserRepository
	initSchema func(context.Context) error
	sessions   SessionIssuer
	mode       string
	bcryptCost int
}

// NewProvisioningService returns a service running in mode. initSchema is
// called at most once per request when the store reports missing tables.
func NewProvisioningService(
	users repository.UserRepository,
	initSchema func(context.Context) error,
	sessions SessionIssuer,
	mode string,
) *ProvisioningService {
	if mode == "" {
		mode = config.ProvisioningIdempotentUpsert
	}
	return &ProvisioningService{
		users:      users,
		initSchema: initSchema,
		sessions:   sessions,
		mode:       mode,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// WithBcryptCost overrides the password hashing cost.
func (s *ProvisioningService) WithBcryptCost(cost int) *ProvisioningService {
	s.bcryptCost = cost
	return s
}

// Mode reports the configured provisioning mode.
func (s *ProvisioningService) Mode() string {
	return s.mode
}

func (s *ProvisioningService) strict() bool {
	return s.mode == config.ProvisioningStrictCreate
}

// Provision runs the create-or-update workflow for in.Username. Repeating a
// call with the same fields converges on the same single record.
func (s *ProvisioningService) Provision(ctx context.Context, in ProvisionInput) (*ProvisionResult, error) {
	span, ctx := observability.NewSpan(ctx, "provisioning.provision",
		attribute.String("mode", s.mode),
		attribute.String("username", in.Username),
	)
	defer span.End()

	if err := validateProvisionInput(in); err != nil {
		s.recordOutcome("invalid")
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		s.recordOutcome("error")
		return nil, models.NewInternalError(err)
	}

	user, created, err := s.lookupOrCreateHealing(ctx, in, string(hash))
	if err != nil {
		span.SetError(err)
		s.recordOutcome(outcomeFor(err))
		return nil, err
	}

	if !created {
		applyFields(user, in, string(hash))
		if err := s.users.Update(ctx, user); err != nil {
			span.SetError(err)
			s.recordOutcome(outcomeFor(err))
			return nil, err
		}
	}

	result := &ProvisionResult{User: user, Created: created}
	s.authenticate(ctx, result, in.Password)

	if created {
		s.recordOutcome("created")
	} else {
		s.recordOutcome("updated")
	}
	middleware.Logger.InfoContext(ctx, "user provisioned",
		slog.String("username", user.Username),
		slog.Bool("created", created),
		slog.Bool("authenticated", result.Authenticated),
		slog.String("mode", s.mode),
	)
	return result, nil
}

func validateProvisionInput(in ProvisionInput) error {
	missing := validation.MissingFields(map[string]string{
		"email":     in.Email,
		"user_name": in.Username,
		"password":  in.Password,
	}, "email", "user_name", "password")
	if len(missing) > 0 {
		return models.NewValidationError("Missing required fields: " + strings.Join(missing, ", "))
	}
	if err := errors.Join(
		validation.MaxLength("user_name", in.Username, validation.MaxUsernameLength),
		validation.MaxLength("email", in.Email, validation.MaxEmailLength),
	); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}

// lookupOrCreateHealing initializes the schema once if the store reports it
// missing, then retries. A second failure is returned as is.
func (s *ProvisioningService) lookupOrCreateHealing(ctx context.Context, in ProvisionInput, hash string) (*models.User, bool, error) {
	user, created, err := s.lookupOrCreate(ctx, in, hash)
	if err == nil || !models.HasCode(err, models.CodeStorageUnavailable) || s.initSchema == nil {
		return user, created, err
	}

	middleware.Logger.WarnContext(ctx, "storage schema missing, initializing", slog.String("error", err.Error()))
	if initErr := s.initSchema(ctx); initErr != nil {
		observability.SchemaInitializations.WithLabelValues("failed").Inc()
		return nil, false, models.NewStorageUnavailableError(initErr)
	}
	observability.SchemaInitializations.WithLabelValues("ok").Inc()

	return s.lookupOrCreate(ctx, in, hash)
}

// lookupOrCreate finds the user by username or creates it. A uniqueness
// violation on create means another request won the race, so the lookup is
// repeated instead of failing.
func (s *ProvisioningService) lookupOrCreate(ctx context.Context, in ProvisionInput, hash string) (*models.User, bool, error) {
	var lastErr error
	for attempt := 0; attempt < maxLookupAttempts; attempt++ {
		existing, err := s.users.GetByUsername(ctx, in.Username)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			if s.strict() {
				return nil, false, models.NewConflictError("Username already taken", nil)
			}
			return existing, false, nil
		}

		if s.strict() {
			owner, err := s.users.GetByEmail(ctx, in.Email)
			if err != nil {
				return nil, false, err
			}
			if owner != nil {
				return nil, false, models.NewConflictError("Email already registered", nil)
			}
		}

		user := &models.User{Username: in.Username}
		applyFields(user, in, hash)
		err = s.users.Create(ctx, user)
		if err == nil {
			return user, true, nil
		}
		if !models.HasCode(err, models.CodeConflict) {
			return nil, false, err
		}
		lastErr = err
		if s.strict() {
			return nil, false, err
		}
	}
	return nil, false, lastErr
}

// applyFields overwrites the provisioned fields. Last name is kept when the
// request leaves it empty.
func applyFields(user *models.User, in ProvisionInput, hash string) {
	user.Email = in.Email
	if in.LastName != "" {
		user.LastName = in.LastName
	}
	user.SetStaff(validation.ParseFlag(in.IsStaff))
	user.Password = hash
}

// authenticate verifies the credential just written and issues a session.
func (s *ProvisioningService) authenticate(ctx context.Context, result *ProvisionResult, password string) {
	if err := bcrypt.CompareHashAndPassword([]byte(result.User.Password), []byte(password)); err != nil {
		middleware.Logger.WarnContext(ctx, "provisioned credential did not verify", slog.String("username", result.User.Username))
		return
	}
	if s.sessions == nil {
		return
	}
	token, err := s.sessions.Issue(result.User.ID, result.User.Username)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to issue session after provisioning",
			slog.String("username", result.User.Username), slog.String("error", err.Error()))
		return
	}
	result.Token = token
	result.Authenticated = true
}

func (s *ProvisioningService) recordOutcome(outcome string) {
	observability.ProvisioningOutcomes.WithLabelValues(s.mode, outcome).Inc()
}

func outcomeFor(err error) string {
	switch {
	case models.HasCode(err, models.CodeConflict):
		return "conflict"
	case models.HasCode(err, models.CodeStorageUnavailable):
		return "storage_unavailable"
	default:
		return "error"
	}
}
