package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"cloudysky/internal/config"
	"cloudysky/internal/database"
	"cloudysky/internal/models"
	"cloudysky/internal/repository"
	"cloudysky/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func aliceInput() ProvisionInput {
	return ProvisionInput{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "s3cret",
		LastName: "Liddell",
	}
}

func newProvisioning(users repository.UserRepository, initSchema func(context.Context) error, mode string) (*ProvisioningService, *sessionStub) {
	sessions := &sessionStub{token: "signed-token"}
	svc := NewProvisioningService(users, initSchema, sessions, mode).WithBcryptCost(bcrypt.MinCost)
	return svc, sessions
}

func TestProvision_Validation(t *testing.T) {
	t.Parallel()
	svc, _ := newProvisioning(&userRepoStub{}, nil, "")

	tests := []struct {
		name  string
		input ProvisionInput
		want  string
	}{
		{"all missing", ProvisionInput{}, "Missing required fields: email, user_name, password"},
		{"password missing", ProvisionInput{Email: "a@example.com", Username: "a"}, "Missing required fields: password"},
		{"empty username", ProvisionInput{Email: "a@example.com", Username: "", Password: "x"}, "Missing required fields: user_name"},
		{"username too long", ProvisionInput{Email: "a@example.com", Username: strings.Repeat("u", 151), Password: "x"}, "user_name must not exceed 150 characters"},
		{"email too long", ProvisionInput{Email: strings.Repeat("e", 255), Username: "a", Password: "x"}, "email must not exceed 254 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Provision(context.Background(), tt.input)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, models.HasCode(err, models.CodeValidation))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestProvision_AcceptsAnyNonEmptyFields(t *testing.T) {
	s := newStore(t)
	svc, sessions := newProvisioning(s.users, nil, "")

	in := ProvisionInput{Email: "bob", Username: "carol smith", Password: "   "}
	res, err := svc.Provision(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Authenticated)
	assert.Equal(t, 1, sessions.calls)

	stored, err := s.users.GetByUsername(context.Background(), "carol smith")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "bob", stored.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("   ")))

	again, err := svc.Provision(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, stored.ID, again.User.ID)
}

func TestProvision_CreatesAndAuthenticates(t *testing.T) {
	s := newStore(t)
	svc, sessions := newProvisioning(s.users, nil, "")

	res, err := svc.Provision(context.Background(), aliceInput())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Authenticated)
	assert.Equal(t, "signed-token", res.Token)
	assert.Equal(t, 1, sessions.calls)
	assert.Equal(t, "User alice successfully created and logged in!", res.Message())

	stored, err := s.users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Liddell", stored.LastName)
	assert.False(t, stored.IsStaff)
	assert.Equal(t, models.RoleSerf, stored.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("s3cret")))
}

func TestProvision_IsIdempotent(t *testing.T) {
	s := newStore(t)
	svc, _ := newProvisioning(s.users, nil, "")

	first, err := svc.Provision(context.Background(), aliceInput())
	require.NoError(t, err)
	second, err := svc.Provision(context.Background(), aliceInput())
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.True(t, second.Authenticated)
	assert.Equal(t, first.User.ID, second.User.ID)

	var count int64
	require.NoError(t, s.db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestProvision_UpsertOverwritesFields(t *testing.T) {
	s := newStore(t)
	svc, _ := newProvisioning(s.users, nil, "")

	_, err := svc.Provision(context.Background(), aliceInput())
	require.NoError(t, err)

	in := aliceInput()
	in.Email = "alice@wonderland.example"
	in.Password = "n3w-pass"
	in.LastName = ""
	in.IsStaff = " YES "
	res, err := svc.Provision(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Authenticated)

	stored, err := s.users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@wonderland.example", stored.Email)
	assert.Equal(t, "Liddell", stored.LastName, "empty last name keeps the stored one")
	assert.True(t, stored.IsStaff)
	assert.Equal(t, models.RoleAdmin, stored.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("n3w-pass")))

	in.IsStaff = "nope"
	_, err = svc.Provision(context.Background(), in)
	require.NoError(t, err)
	stored, err = s.users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, stored.IsStaff)
	assert.Equal(t, models.RoleSerf, stored.Role)
}

func TestProvision_EmailOwnedByAnotherUser(t *testing.T) {
	s := newStore(t)
	svc, _ := newProvisioning(s.users, nil, "")
	_, err := svc.Provision(context.Background(), aliceInput())
	require.NoError(t, err)

	in := aliceInput()
	in.Username = "bob"
	_, err = svc.Provision(context.Background(), in)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeConflict))
}

func TestProvision_StrictCreate(t *testing.T) {
	s := newStore(t)
	svc, _ := newProvisioning(s.users, nil, config.ProvisioningStrictCreate)
	assert.Equal(t, config.ProvisioningStrictCreate, svc.Mode())

	_, err := svc.Provision(context.Background(), aliceInput())
	require.NoError(t, err)

	_, err = svc.Provision(context.Background(), aliceInput())
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeConflict))
	assert.Contains(t, err.Error(), "Username already taken")

	in := aliceInput()
	in.Username = "alice2"
	_, err = svc.Provision(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email already registered")
}

func TestProvision_HealsMissingSchemaOnce(t *testing.T) {
	db := testutil.OpenSQLite(t)
	users := repository.NewUserRepository(db)

	calls := 0
	schemaInit := database.SchemaInitializer(db, testutil.TestConfig())
	initSchema := func(ctx context.Context) error {
		calls++
		return schemaInit(ctx)
	}
	svc, _ := newProvisioning(users, initSchema, "")

	res, err := svc.Provision(context.Background(), aliceInput())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Authenticated)
	assert.Equal(t, 1, calls)

	_, err = svc.Provision(context.Background(), aliceInput())
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "initializer only runs when tables are missing")
}

func TestProvision_SchemaStillMissingAfterInit(t *testing.T) {
	db := testutil.OpenSQLite(t)
	users := repository.NewUserRepository(db)

	calls := 0
	svc, _ := newProvisioning(users, func(context.Context) error {
		calls++
		return nil
	}, "")

	_, err := svc.Provision(context.Background(), aliceInput())
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeStorageUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, models.StatusFor(err))
	assert.Equal(t, 1, calls)
}

func TestProvision_InitializerFailure(t *testing.T) {
	db := testutil.OpenSQLite(t)
	svc, _ := newProvisioning(repository.NewUserRepository(db), func(context.Context) error {
		return errors.New("disk full")
	}, "")

	_, err := svc.Provision(context.Background(), aliceInput())
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeStorageUnavailable))
	assert.Contains(t, err.Error(), "disk full")
}

func TestProvision_RetriesLookupAfterCreateRace(t *testing.T) {
	s := newStore(t)
	winner := testutil.CreateUser(t, s.db, "alice", false)

	lookups := 0
	stub := &userRepoStub{
		next: s.users,
		getByUsernameFn: func(ctx context.Context, username string) (*models.User, error) {
			lookups++
			if lookups == 1 {
				// The concurrent request has not committed yet.
				return nil, nil
			}
			return s.users.GetByUsername(ctx, username)
		},
	}
	svc, _ := newProvisioning(stub, nil, "")

	res, err := svc.Provision(context.Background(), aliceInput())
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, winner.ID, res.User.ID)
	assert.Equal(t, 2, lookups)

	var count int64
	require.NoError(t, s.db.Model(&models.User{}).Where("username = ?", "alice").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestProvision_RaceGivesUpAfterBoundedAttempts(t *testing.T) {
	creates := 0
	stub := &userRepoStub{
		getByUsernameFn: func(context.Context, string) (*models.User, error) { return nil, nil },
		createFn: func(context.Context, *models.User) error {
			creates++
			return models.NewConflictError("Record already exists", nil)
		},
	}
	svc, _ := newProvisioning(stub, nil, "")

	_, err := svc.Provision(context.Background(), aliceInput())
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeConflict))
	assert.Equal(t, maxLookupAttempts, creates)
}

func TestProvision_SessionFailureIsNotFatal(t *testing.T) {
	s := newStore(t)
	sessions := &sessionStub{err: errors.New("signing key unavailable")}
	svc := NewProvisioningService(s.users, nil, sessions, "").WithBcryptCost(bcrypt.MinCost)

	res, err := svc.Provision(context.Background(), aliceInput())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.Authenticated)
	assert.Empty(t, res.Token)
}
