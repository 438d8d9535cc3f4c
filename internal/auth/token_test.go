package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloudysky/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-tests-only-0123456789"

func TestIssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)

	token, err := issuer.Issue(42, "alice")
	require.NoError(t, err)

	claims, err := issuer.Parse(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 2*time.Second)
}

func TestParse_Rejects(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	ctx := context.Background()

	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	valid := func() jwt.MapClaims {
		now := time.Now()
		return jwt.MapClaims{
			"sub": "7", "iss": Issuer, "aud": Audience,
			"exp": now.Add(time.Hour).Unix(), "iat": now.Unix(), "nbf": now.Unix(),
		}
	}

	tests := []struct {
		name  string
		token func() string
	}{
		{name: "garbage", token: func() string { return "not-a-token" }},
		{name: "wrong secret", token: func() string { return sign(valid(), "another-secret") }},
		{name: "wrong issuer", token: func() string {
			c := valid()
			c["iss"] = "someone-else"
			return sign(c, testSecret)
		}},
		{name: "wrong audience", token: func() string {
			c := valid()
			c["aud"] = "someone-else"
			return sign(c, testSecret)
		}},
		{name: "expired", token: func() string {
			c := valid()
			c["exp"] = time.Now().Add(-time.Minute).Unix()
			return sign(c, testSecret)
		}},
		{name: "missing expiry", token: func() string {
			c := valid()
			delete(c, "exp")
			return sign(c, testSecret)
		}},
		{name: "non numeric subject", token: func() string {
			c := valid()
			c["sub"] = "alice"
			return sign(c, testSecret)
		}},
		{name: "none algorithm", token: func() string {
			s, err := jwt.NewWithClaims(jwt.SigningMethodNone, valid()).SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)
			return s
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Parse(ctx, tt.token())
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssue_RequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer("", time.Hour).Issue(1, "alice")
	assert.Error(t, err)
}

func TestRevoke(t *testing.T) {
	mr := testutil.UseMiniredis(t)
	issuer := NewTokenIssuer(testSecret, time.Hour)
	ctx := context.Background()

	token, err := issuer.Issue(1, "alice")
	require.NoError(t, err)
	claims, err := issuer.Parse(ctx, token)
	require.NoError(t, err)

	require.NoError(t, issuer.Revoke(ctx, claims))
	assert.True(t, mr.Exists("blacklist:"+claims.ID))

	_, err = issuer.Parse(ctx, token)
	assert.ErrorIs(t, err, ErrRevoked)

	other, err := issuer.Issue(1, "alice")
	require.NoError(t, err)
	_, err = issuer.Parse(ctx, other)
	assert.NoError(t, err, "revocation is per token")
}

func TestTokenFromRequest(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(TokenFromRequest(c))
	})

	read := func(req *httptestRequest) string {
		resp, err := app.Test(req.build())
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	assert.Equal(t, "abc", read(&httptestRequest{header: "Bearer abc"}))
	assert.Equal(t, "", read(&httptestRequest{header: "Token abc"}))
	assert.Equal(t, "xyz", read(&httptestRequest{cookie: "xyz"}))
	assert.Equal(t, "abc", read(&httptestRequest{header: "Bearer abc", cookie: "xyz"}))
	assert.Equal(t, "", read(&httptestRequest{}))
}

type httptestRequest struct {
	header string
	cookie string
}

func (r *httptestRequest) build() *http.Request {
	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	if r.header != "" {
		req.Header.Set(fiber.HeaderAuthorization, r.header)
	}
	if r.cookie != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: r.cookie})
	}
	return req
}
