package auth_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unclebandit/outreach-backend/internal/auth"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

func signedToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func assertAuthError(t *testing.T, err error) {
	t.Helper()
	var authErr *appErrors.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestSharedSecretMatch(t *testing.T) {
	a := auth.NewCallbackAuthenticator("s3cret", "", zap.NewNop())
	r := httptest.NewRequest("POST", "/runs/daily", nil)
	r.Header.Set(auth.SecretHeader, "s3cret")
	assert.NoError(t, a.Authenticate(r))
}

func TestSharedSecretMismatch(t *testing.T) {
	a := auth.NewCallbackAuthenticator("s3cret", "", zap.NewNop())
	r := httptest.NewRequest("POST", "/runs/daily", nil)
	r.Header.Set(auth.SecretHeader, "wrong")
	assertAuthError(t, a.Authenticate(r))
}

func TestSharedSecretMissingHeader(t *testing.T) {
	a := auth.NewCallbackAuthenticator("s3cret", "", zap.NewNop())
	r := httptest.NewRequest("POST", "/runs/daily", nil)
	assertAuthError(t, a.Authenticate(r))
}

func TestNoSecretConfiguredAllows(t *testing.T) {
	a := auth.NewCallbackAuthenticator("", "", zap.NewNop())
	r := httptest.NewRequest("POST", "/runs/daily", nil)
	assert.NoError(t, a.Authenticate(r))
}

func TestBearerVerifiedWhenKeyConfigured(t *testing.T) {
	a := auth.NewCallbackAuthenticator("", "jwt-key", zap.NewNop())

	r := httptest.NewRequest("POST", "/runs/daily", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, "jwt-key", "scheduler"))
	assert.NoError(t, a.Authenticate(r))

	r = httptest.NewRequest("POST", "/runs/daily", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, "other-key", "scheduler"))
	assertAuthError(t, a.Authenticate(r))
}

func TestBearerShapeCheckedWithoutKey(t *testing.T) {
	a := auth.NewCallbackAuthenticator("", "", zap.NewNop())

	r := httptest.NewRequest("POST", "/runs/daily", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, "anything", "scheduler"))
	assert.NoError(t, a.Authenticate(r))

	// A token without a subject is rejected even unverified.
	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := noSub.SignedString([]byte("anything"))
	require.NoError(t, err)
	r = httptest.NewRequest("POST", "/runs/daily", nil)
	r.Header.Set("Authorization", "Bearer "+s)
	assertAuthError(t, a.Authenticate(r))
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	a := auth.NewCallbackAuthenticator("", "", zap.NewNop())

	for _, header := range []string{"Bearer", "Bearer ", "Basic abc", "garbage"} {
		r := httptest.NewRequest("POST", "/runs/daily", nil)
		r.Header.Set("Authorization", header)
		assertAuthError(t, a.Authenticate(r))
	}
}

// A bearer header wins over the shared secret header: the shared secret
// is not consulted when Authorization is present.
func TestBearerTakesPrecedence(t *testing.T) {
	a := auth.NewCallbackAuthenticator("s3cret", "jwt-key", zap.NewNop())

	r := httptest.NewRequest("POST", "/runs/daily", nil)
	r.Header.Set(auth.SecretHeader, "s3cret")
	r.Header.Set("Authorization", "Bearer "+signedToken(t, "other-key", "scheduler"))
	assertAuthError(t, a.Authenticate(r))
}
