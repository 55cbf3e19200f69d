// internal/auth/callback.go
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

// SecretHeader carries the pre-shared secret from the external scheduler.
const SecretHeader = "X-Callback-Secret"

// CallbackAuthenticator validates that an inbound trigger comes from the
// trusted external scheduler. Two mechanisms are accepted: a bearer token
// (verified against JWTSecret when configured, otherwise checked for
// shape only) or a pre-shared secret header.
type CallbackAuthenticator struct {
	SharedSecret string
	JWTSecret    string
	Logger       *zap.Logger
}

func NewCallbackAuthenticator(sharedSecret, jwtSecret string, logger *zap.Logger) *CallbackAuthenticator {
	return &CallbackAuthenticator{
		SharedSecret: sharedSecret,
		JWTSecret:    jwtSecret,
		Logger:       logger.Named("auth.callback"),
	}
}

// Authenticate returns nil when the request is trusted and an AuthError
// otherwise. Allowing a request because no secret is configured at all
// is logged as a configuration warning, not a silent success.
func (a *CallbackAuthenticator) Authenticate(r *http.Request) error {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		return a.checkBearer(authHeader)
	}

	if a.SharedSecret != "" {
		provided := r.Header.Get(SecretHeader)
		if provided == "" {
			return appErrors.NewAuth("missing callback credentials")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(a.SharedSecret)) != 1 {
			return appErrors.NewAuth("callback secret mismatch")
		}
		return nil
	}

	a.Logger.Warn("no callback secret configured; allowing unauthenticated trigger")
	return nil
}

func (a *CallbackAuthenticator) checkBearer(authHeader string) error {
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" || tokenString == authHeader {
		return appErrors.NewAuth("malformed authorization header")
	}

	if a.JWTSecret != "" {
		_, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			return []byte(a.JWTSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			return appErrors.NewAuth("invalid bearer token: " + err.Error())
		}
		return nil
	}

	// No verification key configured: the platform layer in front of us
	// is trusted to have verified the token, so only shape is checked.
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return appErrors.NewAuth("unparseable bearer token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return appErrors.NewAuth("invalid token claims")
	}
	if sub, _ := claims.GetSubject(); sub == "" {
		return appErrors.NewAuth("bearer token missing subject")
	}
	a.Logger.Warn("bearer token accepted without signature verification; set CALLBACK_JWT_SECRET to verify")
	return nil
}
