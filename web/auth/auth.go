// Package auth verifies bearer tokens against the identity provider and puts
// the caller uid in the request context.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/gosom/store-provisioner/identity"
)

// ContextKey is used to store caller information in the request context
type ContextKey string

const (
	// UserIDKey is the context key for storing the caller uid
	UserIDKey ContextKey = "user_id"
	// AuthHeaderName is the name of the authentication header
	AuthHeaderName = "Authorization"
)

// Middleware authenticates requests using the identity provider.
type Middleware struct {
	idp    identity.Provider
	logger *zap.Logger
}

func NewMiddleware(idp identity.Provider, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Middleware{idp: idp, logger: logger}
}

// Authenticate extracts the bearer token, verifies it, and stores the caller
// uid in the context. Requests without a valid token still reach the handler
// with no uid; the provisioning service reports unauthenticated for those.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get(AuthHeaderName)
		if authHeader == "" {
			next.ServeHTTP(w, r)

			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			next.ServeHTTP(w, r)

			return
		}

		uid, err := m.idp.VerifyToken(r.Context(), parts[1])
		if err != nil {
			m.logger.Debug("token verification failed",
				zap.String("path", r.URL.Path),
				zap.Error(err))

			next.ServeHTTP(w, r)

			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the caller uid from the request context.
func GetUserID(ctx context.Context) (string, error) {
	uid, ok := ctx.Value(UserIDKey).(string)
	if !ok || uid == "" {
		return "", errors.New("user not authenticated")
	}

	return uid, nil
}
