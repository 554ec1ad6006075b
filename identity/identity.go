// Package identity wraps the external identity provider. The gateway does no
// logic of its own beyond parameter passing; callers own ordering and error
// semantics.
package identity

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound  = errors.New("identity: user not found")
	ErrEmailTaken    = errors.New("identity: email already in use")
	ErrTokenInvalid  = errors.New("identity: invalid token")
	ErrProviderError = errors.New("identity: provider error")
)

// Record is an identity-provider user record.
type Record struct {
	UID         string
	Email       string
	DisplayName string
}

// CreateUserParams are the attributes for a new identity.
type CreateUserParams struct {
	Email       string
	Password    string
	DisplayName string
}

// Provider is the create-user / set-claims / lookup capability consumed by
// the provisioning service, plus token verification for the HTTP layer.
type Provider interface {
	CreateUser(ctx context.Context, params CreateUserParams) (Record, error)
	SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error
	GetUserByEmail(ctx context.Context, email string) (Record, error)

	// VerifyToken resolves a bearer token to the uid it was issued for.
	VerifyToken(ctx context.Context, token string) (string, error)
}
