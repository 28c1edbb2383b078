// Package auth defines the authentication seam for the HTTP transport.
// The transport only depends on the Authenticator interface; deployments
// that need OIDC or another scheme can slot in their own implementation.
package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized indicates authentication failed or no valid credentials
// were supplied.
var ErrUnauthorized = errors.New("unauthorized")

// UserInfo represents an authenticated principal.
// Implementations should be lightweight and safe for concurrent use.
type UserInfo interface {
	// UserID returns the unique identifier for the user.
	UserID() string
}

// Authenticator validates bearer tokens and returns associated user info.
// It should return ErrUnauthorized for invalid credentials.
type Authenticator interface {
	CheckAuthentication(ctx context.Context, tok string) (UserInfo, error)
}
