package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
)

// StaticTokenAuthenticator accepts exactly one pre-shared bearer token.
// The comparison is constant-time so response latency leaks nothing about
// how much of a guessed token matched.
type StaticTokenAuthenticator struct {
	token []byte
}

var _ Authenticator = (*StaticTokenAuthenticator)(nil)

// NewStaticTokenAuthenticator builds an authenticator for the given token.
func NewStaticTokenAuthenticator(token string) (*StaticTokenAuthenticator, error) {
	if token == "" {
		return nil, fmt.Errorf("auth token must not be empty")
	}
	return &StaticTokenAuthenticator{token: []byte(token)}, nil
}

// CheckAuthentication implements Authenticator.
func (a *StaticTokenAuthenticator) CheckAuthentication(ctx context.Context, tok string) (UserInfo, error) {
	if subtle.ConstantTimeCompare(a.token, []byte(tok)) != 1 {
		return nil, ErrUnauthorized
	}
	return staticUser{}, nil
}

type staticUser struct{}

func (staticUser) UserID() string { return "static-token-user" }
