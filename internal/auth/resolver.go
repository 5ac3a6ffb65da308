package auth

import (
	"context"
	"errors"
	"fmt"
)

// IdentityLookup finds a non-deleted user by id. Implementations return
// ErrIdentityNotFound when no such user exists.
type IdentityLookup interface {
	FindActiveUser(ctx context.Context, id string) (*User, error)
}

// Resolver turns a raw access token into a Principal.
type Resolver struct {
	tokens *TokenService
	users  IdentityLookup
}

// NewResolver wires a resolver to its token service and identity source.
func NewResolver(tokens *TokenService, users IdentityLookup) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Resolve verifies raw and loads the identity it names. Every
// authentication failure is an *UnauthorizedError; lookup failures other
// than a missing identity are returned as-is.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Principal, error) {
	if raw == "" {
		return Principal{}, unauthorized("Unauthorized request: No token provided", nil)
	}
	claims, err := r.tokens.VerifyAccess(raw)
	if err != nil {
		return Principal{}, unauthorized(fmt.Sprintf("Invalid access token: %s", err), err)
	}
	u, err := r.users.FindActiveUser(ctx, claims.Subject)
	if errors.Is(err, ErrIdentityNotFound) {
		return Principal{}, unauthorized("Invalid access token: user not found", err)
	}
	if err != nil {
		return Principal{}, err
	}
	return NewPrincipal(u), nil
}
