package core

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned by a UserDirectory when an identifier does not
// resolve to a resource owner.
var ErrUserNotFound = errors.New("user not found")

// Identity is a resource owner as seen by the authorization server.
type Identity struct {
	Subject  string // stable identifier placed in the sub claim
	Username string
	Email    string // Optional
	FullName string // Optional
}

// UserDirectory resolves resource owners for the authorization-code flow.
// Registration and profile management live outside this server.
type UserDirectory interface {
	// ResolveSubject maps a login identifier to the owner's subject.
	// Returns ErrUserNotFound when the identifier is unknown.
	ResolveSubject(ctx context.Context, identifier string) (*Identity, error)
	// Authenticate verifies a password login and returns the owner.
	Authenticate(ctx context.Context, username, password string) (*Identity, error)
	Name() string
}
