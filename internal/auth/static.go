package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-authgate/grantd/internal/core"

	"golang.org/x/crypto/bcrypt"
)

var _ core.UserDirectory = (*StaticUserDirectory)(nil)

// subjectPrefix namespaces static users so their subjects never collide
// with client ids used as the sub of client_credentials tokens.
const subjectPrefix = "user:"

type staticUser struct {
	username     string
	passwordHash []byte
}

// StaticUserDirectory serves a fixed set of users loaded from STATIC_USERS.
type StaticUserDirectory struct {
	mu    sync.RWMutex
	users map[string]staticUser
}

var (
	dummyUserHash     []byte
	dummyUserHashOnce sync.Once
)

// NewStaticUserDirectory parses "username:password" pairs and stores
// bcrypt hashes of the passwords.
func NewStaticUserDirectory(pairs []string) (*StaticUserDirectory, error) {
	d := &StaticUserDirectory{users: make(map[string]staticUser, len(pairs))}
	for _, pair := range pairs {
		username, password, ok := strings.Cut(pair, ":")
		username = strings.TrimSpace(username)
		if !ok || username == "" || password == "" {
			return nil, fmt.Errorf("invalid static user entry %q (want username:password)", pair)
		}
		if err := d.Add(username, password); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Add registers or replaces a user.
func (d *StaticUserDirectory) Add(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password for %q: %w", username, err)
	}
	d.mu.Lock()
	d.users[username] = staticUser{username: username, passwordHash: hash}
	d.mu.Unlock()
	return nil
}

func (d *StaticUserDirectory) ResolveSubject(
	_ context.Context,
	identifier string,
) (*core.Identity, error) {
	d.mu.RLock()
	user, ok := d.users[identifier]
	d.mu.RUnlock()
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return user.identity(), nil
}

func (d *StaticUserDirectory) Authenticate(
	_ context.Context,
	username, password string,
) (*core.Identity, error) {
	d.mu.RLock()
	user, ok := d.users[username]
	d.mu.RUnlock()

	if !ok {
		// Keep the response time of unknown users close to a wrong password
		dummyUserHashOnce.Do(func() {
			dummyUserHash, _ = bcrypt.GenerateFromPassword(
				[]byte("dummy-password"), bcrypt.DefaultCost)
		})
		_ = bcrypt.CompareHashAndPassword(dummyUserHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user.identity(), nil
}

func (d *StaticUserDirectory) Name() string {
	return "static"
}

func (u staticUser) identity() *core.Identity {
	return &core.Identity{
		Subject:  subjectPrefix + u.username,
		Username: u.username,
	}
}
