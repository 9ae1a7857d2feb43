package keys

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-authgate/grantd/internal/core"

	"github.com/golang-jwt/jwt/v5"
)

// MinKeyBits is the smallest RSA modulus the manager will sign with.
const MinKeyBits = 2048

// SigningKey is one RSA key known to the manager. A retired key no longer
// signs but keeps verifying until every token it signed has expired.
type SigningKey struct {
	ID        string
	Private   *rsa.PrivateKey
	CreatedAt time.Time

	retiredAt atomic.Int64 // unix nanos, 0 while the key is current
	maxExpiry atomic.Int64 // latest exp (unix seconds) of any token signed with this key
}

func (k *SigningKey) IsRetired() bool {
	return k.retiredAt.Load() != 0
}

// RetiredAt returns when the key stopped signing, or the zero time.
func (k *SigningKey) RetiredAt() time.Time {
	if n := k.retiredAt.Load(); n != 0 {
		return time.Unix(0, n)
	}
	return time.Time{}
}

// verifiableAt reports whether tokens signed by k may still be accepted.
func (k *SigningKey) verifiableAt(now time.Time) bool {
	if !k.IsRetired() {
		return true
	}
	return now.Unix() <= k.maxExpiry.Load()
}

func (k *SigningKey) recordExpiry(exp time.Time) {
	unix := exp.Unix()
	for {
		cur := k.maxExpiry.Load()
		if unix <= cur || k.maxExpiry.CompareAndSwap(cur, unix) {
			return
		}
	}
}

// keySet is an immutable snapshot published through Manager.set.
type keySet struct {
	current *SigningKey
	byID    map[string]*SigningKey
	ordered []*SigningKey // current first, then retired newest first
}

// Manager owns the signing keys. Reads take a lock-free snapshot; Rotate and
// PruneExpired build a new snapshot and swap it in atomically.
type Manager struct {
	set atomic.Pointer[keySet]
	mu  sync.Mutex // serializes writers
	now func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a Manager around the key supplied by provider.
func NewManager(ctx context.Context, provider core.KeyProvider, opts ...Option) (*Manager, error) {
	kid, key, err := provider.PrivateKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	return NewManagerWithKey(kid, key, opts...)
}

// NewManagerWithKey builds a Manager around a fixed key.
func NewManagerWithKey(kid string, key *rsa.PrivateKey, opts ...Option) (*Manager, error) {
	m := &Manager{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}

	sk, err := m.newSigningKey(kid, key)
	if err != nil {
		return nil, err
	}
	m.set.Store(&keySet{
		current: sk,
		byID:    map[string]*SigningKey{kid: sk},
		ordered: []*SigningKey{sk},
	})
	return m, nil
}

func (m *Manager) newSigningKey(kid string, key *rsa.PrivateKey) (*SigningKey, error) {
	if key == nil || kid == "" {
		return nil, ErrNoSigningKey
	}
	if key.N.BitLen() < MinKeyBits {
		return nil, ErrKeyTooSmall
	}
	return &SigningKey{ID: kid, Private: key, CreatedAt: m.now()}, nil
}

// CurrentSigningKey returns the key id and private key used for new tokens.
func (m *Manager) CurrentSigningKey() (string, *rsa.PrivateKey) {
	cur := m.set.Load().current
	return cur.ID, cur.Private
}

// Sign serializes claims as an RS256 JWT with the current key id in the header.
func (m *Manager) Sign(claims jwt.Claims) (string, error) {
	cur := m.set.Load().current

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = cur.ID

	signed, err := token.SignedString(cur.Private)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		cur.recordExpiry(exp.Time)
	}
	return signed, nil
}

// Verify checks the signature and expiry of tokenString and decodes it into
// claims. Failures are reported as ErrInvalidSignature, ErrExpired or
// ErrMalformedToken.
func (m *Manager) Verify(tokenString string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	snapshot := m.set.Load()
	now := m.now()

	keyFunc := func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		sk, ok := snapshot.byID[kid]
		if !ok || !sk.verifiableAt(now) {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return &sk.Private.PublicKey, nil
	}

	parserOpts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}, opts...)

	_, err := jwt.ParseWithClaims(tokenString, claims, keyFunc, parserOpts...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

// Rotate makes key the current signing key. The previous key is retired and
// stays in the published key set until the tokens it signed have expired.
func (m *Manager) Rotate(kid string, key *rsa.PrivateKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.set.Load()
	if _, exists := old.byID[kid]; exists {
		return ErrDuplicateKID
	}
	sk, err := m.newSigningKey(kid, key)
	if err != nil {
		return err
	}

	retired := old.current
	retired.retiredAt.Store(m.now().UnixNano())

	next := &keySet{
		current: sk,
		byID:    make(map[string]*SigningKey, len(old.byID)+1),
		ordered: make([]*SigningKey, 0, len(old.ordered)+1),
	}
	next.ordered = append(next.ordered, sk)
	next.ordered = append(next.ordered, old.ordered...)
	for _, k := range next.ordered {
		next.byID[k.ID] = k
	}

	m.set.Store(next)
	log.Printf("[Keys] Rotated signing key: new=%s retired=%s", kid, retired.ID)
	return nil
}

// PruneExpired drops retired keys whose tokens have all expired and returns
// how many were removed.
func (m *Manager) PruneExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.set.Load()
	now := m.now()
	kept := slices.DeleteFunc(slices.Clone(old.ordered), func(k *SigningKey) bool {
		return !k.verifiableAt(now)
	})
	removed := len(old.ordered) - len(kept)
	if removed == 0 {
		return 0
	}

	next := &keySet{current: old.current, byID: make(map[string]*SigningKey, len(kept)), ordered: kept}
	for _, k := range kept {
		next.byID[k.ID] = k
	}
	m.set.Store(next)
	log.Printf("[Keys] Pruned %d retired signing key(s)", removed)
	return removed
}

// Counts returns the number of current and retired keys in the published set.
func (m *Manager) Counts() (active, retired int) {
	s := m.set.Load()
	return 1, len(s.ordered) - 1
}
