package core

import (
	"context"
	"crypto/rsa"
)

// KeyProvider supplies the RSA private key used to sign access tokens.
// Backing may be a PEM file, a generated key or an external secret manager.
type KeyProvider interface {
	// PrivateKey returns the key and its stable key identifier.
	PrivateKey(ctx context.Context) (kid string, key *rsa.PrivateKey, err error)
}
