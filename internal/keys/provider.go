package keys

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GeneratedKeyProvider creates a fresh RSA key on every call.
type GeneratedKeyProvider struct {
	Bits int
}

func (p GeneratedKeyProvider) PrivateKey(_ context.Context) (string, *rsa.PrivateKey, error) {
	key, err := GenerateRSAKey(p.Bits)
	if err != nil {
		return "", nil, err
	}
	return uuid.New().String(), key, nil
}

// PEMFileProvider loads a PKCS#1 or PKCS#8 RSA private key from disk.
// The key id is the RFC 7638 thumbprint of the public key.
type PEMFileProvider struct {
	Path string
}

func (p PEMFileProvider) PrivateKey(_ context.Context) (string, *rsa.PrivateKey, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read signing key %s: %w", p.Path, err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse signing key %s: %w", p.Path, err)
	}
	if key.N.BitLen() < MinKeyBits {
		return "", nil, ErrKeyTooSmall
	}
	return Thumbprint(&key.PublicKey), key, nil
}

// GenerateRSAKey generates an RSA private key of at least MinKeyBits.
func GenerateRSAKey(bits int) (*rsa.PrivateKey, error) {
	if bits < MinKeyBits {
		return nil, ErrKeyTooSmall
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate rsa key: %w", err)
	}
	return key, nil
}

// EncodePrivateKeyPEM encodes key as a PKCS#8 PEM block.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
