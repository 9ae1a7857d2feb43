package keys

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
)

// JSONWebKey is the public half of a signing key (RFC 7517).
type JSONWebKey struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is a JSON Web Key Set.
type JWKS struct {
	Keys []JSONWebKey `json:"keys"`
}

// PublicKeySet returns every key that can still verify tokens, current first.
func (m *Manager) PublicKeySet() JWKS {
	s := m.set.Load()
	now := m.now()
	out := JWKS{Keys: make([]JSONWebKey, 0, len(s.ordered))}
	for _, k := range s.ordered {
		if !k.verifiableAt(now) {
			continue
		}
		out.Keys = append(out.Keys, publicJWK(k.ID, &k.Private.PublicKey))
	}
	return out
}

func publicJWK(kid string, pub *rsa.PublicKey) JSONWebKey {
	return JSONWebKey{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// Thumbprint computes the RFC 7638 SHA-256 thumbprint of an RSA public key.
// It gives loaded keys a key id that stays the same across restarts.
func Thumbprint(pub *rsa.PublicKey) string {
	jwk := publicJWK("", pub)
	// members in lexicographic order, no whitespace
	canonical, _ := json.Marshal(struct {
		E   string `json:"e"`
		Kty string `json:"kty"`
		N   string `json:"n"`
	}{E: jwk.E, Kty: jwk.Kty, N: jwk.N})
	sum := sha256.Sum256(canonical)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
