package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(32)
	require.NoError(t, err)
	b, err := RandomToken(32)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b, "random tokens should not repeat")
}

func TestSHA256Hex(t *testing.T) {
	// echo -n "abc" | sha256sum
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		SHA256Hex("abc"),
	)
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqual("secret", "secret"))
	assert.False(t, ConstantTimeEqual("secret", "secreT"))
	assert.False(t, ConstantTimeEqual("secret", "secret-longer"))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "abcdefgh", Prefix("abcdefghijkl", 8))
	assert.Equal(t, "abc", Prefix("abc", 8))
}

func TestIPContext(t *testing.T) {
	ctx := SetIPContext(context.Background(), "192.168.1.1")
	assert.Equal(t, "192.168.1.1", GetIPFromContext(ctx))

	empty := SetIPContext(context.Background(), "")
	assert.Empty(t, GetIPFromContext(empty))
}

func TestIsRedirectSafe(t *testing.T) {
	base := "http://localhost:8080"
	tests := []struct {
		url  string
		want bool
	}{
		{"", true},
		{"/oauth2/authorize?client_id=web-client", true},
		{"//evil.com", false},
		{"/\\evil.com", false},
		{"http://localhost:8080/oauth2/authorize", true},
		{"https://evil.com/", false},
		{"javascript:alert(1)", false},
		{"/path\r\nSet-Cookie: x=y", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRedirectSafe(tt.url, base))
		})
	}
}
