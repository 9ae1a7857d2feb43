package auth

import (
	"context"
	"testing"

	"github.com/go-authgate/grantd/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStaticUserDirectory(t *testing.T) {
	d, err := NewStaticUserDirectory([]string{"alice:wonderland", " bob :s3cr:et"})
	require.NoError(t, err)

	id, err := d.ResolveSubject(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "user:bob", id.Subject)

	// Only the first colon separates username and password
	_, err = d.Authenticate(context.Background(), "bob", "s3cr:et")
	assert.NoError(t, err)
}

func TestNewStaticUserDirectory_InvalidEntries(t *testing.T) {
	for _, entry := range []string{"no-colon", ":password", "alice:"} {
		t.Run(entry, func(t *testing.T) {
			_, err := NewStaticUserDirectory([]string{entry})
			assert.Error(t, err)
		})
	}
}

func TestStaticUserDirectory_Authenticate(t *testing.T) {
	d, err := NewStaticUserDirectory([]string{"alice:wonderland"})
	require.NoError(t, err)
	ctx := context.Background()

	id, err := d.Authenticate(ctx, "alice", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, "user:alice", id.Subject)
	assert.Equal(t, "alice", id.Username)

	_, err = d.Authenticate(ctx, "alice", "looking-glass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = d.Authenticate(ctx, "mallory", "wonderland")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestStaticUserDirectory_ResolveSubject(t *testing.T) {
	d, err := NewStaticUserDirectory(nil)
	require.NoError(t, err)
	require.NoError(t, d.Add("carol", "pw"))

	_, err = d.ResolveSubject(context.Background(), "dave")
	assert.ErrorIs(t, err, core.ErrUserNotFound)

	id, err := d.ResolveSubject(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, "user:carol", id.Subject)
	assert.Equal(t, "static", d.Name())
}
