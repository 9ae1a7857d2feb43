package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsent_Covers(t *testing.T) {
	pending := &PendingAuthorization{
		ClientID: "web-client",
		Scopes:   []string{"openid", "read"},
	}
	consent := pending.Approve("user:alice", time.Now())

	assert.True(t, consent.Covers("web-client", "user:alice", []string{"openid", "read"}))
	assert.True(t, consent.Covers("web-client", "user:alice", []string{"read"}))
	assert.False(t, consent.Covers("web-client", "user:alice", []string{"read", "write"}))
	assert.False(t, consent.Covers("spa-client", "user:alice", []string{"read"}))
	assert.False(t, consent.Covers("web-client", "user:bob", []string{"read"}))
}

func TestConsent_SessionRoundTrip(t *testing.T) {
	pending := &PendingAuthorization{ClientID: "web-client", Scopes: []string{"read"}}
	encoded, err := EncodeSessionValue(pending.Approve("user:alice", time.Now()))
	require.NoError(t, err)

	var consent Consent
	require.NoError(t, DecodeSessionValue(encoded, &consent))
	assert.True(t, consent.Covers("web-client", "user:alice", []string{"read"}))

	assert.ErrorIs(t, DecodeSessionValue(nil, &consent), ErrInvalidRequest)
}
