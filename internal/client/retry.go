package client

import (
	"fmt"
	"time"

	httpclient "github.com/appleboy/go-httpclient"
	retry "github.com/appleboy/go-httpretry"
)

// RetryOptions configures a client for a remote service that authenticates
// callers by shared secret.
type RetryOptions struct {
	AuthMode   string // "none", "simple" or "hmac"; empty means none
	AuthSecret string
	AuthHeader string // header carrying the secret in simple mode

	Timeout            time.Duration
	InsecureSkipVerify bool

	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewRetryClient returns a client that signs every attempt and retries
// 5xx and 429 responses with exponential backoff.
func NewRetryClient(opts RetryOptions) (*retry.Client, error) {
	mode := opts.AuthMode
	if mode == "" {
		mode = httpclient.AuthModeNone
	}

	signed, err := httpclient.NewAuthClient(
		mode,
		opts.AuthSecret,
		httpclient.WithTimeout(opts.Timeout),
		httpclient.WithHeaderName(opts.AuthHeader),
		httpclient.WithInsecureSkipVerify(opts.InsecureSkipVerify),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s auth client: %w", mode, err)
	}

	c, err := retry.NewRealtimeClient(
		retry.WithHTTPClient(signed),
		retry.WithMaxRetries(opts.MaxRetries),
		retry.WithInitialRetryDelay(opts.RetryDelay),
		retry.WithMaxRetryDelay(opts.MaxRetryDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}
	return c, nil
}
