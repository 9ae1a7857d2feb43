package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"

	"github.com/go-authgate/grantd/internal/client"
	"github.com/go-authgate/grantd/internal/config"
	"github.com/go-authgate/grantd/internal/core"
)

var _ core.UserDirectory = (*HTTPAPIUserDirectory)(nil)

// lookupPath is appended to USER_API_URL for subject resolution.
const lookupPath = "/lookup"

// HTTPAPIUserDirectory resolves resource owners through an external HTTP API.
type HTTPAPIUserDirectory struct {
	baseURL     string
	retryClient *retry.Client
	metrics     core.Recorder
}

// NewHTTPAPIUserDirectory builds the directory with an authenticated, retrying client.
func NewHTTPAPIUserDirectory(
	cfg *config.Config,
	metrics core.Recorder,
) (*HTTPAPIUserDirectory, error) {
	retryClient, err := client.NewRetryClient(client.RetryOptions{
		AuthMode:           cfg.UserAPIAuthMode,
		AuthSecret:         cfg.UserAPIAuthSecret,
		AuthHeader:         cfg.UserAPIAuthHeader,
		Timeout:            cfg.UserAPITimeout,
		InsecureSkipVerify: cfg.UserAPIInsecureSkipTLS,
		MaxRetries:         cfg.UserAPIMaxRetries,
		RetryDelay:         cfg.UserAPIRetryDelay,
		MaxRetryDelay:      cfg.UserAPIMaxRetryDelay,
	})
	if err != nil {
		return nil, err
	}

	return &HTTPAPIUserDirectory{
		baseURL:     strings.TrimRight(cfg.UserAPIURL, "/"),
		retryClient: retryClient,
		metrics:     metrics,
	}, nil
}

// Authenticate verifies credentials against the external API.
func (d *HTTPAPIUserDirectory) Authenticate(
	ctx context.Context,
	username, password string,
) (*core.Identity, error) {
	resp, err := d.post(ctx, d.baseURL, APIAuthRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, ErrHTTPAPIAuthFailed
	}

	// A successful login must name the user
	if resp.UserID == "" {
		return nil, fmt.Errorf(
			"%w: external API returned success=true but missing user_id",
			ErrHTTPAPIInvalidResp,
		)
	}

	return toIdentity(username, resp), nil
}

// ResolveSubject asks the external API whether identifier names a known user.
func (d *HTTPAPIUserDirectory) ResolveSubject(
	ctx context.Context,
	identifier string,
) (*core.Identity, error) {
	resp, err := d.post(ctx, d.baseURL+lookupPath, APILookupRequest{Username: identifier})
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.UserID == "" {
		return nil, core.ErrUserNotFound
	}
	return toIdentity(identifier, resp), nil
}

func (d *HTTPAPIUserDirectory) Name() string {
	return "http_api"
}

func (d *HTTPAPIUserDirectory) post(
	ctx context.Context,
	url string,
	reqBody any,
) (*APIUserResponse, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	resp, err := d.retryClient.Post(
		ctx,
		url,
		retry.WithBody("application/json", bytes.NewBuffer(jsonData)),
	)
	d.metrics.RecordExternalAPICall(d.Name(), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPAPIConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response", ErrHTTPAPIInvalidResp)
	}

	if resp.StatusCode == http.StatusNotFound && url != d.baseURL {
		return &APIUserResponse{}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, body)
	}

	var out APIUserResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPAPIInvalidResp, err)
	}
	return &out, nil
}

func statusError(status int, body []byte) error {
	var apiResp APIUserResponse
	if err := json.Unmarshal(body, &apiResp); err == nil && apiResp.Message != "" {
		return fmt.Errorf("%w: HTTP %d - %s", ErrHTTPAPIAuthFailed, status, apiResp.Message)
	}
	// Limit body preview to 200 characters to avoid overwhelming logs
	bodyPreview := string(body)
	if len(bodyPreview) > 200 {
		bodyPreview = bodyPreview[:200] + "..."
	}
	return fmt.Errorf("%w: HTTP %d - %s", ErrHTTPAPIInvalidResp, status, bodyPreview)
}

func toIdentity(username string, resp *APIUserResponse) *core.Identity {
	return &core.Identity{
		Subject:  resp.UserID,
		Username: username,
		Email:    resp.Email,
		FullName: resp.FullName,
	}
}
