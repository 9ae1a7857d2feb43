package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-authgate/grantd/internal/core"
	"github.com/go-authgate/grantd/internal/models"
	"github.com/go-authgate/grantd/internal/token"
)

// GrantState is a step of token endpoint processing.
type GrantState string

const (
	StateReceivedRequest     GrantState = "ReceivedRequest"
	StateClientAuthenticated GrantState = "ClientAuthenticated"
	StateGrantValidated      GrantState = "GrantValidated"
	StateTokensIssued        GrantState = "TokensIssued"
	StateRejected            GrantState = "Rejected"
)

// GrantRequest is a parsed token endpoint request.
type GrantRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Scope        string

	// authorization_code
	Code         string
	RedirectURI  string
	CodeVerifier string

	// refresh_token
	RefreshToken string
}

// GrantProcessor runs a token request through client authentication,
// grant validation and issuance. The first failing step rejects the
// request and nothing is issued.
type GrantProcessor struct {
	registry *ClientRegistry
	codes    *AuthorizationCodeService
	issuer   *TokenIssuer
	metrics  core.Recorder
	debug    bool
}

func NewGrantProcessor(
	registry *ClientRegistry,
	codes *AuthorizationCodeService,
	issuer *TokenIssuer,
	metrics core.Recorder,
	logTransitions bool,
) *GrantProcessor {
	return &GrantProcessor{
		registry: registry,
		codes:    codes,
		issuer:   issuer,
		metrics:  metrics,
		debug:    logTransitions,
	}
}

// grantRun tracks one request through the state machine.
type grantRun struct {
	p     *GrantProcessor
	req   *GrantRequest
	state GrantState
}

func (r *grantRun) advance(next GrantState) {
	if r.p.debug {
		log.Printf("[Grant] %s client=%s: %s -> %s", r.req.GrantType, r.req.ClientID, r.state, next)
	}
	r.state = next
}

func (r *grantRun) reject(err error) error {
	if r.p.debug {
		log.Printf("[Grant] %s client=%s: %s -> %s (%v)",
			r.req.GrantType, r.req.ClientID, r.state, StateRejected, err)
	}
	r.state = StateRejected
	return err
}

// Process handles one token request.
func (p *GrantProcessor) Process(ctx context.Context, req GrantRequest) (*TokenSet, error) {
	run := &grantRun{p: p, req: &req, state: StateReceivedRequest}
	set, err := p.process(ctx, run)
	p.metrics.RecordGrantRequest(grantTypeLabel(req.GrantType), string(run.state))
	return set, err
}

func grantTypeLabel(grantType string) string {
	switch grantType {
	case models.GrantTypeClientCredentials, models.GrantTypeAuthorizationCode, models.GrantTypeRefreshToken:
		return grantType
	default:
		return "unsupported"
	}
}

func (p *GrantProcessor) process(ctx context.Context, run *grantRun) (*TokenSet, error) {
	req := run.req
	switch req.GrantType {
	case "":
		return nil, run.reject(fmt.Errorf("%w: missing grant_type", ErrInvalidRequest))
	case models.GrantTypeClientCredentials, models.GrantTypeAuthorizationCode, models.GrantTypeRefreshToken:
	default:
		return nil, run.reject(fmt.Errorf("%w: %s", ErrUnsupportedGrantType, req.GrantType))
	}

	client, err := p.authenticateClient(ctx, req)
	if err != nil {
		return nil, run.reject(err)
	}
	run.advance(StateClientAuthenticated)

	if !p.registry.IsGrantAllowed(client, req.GrantType) {
		return nil, run.reject(fmt.Errorf("%w: %s not allowed for client", ErrUnauthorizedClient, req.GrantType))
	}

	var set *TokenSet
	switch req.GrantType {
	case models.GrantTypeClientCredentials:
		set, err = p.clientCredentials(ctx, run, client)
	case models.GrantTypeAuthorizationCode:
		set, err = p.authorizationCode(ctx, run, client)
	case models.GrantTypeRefreshToken:
		set, err = p.refreshToken(ctx, run, client)
	}
	if err != nil {
		return nil, run.reject(err)
	}
	run.advance(StateTokensIssued)
	return set, nil
}

// authenticateClient requires the secret of confidential clients. Public
// clients are identified by client_id alone and must not send a secret.
func (p *GrantProcessor) authenticateClient(
	ctx context.Context,
	req *GrantRequest,
) (*models.RegisteredClient, error) {
	client, err := p.registry.FindByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, ErrInvalidClient) {
			// Run the full comparison so unknown ids cost the same as bad secrets.
			_, err = p.registry.Authenticate(ctx, req.ClientID, req.ClientSecret)
		}
		return nil, err
	}
	if client.IsPublic() {
		if req.ClientSecret != "" {
			return nil, fmt.Errorf("%w: public client sent a secret", ErrInvalidClient)
		}
		return client, nil
	}
	return p.registry.Authenticate(ctx, req.ClientID, req.ClientSecret)
}

func (p *GrantProcessor) clientCredentials(
	ctx context.Context,
	run *grantRun,
	client *models.RegisteredClient,
) (*TokenSet, error) {
	if client.IsPublic() {
		return nil, fmt.Errorf("%w: public clients cannot use client_credentials", ErrUnauthorizedClient)
	}
	scopes, err := p.registry.NarrowScope(client, token.ParseScope(run.req.Scope))
	if err != nil {
		return nil, err
	}
	run.advance(StateGrantValidated)
	return p.issuer.IssueForClientCredentials(ctx, client, scopes)
}

func (p *GrantProcessor) authorizationCode(
	ctx context.Context,
	run *grantRun,
	client *models.RegisteredClient,
) (*TokenSet, error) {
	req := run.req
	if req.Code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrInvalidRequest)
	}
	if req.RedirectURI == "" {
		return nil, fmt.Errorf("%w: missing redirect_uri", ErrInvalidRequest)
	}
	if (client.IsPublic() || client.RequirePKCE) && req.CodeVerifier == "" {
		return nil, fmt.Errorf("%w: code_verifier required", ErrInvalidGrant)
	}

	code, err := p.codes.Redeem(ctx, req.Code, client.ClientID, req.RedirectURI, req.CodeVerifier)
	if err != nil {
		return nil, err
	}
	run.advance(StateGrantValidated)
	return p.issuer.IssueForAuthorizationCode(ctx, client, code)
}

func (p *GrantProcessor) refreshToken(
	ctx context.Context,
	run *grantRun,
	client *models.RegisteredClient,
) (*TokenSet, error) {
	if run.req.RefreshToken == "" {
		return nil, fmt.Errorf("%w: missing refresh_token", ErrInvalidRequest)
	}
	run.advance(StateGrantValidated)
	return p.issuer.IssueForRefreshToken(ctx, client, run.req.RefreshToken, token.ParseScope(run.req.Scope))
}
