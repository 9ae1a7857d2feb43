package handlers

import (
	"net/http"

	"github.com/go-authgate/grantd/internal/keys"
	"github.com/go-authgate/grantd/internal/models"

	"github.com/gin-gonic/gin"
)

// KeySetSource publishes the verification keys. *keys.Manager satisfies it.
type KeySetSource interface {
	PublicKeySet() keys.JWKS
}

// DiscoveryHandler serves JWKS and authorization server metadata.
type DiscoveryHandler struct {
	keys    KeySetSource
	baseURL string
	scopes  []string
}

func NewDiscoveryHandler(ks KeySetSource, baseURL string, scopes []string) *DiscoveryHandler {
	return &DiscoveryHandler{keys: ks, baseURL: baseURL, scopes: scopes}
}

// discoveryMetadata is the RFC 8414 document. The same body is served at
// the OpenID Connect discovery path.
type discoveryMetadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	JWKSURI                       string   `json:"jwks_uri"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	GrantTypesSupported           []string `json:"grant_types_supported"`
	ScopesSupported               []string `json:"scopes_supported,omitempty"`
	TokenEndpointAuthMethods      []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
	SubjectTypesSupported         []string `json:"subject_types_supported"`
	SigningAlgValuesSupported     []string `json:"id_token_signing_alg_values_supported"`
}

// Metadata handles /.well-known/oauth-authorization-server and
// /.well-known/openid-configuration.
func (h *DiscoveryHandler) Metadata(c *gin.Context) {
	c.JSON(http.StatusOK, discoveryMetadata{
		Issuer:                 h.baseURL,
		AuthorizationEndpoint:  h.baseURL + "/oauth2/authorize",
		TokenEndpoint:          h.baseURL + "/oauth2/token",
		JWKSURI:                h.baseURL + "/oauth2/jwks",
		ResponseTypesSupported: []string{"code"},
		GrantTypesSupported: []string{
			models.GrantTypeAuthorizationCode,
			models.GrantTypeClientCredentials,
			models.GrantTypeRefreshToken,
		},
		ScopesSupported: h.scopes,
		TokenEndpointAuthMethods: []string{
			"client_secret_basic",
			"client_secret_post",
			"none",
		},
		CodeChallengeMethodsSupported: []string{models.PKCEMethodS256, models.PKCEMethodPlain},
		SubjectTypesSupported:         []string{"public"},
		SigningAlgValuesSupported:     []string{"RS256"},
	})
}

// JWKS handles /oauth2/jwks and /.well-known/jwks.json.
func (h *DiscoveryHandler) JWKS(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, h.keys.PublicKeySet())
}
