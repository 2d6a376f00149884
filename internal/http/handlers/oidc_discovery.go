package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/wpdrift/worker/internal/app"
	httpx "github.com/wpdrift/worker/internal/http"
)

type oidcMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
}

// NewOIDCDiscoveryHandler publica el documento de configuración OIDC con
// las capacidades reales del server (grants y response types registrados).
func NewOIDCDiscoveryHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			httpx.WriteError(w, http.StatusMethodNotAllowed, "invalid_request", "solo GET/HEAD", 1001)
			return
		}

		iss := strings.TrimRight(c.Cfg.OAuth.Issuer, "/")
		grants := c.OAuth.GrantTypes()
		responseTypes := c.OAuth.ResponseTypes()
		scopes := c.OAuth.ScopeUtil().SupportedScopes()
		sort.Strings(grants)
		sort.Strings(responseTypes)
		sort.Strings(scopes)

		meta := oidcMetadata{
			Issuer:                iss,
			AuthorizationEndpoint: iss + "/oauth/authorize",
			TokenEndpoint:         iss + "/oauth/token",
			IntrospectionEndpoint: iss + "/oauth/introspect",
			RevocationEndpoint:    iss + "/oauth/revoke",
			UserinfoEndpoint:      iss + "/oauth/me",
			JWKSURI:               iss + "/.well-known/keys",

			ResponseTypesSupported:            responseTypes,
			GrantTypesSupported:               grants,
			SubjectTypesSupported:             []string{"public"},
			IDTokenSigningAlgValuesSupported:  []string{"RS256"},
			TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post"},
			CodeChallengeMethodsSupported:     []string{"plain", "S256"},
			ScopesSupported:                   scopes,
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		httpx.WriteJSON(w, http.StatusOK, meta)
	}
}
