package oauth2

import (
	"context"
	"net/http"
)

// ClientCredentialsGrant emite tokens a nombre del client mismo, sin usuario
// asociado. Solo para clients confidenciales y nunca con refresh token
// (RFC 6749 §4.4.3).
type ClientCredentialsGrant struct{}

func NewClientCredentialsGrant() *ClientCredentialsGrant { return &ClientCredentialsGrant{} }

func (g *ClientCredentialsGrant) Identifier() string { return "client_credentials" }

func (g *ClientCredentialsGrant) Validate(ctx context.Context, req *Request, resp *Response, client *Client) (*GrantData, bool) {
	if client.Public {
		resp.SetError(http.StatusBadRequest, ErrCodeUnauthorizedClient, "client_credentials requiere un client confidencial")
		return nil, false
	}
	return &GrantData{
		ClientID:       client.ID,
		Scope:          req.Param("scope"),
		IncludeRefresh: false,
	}, true
}

func (g *ClientCredentialsGrant) Finish(ctx context.Context, issuer AccessTokenIssuer, gd *GrantData) (map[string]any, error) {
	return issuer.CreateAccessToken(ctx, gd.ClientID, "", gd.Scope, false)
}
