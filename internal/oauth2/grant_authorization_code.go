package oauth2

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	tokens "github.com/wpdrift/worker/internal/security/token"
)

// AuthorizationCodeGrant canjea un authorization code por tokens. El código
// es de un solo uso: el consumo pasa por ExpireAuthorizationCode, que
// garantiza exactamente un ganador bajo canjes concurrentes.
type AuthorizationCodeGrant struct {
	codes AuthorizationCodeStorage
	cfg   *Config
}

func NewAuthorizationCodeGrant(codes AuthorizationCodeStorage, cfg *Config) *AuthorizationCodeGrant {
	return &AuthorizationCodeGrant{codes: codes, cfg: cfg}
}

func (g *AuthorizationCodeGrant) Identifier() string { return "authorization_code" }

func (g *AuthorizationCodeGrant) Validate(ctx context.Context, req *Request, resp *Response, client *Client) (*GrantData, bool) {
	code := req.Param("code")
	redirectURI := req.Param("redirect_uri")
	if code == "" || redirectURI == "" {
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidRequest, "faltan los parámetros code y/o redirect_uri")
		return nil, false
	}

	data, err := g.codes.GetAuthorizationCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			resp.SetError(http.StatusBadRequest, ErrCodeInvalidGrant, "authorization code inválido o ya usado")
			return nil, false
		}
		resp.SetError(http.StatusInternalServerError, ErrCodeServerError, "error interno del servidor")
		return nil, false
	}
	if time.Now().After(data.Expires) {
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidGrant, "authorization code expirado")
		return nil, false
	}
	if data.ClientID != client.ID {
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidGrant, "el authorization code pertenece a otro client")
		return nil, false
	}
	if !g.redirectMatches(data.RedirectURI, redirectURI) {
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidGrant, "redirect_uri no coincide con la del authorization request")
		return nil, false
	}

	if data.CodeChallenge != "" {
		verifier := req.Param("code_verifier")
		if verifier == "" {
			resp.SetError(http.StatusBadRequest, ErrCodeInvalidRequest, "falta el parámetro code_verifier")
			return nil, false
		}
		if !verifyPKCE(data.CodeChallenge, data.CodeChallengeMethod, verifier) {
			resp.SetError(http.StatusBadRequest, ErrCodeInvalidGrant, "code_verifier no coincide con el code_challenge")
			return nil, false
		}
	}

	return &GrantData{
		ClientID:       client.ID,
		UserID:         data.UserID,
		Scope:          data.Scope,
		Code:           data.Code,
		IncludeRefresh: true,
	}, true
}

// Finish consume el código y recién entonces emite. Si este proceso perdió
// la carrera del consumo no se emite nada; si la emisión falla después de
// consumir, el código queda quemado y el caller recibe server_error sin
// tokens a medias.
func (g *AuthorizationCodeGrant) Finish(ctx context.Context, issuer AccessTokenIssuer, gd *GrantData) (map[string]any, error) {
	if err := g.codes.ExpireAuthorizationCode(ctx, gd.Code); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewError(http.StatusBadRequest, ErrCodeInvalidGrant, "authorization code ya canjeado")
		}
		return nil, err
	}
	return issuer.CreateAccessToken(ctx, gd.ClientID, gd.UserID, gd.Scope, gd.IncludeRefresh)
}

func (g *AuthorizationCodeGrant) redirectMatches(bound, presented string) bool {
	if g.cfg.RequireExactRedirectURI {
		return bound == presented
	}
	return bound != "" && strings.HasPrefix(presented, bound)
}

// verifyPKCE aplica RFC 7636 §4.6 en tiempo constante.
func verifyPKCE(challenge, method, verifier string) bool {
	var derived string
	switch method {
	case CodeChallengeS256:
		derived = tokens.SHA256Base64URL(verifier)
	case CodeChallengePlain, "":
		derived = verifier
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) == 1
}
