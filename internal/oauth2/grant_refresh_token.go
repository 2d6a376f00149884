package oauth2

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// RefreshTokenGrant canjea un refresh token por un access token nuevo.
// La rotación depende de dos flags independientes de la config:
// always_issue_new_refresh_token decide si sale un refresh nuevo, y
// unset_refresh_token_after_use decide si el presentado se invalida.
type RefreshTokenGrant struct {
	store RefreshTokenStorage
	cfg   *Config
}

func NewRefreshTokenGrant(store RefreshTokenStorage, cfg *Config) *RefreshTokenGrant {
	return &RefreshTokenGrant{store: store, cfg: cfg}
}

func (g *RefreshTokenGrant) Identifier() string { return "refresh_token" }

func (g *RefreshTokenGrant) Validate(ctx context.Context, req *Request, resp *Response, client *Client) (*GrantData, bool) {
	presented := req.Param("refresh_token")
	if presented == "" {
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidRequest, "falta el parámetro refresh_token")
		return nil, false
	}

	rt, err := g.store.GetRefreshToken(ctx, presented)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			resp.SetError(http.StatusBadRequest, ErrCodeInvalidGrant, "refresh token inválido o revocado")
			return nil, false
		}
		resp.SetError(http.StatusInternalServerError, ErrCodeServerError, "error interno del servidor")
		return nil, false
	}
	if rt.ClientID != client.ID {
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidGrant, "el refresh token pertenece a otro client")
		return nil, false
	}
	if !rt.Expires.IsZero() && time.Now().After(rt.Expires) {
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidGrant, "refresh token expirado")
		return nil, false
	}

	// El scope pedido no puede exceder el del token original (RFC 6749 §6).
	scope := req.Param("scope")
	if scope == "" {
		scope = rt.Scope
	} else if !checkScopeSubset(scope, rt.Scope) {
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidScope, "el scope pedido excede el del refresh token")
		return nil, false
	}

	return &GrantData{
		ClientID:         client.ID,
		UserID:           rt.UserID,
		Scope:            scope,
		PrevRefreshToken: rt.Token,
		IncludeRefresh:   g.cfg.AlwaysIssueNewRefreshToken,
	}, true
}

func (g *RefreshTokenGrant) Finish(ctx context.Context, issuer AccessTokenIssuer, gd *GrantData) (map[string]any, error) {
	out, err := issuer.CreateAccessToken(ctx, gd.ClientID, gd.UserID, gd.Scope, gd.IncludeRefresh)
	if err != nil {
		return nil, err
	}
	if g.cfg.UnsetRefreshTokenAfterUse {
		// Best effort: si la invalidación falla el viejo sigue vigente hasta
		// expirar, pero el token recién emitido ya está persistido.
		_ = g.store.UnsetRefreshToken(ctx, gd.PrevRefreshToken)
	}
	return out, nil
}
