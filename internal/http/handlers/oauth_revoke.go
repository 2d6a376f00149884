package handlers

import (
	"net/http"

	"github.com/wpdrift/worker/internal/app"
	httpx "github.com/wpdrift/worker/internal/http"
	"github.com/wpdrift/worker/internal/oauth2"
)

// NewRevokeHandler implementa POST /oauth/revoke y su alias /oauth/destroy.
// Acepta access_token (o token) y opcionalmente refresh_token; responde
// {"status": true} incluso si el token ya no existía.
func NewRevokeHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := c.OAuth.HandleRevokeRequest(r.Context(), oauth2.NewRequest(r))
		if !resp.IsError() {
			httpx.CountTokenRevoked()
		}
		httpx.WriteOAuthResponse(w, r, resp)
	}
}
