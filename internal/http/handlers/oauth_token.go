package handlers

import (
	"net/http"

	"github.com/wpdrift/worker/internal/app"
	httpx "github.com/wpdrift/worker/internal/http"
	"github.com/wpdrift/worker/internal/oauth2"
)

// NewTokenHandler implementa POST /oauth/token. El engine resuelve método,
// autenticación del client y el grant; acá solo se serializa y se cuenta.
func NewTokenHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := oauth2.NewRequest(r)
		resp := c.OAuth.HandleTokenRequest(r.Context(), req)

		if gt := req.Param("grant_type"); gt != "" {
			httpx.CountTokenIssued(gt, !resp.IsError())
		}
		httpx.WriteOAuthResponse(w, r, resp)
	}
}
