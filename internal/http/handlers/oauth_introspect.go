package handlers

import (
	"net/http"

	"github.com/wpdrift/worker/internal/app"
	httpx "github.com/wpdrift/worker/internal/http"
	"github.com/wpdrift/worker/internal/oauth2"
)

// NewIntrospectHandler implementa POST /oauth/introspect (RFC 7662). Los
// tokens inválidos responden 200 con active=false; solo los requests
// malformados producen error HTTP.
func NewIntrospectHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := c.OAuth.HandleIntrospectRequest(r.Context(), oauth2.NewRequest(r))
		httpx.WriteOAuthResponse(w, r, resp)
	}
}
