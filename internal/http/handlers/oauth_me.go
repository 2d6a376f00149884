package handlers

import (
	"net/http"

	"github.com/wpdrift/worker/internal/app"
	httpx "github.com/wpdrift/worker/internal/http"
	"github.com/wpdrift/worker/internal/oauth2"
)

// NewMeHandler implementa /oauth/me: valida el bearer token y devuelve la
// identidad asociada. Es el endpoint de recurso protegido de referencia.
func NewMeHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := oauth2.NewRequest(r)
		resp := oauth2.NewResponse()

		data := c.OAuth.GetAccessTokenData(r.Context(), req, resp)
		if data == nil {
			httpx.WriteOAuthResponse(w, r, resp)
			return
		}

		out := map[string]any{
			"client_id": data.ClientID,
			"scope":     data.Scope,
			"exp":       data.Expires.Unix(),
		}
		if data.UserID != "" {
			out["user_id"] = data.UserID
			out["sub"] = data.UserID
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}
