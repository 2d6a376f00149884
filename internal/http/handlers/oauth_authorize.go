package handlers

import (
	"net/http"
	"net/url"

	"github.com/wpdrift/worker/internal/app"
	httpx "github.com/wpdrift/worker/internal/http"
	"github.com/wpdrift/worker/internal/oauth2"
)

// NewAuthorizeHandler implementa /oauth/authorize. Flujo:
//   - sin sesión y prompt=none: redirect con access_denied (OIDC silencioso)
//   - sin sesión: redirect al login configurado con redirect_to de vuelta
//   - con sesión: el engine valida y emite; deny=true registra la negación
func NewAuthorizeHandler(c *app.Container, auth Authenticator) http.HandlerFunc {
	loginURL := c.Cfg.OAuth.LoginURL

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			w.Header().Set("Allow", "GET, POST")
			httpx.WriteError(w, http.StatusMethodNotAllowed, "invalid_request", "solo GET/POST", 2101)
			return
		}

		req := oauth2.NewRequest(r)
		resp := oauth2.NewResponse()

		userID, hasSession := auth.CurrentUser(r)
		if !hasSession {
			if req.Param("prompt") == "none" {
				// Autorización silenciosa sin sesión: el engine valida el
				// request y redirige con access_denied.
				c.OAuth.HandleAuthorizeRequest(r.Context(), req, resp, false, "")
				httpx.CountAuthorizeDecision("denied")
				httpx.WriteOAuthResponse(w, r, resp)
				return
			}
			if loginURL == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "access_denied", "se requiere una sesión de usuario", 2102)
				return
			}
			// Solo se redirige al login si el request es válido.
			if !c.OAuth.ValidateAuthorizeRequest(r.Context(), req, resp) {
				httpx.WriteOAuthResponse(w, r, resp)
				return
			}
			http.Redirect(w, r, loginURL+"?redirect_to="+url.QueryEscape(r.URL.String()), http.StatusFound)
			return
		}

		authorized := req.Param("deny") != "true"
		c.OAuth.HandleAuthorizeRequest(r.Context(), req, resp, authorized, userID)

		switch {
		case !authorized:
			httpx.CountAuthorizeDecision("denied")
		case resp.IsError():
			httpx.CountAuthorizeDecision("error")
		default:
			httpx.CountAuthorizeDecision("granted")
		}
		httpx.WriteOAuthResponse(w, r, resp)
	}
}
