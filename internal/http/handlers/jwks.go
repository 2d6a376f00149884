package handlers

import (
	"net/http"

	"github.com/wpdrift/worker/internal/app"
	httpx "github.com/wpdrift/worker/internal/http"
	jwtx "github.com/wpdrift/worker/internal/jwt"
)

// NewJWKSHandler publica la clave de verificación en formato JWK Set.
// Se consulta el storage en cada request para reflejar rotaciones.
func NewJWKSHandler(c *app.Container) http.HandlerFunc {
	kid := c.Cfg.Keys.KeyID

	return func(w http.ResponseWriter, r *http.Request) {
		if c.Storages.Keys == nil {
			httpx.WriteError(w, http.StatusNotFound, "invalid_request", "el servidor no firma tokens", 2401)
			return
		}
		pub, err := c.Storages.Keys.GetPublicKey(r.Context())
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "error interno del servidor", 1000)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(jwtx.JWKSJSON(pub, kid))
	}
}
