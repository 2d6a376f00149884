// Package router arma el árbol de rutas del servicio.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wpdrift/worker/internal/app"
	httpx "github.com/wpdrift/worker/internal/http"
	"github.com/wpdrift/worker/internal/http/handlers"
)

// New arma el árbol de rutas completo. Los endpoints OAuth comparten el gate
// de disponibilidad y el rate limiter; health, metrics y los documentos
// well-known quedan afuera de ambos.
func New(c *app.Container, auth handlers.Authenticator, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.WithRequestID)
	r.Use(httpx.WithRecover)
	r.Use(httpx.WithLogging)
	r.Use(httpx.WithMetrics)

	// Health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", newReadyz(c))
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	// Documentos well-known
	r.Get("/.well-known/keys", handlers.NewJWKSHandler(c))
	r.Get("/.well-known/jwks.json", handlers.NewJWKSHandler(c)) // alias
	r.Get("/.well-known/openid-configuration", handlers.NewOIDCDiscoveryHandler(c))

	// Endpoints OAuth. Se registran con HandleFunc: el engine responde 405
	// con el shape del protocolo, no el 405 pelado del router.
	r.Route("/oauth", func(r chi.Router) {
		r.Use(httpx.WithAvailability(func() bool { return c.Cfg.Enabled }))
		r.Use(httpx.WithRateLimit(c.Limiter))

		r.HandleFunc("/authorize", handlers.NewAuthorizeHandler(c, auth))
		r.HandleFunc("/token", handlers.NewTokenHandler(c))
		r.HandleFunc("/introspect", handlers.NewIntrospectHandler(c))
		r.HandleFunc("/revoke", handlers.NewRevokeHandler(c))
		r.HandleFunc("/destroy", handlers.NewRevokeHandler(c)) // alias histórico
		r.HandleFunc("/me", handlers.NewMeHandler(c))
	})

	return r
}

// newReadyz verifica las dependencias reales del deployment.
func newReadyz(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if c.Pool != nil {
			if err := c.Pool.Ping(ctx); err != nil {
				httpx.WriteError(w, http.StatusServiceUnavailable, "not_ready", "postgres no responde", 1002)
				return
			}
		}
		if c.Redis != nil {
			if err := c.Redis.Ping(ctx).Err(); err != nil {
				httpx.WriteError(w, http.StatusServiceUnavailable, "not_ready", "redis no responde", 1002)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
