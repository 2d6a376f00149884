package http

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wpdrift/worker/internal/observability/logger"
	"github.com/wpdrift/worker/internal/rate"
)

// WithRequestID garantiza un X-Request-ID por request (propaga el entrante).
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		ctx := logger.ToContext(r.Context(), logger.L().With(logger.RequestID(rid)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithLogging loguea cada request con método, ruta, status y duración.
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		logger.From(r.Context()).Info("http request",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(status),
			logger.Duration(time.Since(start)),
			logger.ClientIP(clientIP(r)),
		)
	})
}

// WithRecover convierte panics en 500 estructurado.
func WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.From(r.Context()).Error("panic recovered", zap.Any("panic", rec))
				WriteError(w, http.StatusInternalServerError, "server_error", "error interno del servidor", 1000)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// WithRateLimit aplica el limiter por IP. Si el limiter falla (Redis caído)
// el request pasa: limitar es protección, no disponibilidad.
func WithRateLimit(l rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				if rateLimitedTotal != nil {
					rateLimitedTotal.WithLabelValues(normalizePath(r.URL.Path)).Inc()
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "demasiados requests, reintentá más tarde", 1003)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithAvailability corta con 503 cuando el servicio está deshabilitado por
// configuración (flag administrativo, no un estado de error).
func WithAvailability(enabled func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled() {
				WriteError(w, http.StatusServiceUnavailable, "error",
					"temporarily unavailable", 1004)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
