package http

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once
	metricsErr  error

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	// OAuth metrics
	tokensIssuedTotal  *prometheus.CounterVec
	tokensRevokedTotal prometheus.Counter
	rateLimitedTotal   *prometheus.CounterVec
	authDecisionsTotal *prometheus.CounterVec
)

// MetricsConfig agrupa dependencias para exponer /metrics.
type MetricsConfig struct {
	Registry prometheus.Registerer
	Pool     func() *pgxpool.Pool
}

// RegisterMetrics inicializa las métricas y devuelve el handler de /metrics.
func RegisterMetrics(cfg MetricsConfig) (http.Handler, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"})

		tokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_tokens_issued_total",
			Help: "Tokens emitidos por grant_type y resultado",
		}, []string{"grant_type", "result"}) // result: ok|error

		tokensRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oauth_tokens_revoked_total",
			Help: "Revocaciones exitosas",
		})

		rateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rechazadas por rate limit",
		}, []string{"path"})

		authDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_authorize_decisions_total",
			Help: "Decisiones del authorize endpoint",
		}, []string{"decision"}) // decision: granted|denied|error

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, httpInflight,
			tokensIssuedTotal, tokensRevokedTotal, rateLimitedTotal, authDecisionsTotal,
		} {
			if err := registerCollector(registry, c); err != nil {
				metricsErr = err
				return
			}
		}
	})
	if metricsErr != nil {
		return nil, metricsErr
	}

	if cfg.Pool != nil {
		if err := registerCollector(registry, newDBPoolCollector(cfg.Pool)); err != nil {
			return nil, err
		}
	}

	// Gatherer global por compatibilidad: las métricas se registran allí.
	return promhttp.Handler(), nil
}

func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// CountTokenIssued registra el resultado de una emisión.
func CountTokenIssued(grantType string, ok bool) {
	if tokensIssuedTotal == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	tokensIssuedTotal.WithLabelValues(grantType, result).Inc()
}

// CountTokenRevoked registra una revocación exitosa.
func CountTokenRevoked() {
	if tokensRevokedTotal != nil {
		tokensRevokedTotal.Inc()
	}
}

// CountAuthorizeDecision registra el desenlace de /oauth/authorize.
func CountAuthorizeDecision(decision string) {
	if authDecisionsTotal != nil {
		authDecisionsTotal.WithLabelValues(decision).Inc()
	}
}

// WithMetrics instrumenta requests HTTP (contadores, latencia, inflight).
func WithMetrics(next http.Handler) http.Handler {
	if next == nil {
		return nil
	}
	if httpRequestsTotal == nil || httpRequestDuration == nil || httpInflight == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		pathLabel := normalizePath(r.URL.Path)

		httpInflight.WithLabelValues(method, pathLabel).Inc()
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			httpInflight.WithLabelValues(method, pathLabel).Dec()
			duration := time.Since(start).Seconds()
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(method, pathLabel).Observe(duration)
		}()

		next.ServeHTTP(rec, r)
	})
}

// normalizePath colapsa segmentos variables para no explotar cardinality.
func normalizePath(p string) string {
	switch {
	case strings.HasPrefix(p, "/.well-known/"):
		return p
	case strings.HasPrefix(p, "/oauth/"):
		parts := strings.SplitN(strings.TrimPrefix(p, "/oauth/"), "/", 2)
		return "/oauth/" + parts[0]
	default:
		return p
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// dbPoolCollector exporta el estado del pool de Postgres.
type dbPoolCollector struct {
	pool func() *pgxpool.Pool

	acquired *prometheus.Desc
	idle     *prometheus.Desc
	total    *prometheus.Desc
}

func newDBPoolCollector(pool func() *pgxpool.Pool) *dbPoolCollector {
	return &dbPoolCollector{
		pool:     pool,
		acquired: prometheus.NewDesc("db_pool_acquired_conns", "Conexiones adquiridas", nil, nil),
		idle:     prometheus.NewDesc("db_pool_idle_conns", "Conexiones idle", nil, nil),
		total:    prometheus.NewDesc("db_pool_total_conns", "Conexiones totales", nil, nil),
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	p := c.pool()
	if p == nil {
		return
	}
	stat := p.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(stat.TotalConns()))
}
