package metrics

import (
	"sync"

	"github.com/go-authgate/grantd/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics interface services depend on.
type Recorder = core.Recorder

var _ Recorder = (*Metrics)(nil)

const namespace = "grantd"

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Token metrics
	TokensIssuedTotal       *prometheus.CounterVec
	TokensRefreshedTotal    *prometheus.CounterVec
	RefreshReuseDetected    prometheus.Counter
	TokenIssueDuration      *prometheus.HistogramVec
	ActiveRefreshTokens     prometheus.Gauge
	AuthCodeRedemptionTotal *prometheus.CounterVec

	// Grant processing
	GrantRequestsTotal *prometheus.CounterVec
	ClientAuthTotal    *prometheus.CounterVec

	// Resource owner login
	LoginTotal              *prometheus.CounterVec
	ExternalAPICallDuration *prometheus.HistogramVec

	// Keys and caches
	SigningKeys       *prometheus.GaugeVec
	ClientCacheLookup *prometheus.CounterVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init returns the Prometheus recorder when enabled and a no-op recorder
// otherwise. Prometheus collectors are registered only once per process.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_issued_total",
				Help:      "Total number of tokens issued",
			},
			[]string{"type", "grant_type"}, // access, refresh
		),
		TokensRefreshedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_refreshed_total",
				Help:      "Total number of refresh token exchanges",
			},
			[]string{"result"},
		),
		RefreshReuseDetected: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_reuse_detected_total",
				Help:      "Rotated refresh tokens presented again, each revoking a token family",
			},
		),
		TokenIssueDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "token_issue_duration_seconds",
				Help:      "Time taken to mint and sign a token",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
			},
			[]string{"type"},
		),
		ActiveRefreshTokens: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "refresh_tokens_active",
				Help:      "Current number of unexpired active refresh tokens",
			},
		),
		AuthCodeRedemptionTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_code_redemptions_total",
				Help:      "Authorization code redemption attempts",
			},
			[]string{"result"}, // success, invalid, expired, replay, mismatch
		),
		GrantRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grant_requests_total",
				Help:      "Token endpoint requests by grant type and final state",
			},
			[]string{"grant_type", "state"},
		),
		ClientAuthTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_auth_total",
				Help:      "Client authentication attempts",
			},
			[]string{"result"},
		),
		LoginTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Resource owner login attempts",
			},
			[]string{"source", "result"},
		),
		ExternalAPICallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "external_api_duration_seconds",
				Help:      "Latency of calls to the remote user directory",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		SigningKeys: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "signing_keys",
				Help:      "Signing keys published in the JWKS",
			},
			[]string{"state"}, // active, retired
		),
		ClientCacheLookup: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_cache_lookups_total",
				Help:      "Client cache lookups",
			},
			[]string{"result"}, // hit, miss
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being served",
			},
		),
	}
}
