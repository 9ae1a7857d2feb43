package core

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Token issuance
	RecordTokenIssued(tokenType, grantType string, generationTime time.Duration)
	RecordTokenRefresh(success bool)
	RecordRefreshReuseDetected()

	// Grant processing
	RecordGrantRequest(grantType, finalState string)
	RecordAuthCodeRedemption(result string)

	// Client authentication
	RecordClientAuth(success bool)

	// User directory
	RecordLogin(source string, success bool)
	RecordExternalAPICall(provider string, duration time.Duration)

	// Gauges
	SetSigningKeysCount(active, retired int)
	SetActiveRefreshTokensCount(count int64)

	// Client cache
	RecordCacheLookup(hit bool)
}
