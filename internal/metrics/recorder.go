package metrics

import "time"

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

func resultLabel(success bool) string {
	if success {
		return resultSuccess
	}
	return resultFailure
}

func (m *Metrics) RecordTokenIssued(tokenType, grantType string, generationTime time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(tokenType, grantType).Inc()
	m.TokenIssueDuration.WithLabelValues(tokenType).Observe(generationTime.Seconds())
}

func (m *Metrics) RecordTokenRefresh(success bool) {
	m.TokensRefreshedTotal.WithLabelValues(resultLabel(success)).Inc()
}

func (m *Metrics) RecordRefreshReuseDetected() {
	m.RefreshReuseDetected.Inc()
}

func (m *Metrics) RecordGrantRequest(grantType, finalState string) {
	m.GrantRequestsTotal.WithLabelValues(grantType, finalState).Inc()
}

func (m *Metrics) RecordAuthCodeRedemption(result string) {
	m.AuthCodeRedemptionTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordClientAuth(success bool) {
	m.ClientAuthTotal.WithLabelValues(resultLabel(success)).Inc()
}

func (m *Metrics) RecordLogin(source string, success bool) {
	m.LoginTotal.WithLabelValues(source, resultLabel(success)).Inc()
}

func (m *Metrics) RecordExternalAPICall(provider string, duration time.Duration) {
	m.ExternalAPICallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) SetSigningKeysCount(active, retired int) {
	m.SigningKeys.WithLabelValues("active").Set(float64(active))
	m.SigningKeys.WithLabelValues("retired").Set(float64(retired))
}

func (m *Metrics) SetActiveRefreshTokensCount(count int64) {
	m.ActiveRefreshTokens.Set(float64(count))
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.ClientCacheLookup.WithLabelValues("hit").Inc()
		return
	}
	m.ClientCacheLookup.WithLabelValues("miss").Inc()
}
