package metrics

import "time"

// NoopMetrics discards every measurement. Used when METRICS_ENABLED=false.
type NoopMetrics struct{}

var _ Recorder = (*NoopMetrics)(nil)

func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordTokenIssued(string, string, time.Duration) {}
func (n *NoopMetrics) RecordTokenRefresh(bool)                         {}
func (n *NoopMetrics) RecordRefreshReuseDetected()                     {}
func (n *NoopMetrics) RecordGrantRequest(string, string)               {}
func (n *NoopMetrics) RecordAuthCodeRedemption(string)                 {}
func (n *NoopMetrics) RecordClientAuth(bool)                           {}
func (n *NoopMetrics) RecordLogin(string, bool)                        {}
func (n *NoopMetrics) RecordExternalAPICall(string, time.Duration)     {}
func (n *NoopMetrics) SetSigningKeysCount(int, int)                    {}
func (n *NoopMetrics) SetActiveRefreshTokensCount(int64)               {}
func (n *NoopMetrics) RecordCacheLookup(bool)                          {}
