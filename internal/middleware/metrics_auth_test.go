package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMetricsAuthMiddleware(t *testing.T) {
	const metricsToken = "test-secret-token-123"

	tests := []struct {
		name       string
		configured string
		header     string
		wantCode   int
		wantBody   string
	}{
		{name: "open when unconfigured", configured: "", wantCode: http.StatusOK, wantBody: "metrics"},
		{name: "valid token", configured: metricsToken, header: "Bearer " + metricsToken, wantCode: http.StatusOK, wantBody: "metrics"},
		{name: "wrong token", configured: metricsToken, header: "Bearer wrong", wantCode: http.StatusUnauthorized, wantBody: "Invalid token"},
		{name: "missing header", configured: metricsToken, wantCode: http.StatusUnauthorized, wantBody: "Bearer token required"},
		{name: "basic scheme", configured: metricsToken, header: "Basic dGVzdDp0ZXN0", wantCode: http.StatusUnauthorized, wantBody: "Bearer token required"},
		{name: "empty bearer", configured: metricsToken, header: "Bearer ", wantCode: http.StatusUnauthorized, wantBody: "Bearer token required"},
	}

	gin.SetMode(gin.TestMode)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(MetricsAuthMiddleware(tt.configured))
			r.GET("/metrics", func(c *gin.Context) {
				c.String(http.StatusOK, "metrics")
			})

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			if tt.wantCode == http.StatusUnauthorized {
				assert.Equal(t, `Bearer realm="Metrics"`, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}
