package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"

	"eventform/internal/metrics"
	"eventform/internal/ratelimit"
)

type stubService struct{}

func (stubService) Submit(c *ginext.Context)          { c.String(http.StatusOK, "submit") }
func (stubService) PaymentCallback(c *ginext.Context) { c.String(http.StatusOK, "callback") }
func (stubService) ExportCSV(c *ginext.Context)       { c.String(http.StatusOK, "csv") }
func (stubService) ExportExcel(c *ginext.Context)     { c.String(http.StatusOK, "excel") }

func newTestRouter(limit int, trusted ...string) http.Handler {
	log := zerolog.Nop()
	return NewRouters(&Routers{
		Service:        stubService{},
		Log:            &log,
		Metrics:        metrics.New(),
		RateStore:      ratelimit.NewMemoryStore(time.Minute),
		SubmitLimit:    limit,
		SubmitWindow:   time.Minute,
		TrustedProxies: trusted,
	})
}

func submitFrom(h http.Handler, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/submit", nil)
	req.RemoteAddr = remoteAddr
	req.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRoutes(t *testing.T) {
	r := newTestRouter(10)

	cases := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/api/submit", "submit"},
		{http.MethodPost, "/api/payment/callback", "callback"},
		{http.MethodGet, "/api/export/csv", "csv"},
		{http.MethodGet, "/api/export/excel", "excel"},
	}
	for _, tc := range cases {
		w := serve(r, tc.method, tc.path)
		require.Equal(t, http.StatusOK, w.Code, tc.path)
		assert.Equal(t, tc.body, w.Body.String())
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	}

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/unknown").Code)
}

func TestSubmitIsRateLimited(t *testing.T) {
	r := newTestRouter(1)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/api/submit").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/api/submit").Code)
	// other routes are not limited
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/api/payment/callback").Code)

	w := serve(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "eventform_rate_limited_total 1")
}

func TestSubmitLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	r := newTestRouter(2)

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		codes = append(codes, submitFrom(r, "203.0.113.9:4000", fmt.Sprintf("10.0.0.%d", i)))
	}
	assert.Equal(t, []int{200, 200, 429, 429, 429}, codes)
}

func TestSubmitLimitUsesForwardedForFromTrustedProxy(t *testing.T) {
	r := newTestRouter(1, "192.0.2.1")

	assert.Equal(t, http.StatusOK, submitFrom(r, "192.0.2.1:4000", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, submitFrom(r, "192.0.2.1:4000", "10.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, submitFrom(r, "192.0.2.1:4000", "10.0.0.1"))
}
