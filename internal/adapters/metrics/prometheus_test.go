package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCountsLifecycleOutcomes(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.Registration("success")
	p.Registration("duplicate")
	p.Registration("duplicate")
	p.ApplicationSubmitted("SELLER", "success")
	p.AutoApproval("SELLER", "approved")
	p.Reverification("reset")
	p.OrphanHealed("MEMBER")

	assert.Equal(t, 2.0, testutil.ToFloat64(p.registrations.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.registrations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.applications.WithLabelValues("SELLER", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.autoApprovals.WithLabelValues("SELLER", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.reverify.WithLabelValues("reset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.orphans.WithLabelValues("MEMBER")))
}

func TestPrometheusHandlerExposesRequests(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.ObserveRequest(http.MethodPost, "/v1/members/register", http.StatusCreated, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `identity_http_requests_total{method="POST",route="/v1/members/register",status="201"} 1`)
}
