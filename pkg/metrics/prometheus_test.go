package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRun(t *testing.T) {
	r := New()

	r.RecordRun("linear", "ok", 0.001, 2)
	r.RecordRun("linear", "ok", 0.002, 10)
	r.RecordRun("seasonal", "model_fit_error", 0.5, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runs.WithLabelValues("linear", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("seasonal", "model_fit_error")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.duration))
	// horizon of 0 is not observed
	assert.Equal(t, 1, testutil.CollectAndCount(r.horizon))
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RecordRun("piecewise", "ok", 0.01, 5)

	families, err := b.Registry().Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestHandler(t *testing.T) {
	r := New()
	r.RecordRun("polynomial", "insufficient_data", 0.0001, 3)

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `wage_forecast_runs_total{outcome="insufficient_data",strategy="polynomial"} 1`)
	assert.Contains(t, w.Body.String(), "wage_forecast_run_duration_seconds_bucket")
}
