package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTransition("approved")
	m.RecordTransition("approved")
	m.RecordConflict("edited")
	m.RecordFailure("submitted")
	m.RecordDiff("summary", "", 10*time.Millisecond)
	m.RecordDiff("summary", "timeout", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WorkflowTransitionsTotal.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkflowConflictsTotal.WithLabelValues("edited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkflowFailuresTotal.WithLabelValues("submitted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DiffRequestsTotal.WithLabelValues("summary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiffDegradedTotal.WithLabelValues("summary", "timeout")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTransition("created")
		m.RecordConflict("edited")
		m.RecordFailure("edited")
		m.RecordDiff("diff", "error", time.Second)
	})
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/policies/:slug", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/policies/a", "/policies/b", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/policies/:slug", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}
