package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSubmission(t *testing.T) {
	before := testutil.ToFloat64(submissionsTotal.WithLabelValues("create", "failure"))
	ObserveSubmission("create", false)
	assert.Equal(t, before+1, testutil.ToFloat64(submissionsTotal.WithLabelValues("create", "failure")))
}

func TestObserveProbe(t *testing.T) {
	before := testutil.ToFloat64(probeResultsTotal.WithLabelValues("absent", "true"))
	ObserveProbe("absent", true)
	assert.Equal(t, before+1, testutil.ToFloat64(probeResultsTotal.WithLabelValues("absent", "true")))
}

func TestGinMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/v1/portfolio/public/:userId", func(c *gin.Context) { c.String(http.StatusOK, "{}") })

	counter := httpRequests.WithLabelValues(http.MethodGet, "/v1/portfolio/public/:userId", "200")
	unmatched := httpRequests.WithLabelValues(http.MethodGet, "unmatched", "404")
	before, beforeUnmatched := testutil.ToFloat64(counter), testutil.ToFloat64(unmatched)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/portfolio/public/u1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/portfolio/public/u2", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
	assert.Equal(t, beforeUnmatched+1, testutil.ToFloat64(unmatched))
}

func TestAsynqMetricsMiddlewareOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome string
	}{
		{"ok", nil, taskOK},
		{"transient", errors.New("relay failed"), taskRetry},
		{"permanent", fmt.Errorf("rejected: %w", asynq.SkipRetry), taskSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AsynqMetricsMiddleware()(asynq.HandlerFunc(func(context.Context, *asynq.Task) error {
				return tt.err
			}))

			counter := tasksTotal.WithLabelValues("contact:relay", tt.outcome)
			before := testutil.ToFloat64(counter)
			err := handler.ProcessTask(context.Background(), asynq.NewTask("contact:relay", nil))
			assert.Equal(t, tt.err, err)
			assert.Equal(t, before+1, testutil.ToFloat64(counter))
			assert.Zero(t, testutil.ToFloat64(tasksRunning.WithLabelValues("contact:relay")))
		})
	}
}

func TestObserveUpstreamLabelsTransportErrors(t *testing.T) {
	ObserveUpstream(http.MethodGet, "/api/portfolio/exists", 0, 30*time.Millisecond)
	ObserveUpstream(http.MethodGet, "/api/portfolio/exists", http.StatusOK, 10*time.Millisecond)
	ObserveUpstream(http.MethodGet, "/api/portfolio/exists", http.StatusOK, 12*time.Millisecond)

	// one series for "error", one for "200"
	assert.Equal(t, 2, testutil.CollectAndCount(upstreamLatency))
}
