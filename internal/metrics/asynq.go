package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task outcomes.
const (
	taskOK      = "ok"
	taskRetry   = "retry"
	taskSkipped = "skipped"
)

var (
	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "tasks_total",
			Help:      "Processed tasks by type and outcome (ok, retry, skipped).",
		},
		[]string{"task_type", "outcome"},
	)

	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Task handler run time in seconds.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"task_type"},
	)

	tasksRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "tasks_running",
			Help:      "Tasks currently being handled.",
		},
		[]string{"task_type"},
	)
)

// AsynqMetricsMiddleware records run time and outcome of every task. An
// error wrapping asynq.SkipRetry counts as skipped, any other error as a
// retry.
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			taskType := task.Type()
			tasksRunning.WithLabelValues(taskType).Inc()
			start := time.Now()

			err := next.ProcessTask(ctx, task)

			tasksRunning.WithLabelValues(taskType).Dec()
			taskDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
			tasksTotal.WithLabelValues(taskType, taskOutcome(err)).Inc()
			return err
		})
	}
}

func taskOutcome(err error) string {
	switch {
	case err == nil:
		return taskOK
	case errors.Is(err, asynq.SkipRetry):
		return taskSkipped
	default:
		return taskRetry
	}
}
