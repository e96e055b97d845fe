package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"portfolioHub/internal/api/middleware"
	"portfolioHub/internal/metrics"
	"portfolioHub/internal/portfolio"
	"portfolioHub/internal/tasks"
)

const contactRateKeyPrefix = "rate:contact:"

// TaskEnqueuer puts tasks on the asynq queue.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ContactHandler accepts public contact form messages and queues them for
// delivery to the portfolio service.
type ContactHandler struct {
	queue    TaskEnqueuer
	counter  redisRateCounter
	validate *validator.Validate
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewContactHandler(queue TaskEnqueuer, counter redisRateCounter, limit int, window time.Duration) *ContactHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &ContactHandler{queue: queue, counter: counter, validate: v, limit: limit, window: window, now: time.Now}
}

// Submit validates the message, applies the per-IP limit and enqueues it.
func (h *ContactHandler) Submit(c *gin.Context) {
	var msg portfolio.ContactMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		BadRequest(c, "invalid request body")
		return
	}
	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	msg.Phone = strings.TrimSpace(msg.Phone)
	msg.Reason = strings.TrimSpace(msg.Reason)

	if err := h.validate.Struct(msg); err != nil {
		BadRequest(c, describeValidation(err))
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	if !allowWithinWindow(ctx, h.counter, contactRateKeyPrefix+c.ClientIP(), h.limit, h.window, h.now()) {
		metrics.ObserveContact("limited")
		TooManyRequests(c, "Too many messages, please try again later.")
		return
	}

	task, err := tasks.NewContactRelayTask(msg, middleware.GetCorrelationID(c), h.now())
	if err != nil {
		logger.Error("build contact task failed", slog.Any("error", err))
		Internal(c, "failed to create task")
		return
	}
	info, err := h.queue.EnqueueContext(ctx, task)
	if err != nil {
		logger.Error("enqueue contact task failed", slog.Any("error", err))
		Internal(c, "failed to send message")
		return
	}

	metrics.ObserveContact("queued")
	logger.Info("contact message queued", slog.String("task_id", info.ID))
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Message sent successfully!",
		"task_id": info.ID,
	})
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "email":
			msgs = append(msgs, fe.Field()+" must be a valid email address")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
