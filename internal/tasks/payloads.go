package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"portfolioHub/internal/portfolio"
)

// Task types shared by the API (producer) and the worker (consumer).
const (
	TypeContactRelay    = "contact:relay"
	TypeAttachmentSweep = "attachment:sweep"
)

// ContactRelayMaxRetry bounds redelivery of a contact message.
const ContactRelayMaxRetry = 3

// ContactRelayPayload carries one contact form submission.
type ContactRelayPayload struct {
	Message       portfolio.ContactMessage `json:"message"`
	CorrelationID string                   `json:"correlation_id"`
	ReceivedAt    time.Time                `json:"received_at"`
}

// NewContactRelayTask builds a contact relay task.
func NewContactRelayTask(msg portfolio.ContactMessage, correlationID string, receivedAt time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(ContactRelayPayload{
		Message:       msg,
		CorrelationID: correlationID,
		ReceivedAt:    receivedAt.UTC(),
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeContactRelay, payload,
		asynq.MaxRetry(ContactRelayMaxRetry),
		asynq.Timeout(30*time.Second),
	), nil
}

// AttachmentSweepSchedule is the schedule the worker registers the sweep with.
const AttachmentSweepSchedule = "@every 1h"

// NewAttachmentSweepTask builds the periodic sweep of staged attachments
// left behind by expired sessions. Runs are not retried; the next tick
// covers a failed one.
func NewAttachmentSweepTask() *asynq.Task {
	return asynq.NewTask(TypeAttachmentSweep, nil,
		asynq.MaxRetry(0),
		asynq.Timeout(10*time.Minute),
		asynq.Unique(time.Hour),
	)
}
