package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"portfolioHub/internal/metrics"
)

// StagedSweeper removes staged attachments older than a cutoff.
type StagedSweeper interface {
	SweepStaged(ctx context.Context, cutoff time.Time) (int, error)
}

// AttachmentSweepHandler deletes uploads whose draft can no longer exist.
// maxAge should be at least the draft TTL.
type AttachmentSweepHandler struct {
	sweeper StagedSweeper
	maxAge  time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewAttachmentSweepHandler(sweeper StagedSweeper, maxAge time.Duration, logger *slog.Logger) *AttachmentSweepHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttachmentSweepHandler{sweeper: sweeper, maxAge: maxAge, logger: logger, now: time.Now}
}

// ProcessTask implements asynq.Handler.
func (h *AttachmentSweepHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	cutoff := h.now().Add(-h.maxAge)
	removed, err := h.sweeper.SweepStaged(ctx, cutoff)
	metrics.ObserveSweep(removed)
	if err != nil {
		h.logger.Error("attachment sweep incomplete",
			slog.Int("removed", removed),
			slog.Any("error", err),
		)
		return fmt.Errorf("sweep attachments: %v: %w", err, asynq.SkipRetry)
	}
	if removed > 0 {
		h.logger.Info("swept stale attachments", slog.Int("removed", removed), slog.Time("cutoff", cutoff))
	}
	return nil
}
