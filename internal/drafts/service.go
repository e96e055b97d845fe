package drafts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"portfolioHub/internal/form"
	"portfolioHub/internal/submit"
)

// Action tells Do what to do with the draft after fn ran.
type Action int

const (
	// Keep leaves the stored draft as it was.
	Keep Action = iota
	// Save stores the modified draft.
	Save
	// Discard deletes the draft and its staged attachment.
	Discard
)

// AttachmentRemover deletes staged attachments.
type AttachmentRemover interface {
	DeleteObject(ctx context.Context, objectKey string) error
}

// Service applies draft mutations one at a time per session, in arrival order.
type Service struct {
	store       Store
	attachments AttachmentRemover
	logger      *slog.Logger
	now         func() time.Time

	locks keyedMutex
}

func NewService(store Store, attachments AttachmentRemover, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, attachments: attachments, logger: logger, now: time.Now}
}

// Start replaces the session's draft with a new one for mode.
func (s *Service) Start(ctx context.Context, sessionID string, mode submit.Mode, f *form.Form, hydrated bool) (*Draft, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	if old, err := s.store.Load(ctx, sessionID); err == nil {
		s.removeAttachment(ctx, old.Form)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	d := &Draft{Mode: mode, Form: f, Hydrated: hydrated, UpdatedAt: s.now()}
	if err := s.store.Save(ctx, sessionID, d); err != nil {
		return nil, err
	}
	s.logger.Info("draft started",
		slog.String("session_id", sessionID),
		slog.String("mode", string(mode)),
		slog.Bool("hydrated", hydrated),
	)
	return d, nil
}

// Get returns the session's draft.
func (s *Service) Get(ctx context.Context, sessionID string) (*Draft, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()
	return s.store.Load(ctx, sessionID)
}

// Update applies fn to the draft and saves it when fn succeeds.
func (s *Service) Update(ctx context.Context, sessionID string, fn func(*Draft) error) (*Draft, error) {
	return s.Do(ctx, sessionID, func(d *Draft) (Action, error) {
		if err := fn(d); err != nil {
			return Keep, err
		}
		return Save, nil
	})
}

// Do runs fn on the session's draft while holding the session lock and then
// applies the returned action. When fn returns an error the draft is kept
// unchanged and the error is returned with the draft as loaded. A failed
// discard returns the draft with ErrDiscardFailed.
func (s *Service) Do(ctx context.Context, sessionID string, fn func(*Draft) (Action, error)) (*Draft, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	d, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	action, fnErr := fn(d)
	if fnErr != nil {
		return d, fnErr
	}

	switch action {
	case Save:
		d.UpdatedAt = s.now()
		if err := s.store.Save(ctx, sessionID, d); err != nil {
			return nil, err
		}
	case Discard:
		if err := s.discard(ctx, sessionID, d); err != nil {
			return d, fmt.Errorf("%w: %v", ErrDiscardFailed, err)
		}
	}
	return d, nil
}

// Discard deletes the session's draft and its staged attachment. A missing
// draft is not an error.
func (s *Service) Discard(ctx context.Context, sessionID string) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	d, err := s.store.Load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.discard(ctx, sessionID, d)
}

func (s *Service) discard(ctx context.Context, sessionID string, d *Draft) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("discard draft: %w", err)
	}
	s.removeAttachment(ctx, d.Form)
	s.logger.Info("draft discarded", slog.String("session_id", sessionID))
	return nil
}

func (s *Service) removeAttachment(ctx context.Context, f *form.Form) {
	if f == nil || f.Attachment == nil || s.attachments == nil {
		return
	}
	if err := s.attachments.DeleteObject(ctx, f.Attachment.ObjectKey); err != nil {
		s.logger.Warn("delete staged attachment failed",
			slog.String("object_key", f.Attachment.ObjectKey),
			slog.Any("error", err),
		)
	}
}

// keyedMutex hands out one mutex per key and forgets it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
