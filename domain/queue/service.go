package queue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/engagic/engagic/internal/config"
	"github.com/engagic/engagic/pkg/logger"
)

var Module = fx.Module("queue",
	fx.Provide(NewService),
)

// MaxRetries is the default retry budget before an entry is permanently
// failed; PROCESSOR_MAX_RETRIES overrides it.
const MaxRetries = 3

// Service manages the processing queue.
//
// Enqueue is idempotent per canonical packet URL; Dequeue claims the
// highest-priority pending entry atomically. The pipeline runs a single
// processing worker, so the claim transaction only needs to guard against
// the sync loop, not competing processors.
type Service struct {
	db         bun.IDB
	maxRetries int
	log        *slog.Logger
}

// NewService creates a queue service
func NewService(db bun.IDB, cfg *config.Config, log *slog.Logger) *Service {
	maxRetries := cfg.Processor.MaxRetries
	if maxRetries <= 0 {
		maxRetries = MaxRetries
	}
	return &Service{
		db:         db,
		maxRetries: maxRetries,
		log:        log.With(logger.Scope("queue")),
	}
}

// Enqueue adds a pending entry for the canonical packet URL. Re-enqueuing
// an existing URL is a no-op unless the prior entry failed, in which case
// it is reset for another round.
func (s *Service) Enqueue(ctx context.Context, packetURL, meetingID, banana string, priority int) (*Entry, error) {
	if packetURL == "" {
		return nil, fmt.Errorf("enqueue: empty packet url")
	}

	existing := &Entry{}
	err := s.db.NewSelect().Model(existing).Where("packet_url = ?", packetURL).Scan(ctx)
	switch {
	case err == sql.ErrNoRows:
		// fall through to insert
	case err != nil:
		return nil, fmt.Errorf("enqueue lookup: %w", err)
	case existing.Status == StatusFailed:
		_, err := s.db.NewUpdate().
			Model((*Entry)(nil)).
			Set("status = ?", StatusPending).
			Set("retry_count = 0").
			Set("error_message = NULL").
			Set("priority = ?", priority).
			Where("id = ?", existing.ID).
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("reset failed entry: %w", err)
		}
		existing.Status = StatusPending
		existing.RetryCount = 0
		existing.Priority = priority
		s.log.Debug("reset failed queue entry", slog.String("packet_url", packetURL))
		return existing, nil
	default:
		// pending, processing, or completed: leave it alone
		return existing, nil
	}

	entry := &Entry{
		ID:        uuid.NewString(),
		PacketURL: packetURL,
		MeetingID: meetingID,
		Banana:    banana,
		Status:    StatusPending,
		Priority:  priority,
		CreatedAt: time.Now(),
	}
	if _, err := s.db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return nil, fmt.Errorf("enqueue insert: %w", err)
	}

	s.log.Debug("enqueued",
		slog.String("meeting_id", meetingID),
		slog.Int("priority", priority))
	return entry, nil
}

// Dequeue claims the next pending entry: priority desc, then FIFO.
// Returns nil when the queue is empty.
func (s *Service) Dequeue(ctx context.Context) (*Entry, error) {
	var claimed *Entry
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		entry := &Entry{}
		err := tx.NewSelect().
			Model(entry).
			Where("status = ?", StatusPending).
			Order("priority DESC", "created_at ASC").
			Limit(1).
			Scan(ctx)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select pending: %w", err)
		}

		now := time.Now()
		res, err := tx.NewUpdate().
			Model((*Entry)(nil)).
			Set("status = ?", StatusProcessing).
			Set("started_at = ?", now).
			Where("id = ?", entry.ID).
			Where("status = ?", StatusPending).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("claim entry: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		entry.Status = StatusProcessing
		entry.StartedAt = &now
		claimed = entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	return claimed, nil
}

// MarkCompleted finishes an entry successfully
func (s *Service) MarkCompleted(ctx context.Context, id string) error {
	_, err := s.db.NewUpdate().
		Model((*Entry)(nil)).
		Set("status = ?", StatusCompleted).
		Set("completed_at = ?", time.Now()).
		Set("error_message = NULL").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed records a failure. Within budget the entry returns to pending;
// at MaxRetries it is permanently failed and excluded from future pulls.
func (s *Service) MarkFailed(ctx context.Context, id string, cause error) error {
	entry := &Entry{}
	err := s.db.NewSelect().Model(entry).Column("id", "retry_count").Where("id = ?", id).Scan(ctx)
	if err != nil {
		return fmt.Errorf("load entry for failure: %w", err)
	}

	attempts := entry.RetryCount + 1
	status := StatusPending
	if attempts >= s.maxRetries {
		status = StatusFailed
	}

	_, err = s.db.NewUpdate().
		Model((*Entry)(nil)).
		Set("status = ?", status).
		Set("retry_count = ?", attempts).
		Set("error_message = ?", truncateError(cause.Error())).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}

	if status == StatusFailed {
		s.log.Warn("queue entry permanently failed",
			slog.String("id", id),
			slog.Int("attempts", attempts),
			slog.String("error", cause.Error()))
	} else {
		s.log.Debug("queue entry will retry",
			slog.String("id", id),
			slog.Int("attempt", attempts))
	}
	return nil
}

// Requeue returns a claimed entry to pending untouched: no retry_count
// increment, no error message. For entries claimed and then deliberately
// not processed, which must not burn the retry budget.
func (s *Service) Requeue(ctx context.Context, id string) error {
	_, err := s.db.NewUpdate().
		Model((*Entry)(nil)).
		Set("status = ?", StatusPending).
		Set("started_at = NULL").
		Where("id = ?", id).
		Where("status = ?", StatusProcessing).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("requeue: %w", err)
	}
	return nil
}

// RecoverStale resets entries stuck in processing longer than threshold.
// Runs at conductor startup; a crash mid-processing must not strand work.
func (s *Service) RecoverStale(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-threshold)
	res, err := s.db.NewUpdate().
		Model((*Entry)(nil)).
		Set("status = ?", StatusPending).
		Set("started_at = NULL").
		Where("status = ?", StatusProcessing).
		Where("started_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover stale entries: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Warn("recovered stale queue entries", slog.Int64("count", n))
	}
	return int(n), nil
}

// Stats summarizes queue state
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// GetStats returns queue statistics
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	for status, dest := range map[Status]*int{
		StatusPending:    &stats.Pending,
		StatusProcessing: &stats.Processing,
		StatusCompleted:  &stats.Completed,
		StatusFailed:     &stats.Failed,
	} {
		n, err := s.db.NewSelect().Model((*Entry)(nil)).Where("status = ?", status).Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("queue stats: %w", err)
		}
		*dest = n
	}
	return stats, nil
}

func truncateError(msg string) string {
	if len(msg) > 500 {
		return msg[:500]
	}
	return msg
}
