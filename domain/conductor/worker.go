package conductor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/engagic/engagic/domain/meetings"
	"github.com/engagic/engagic/domain/queue"
	"github.com/engagic/engagic/pkg/logger"
)

// processLoop drains the queue one entry at a time, sleeping briefly when
// idle or after an exception.
func (c *Conductor) processLoop(ctx context.Context) {
	for {
		if c.stopping() || ctx.Err() != nil {
			return
		}

		entry, err := c.queue.Dequeue(ctx)
		if err != nil {
			c.log.Error("dequeue failed", logger.Error(err))
			c.sleep(ctx, c.cfg.Processor.ErrorSleep)
			continue
		}
		if entry == nil {
			c.sleep(ctx, c.cfg.Processor.IdleSleep)
			continue
		}

		if err := c.processEntry(ctx, entry); err != nil {
			if markErr := c.queue.MarkFailed(ctx, entry.ID, err); markErr != nil {
				c.log.Error("mark failed errored", logger.Error(markErr))
			}
			if markErr := c.meetings.SetProcessingStatus(ctx, entry.MeetingID, meetings.ProcessingFailed); markErr != nil {
				c.log.Warn("processing status update failed", logger.Error(markErr))
			}
			c.sleep(ctx, c.cfg.Processor.ErrorSleep)
			continue
		}

		if err := c.queue.MarkCompleted(ctx, entry.ID); err != nil {
			c.log.Error("mark completed errored", logger.Error(err))
		}
	}
}

func (c *Conductor) processEntry(ctx context.Context, entry *queue.Entry) error {
	meeting, err := c.meetings.Get(ctx, entry.MeetingID)
	if err != nil {
		return err
	}
	if meeting == nil {
		return fmt.Errorf("queue entry %s references missing meeting %s", entry.ID, entry.MeetingID)
	}

	if err := c.meetings.SetProcessingStatus(ctx, meeting.ID, meetings.ProcessingInProgress); err != nil {
		c.log.Warn("processing status update failed", logger.Error(err))
	}

	result, err := c.processor.ProcessMeeting(ctx, meeting)
	if err != nil {
		return err
	}

	c.log.Info("meeting processed",
		slog.String("meeting_id", meeting.ID),
		slog.String("method", result.Method),
		slog.Bool("cached", result.Cached),
		slog.Float64("seconds", result.Seconds))
	return nil
}

func (c *Conductor) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-c.stopCh:
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// ForceSync syncs one city immediately, bypassing the activity gate
func (c *Conductor) ForceSync(ctx context.Context, banana string) error {
	city, err := c.cities.Get(ctx, banana)
	if err != nil {
		return err
	}
	if city == nil {
		return fmt.Errorf("unknown city %q", banana)
	}
	return c.SyncCity(ctx, city)
}

// SyncAndProcess syncs a city and then drains its queue entries inline
func (c *Conductor) SyncAndProcess(ctx context.Context, banana string) error {
	if err := c.ForceSync(ctx, banana); err != nil {
		return err
	}

	// Foreign entries stay claimed until the drain finishes so Dequeue
	// never hands them back; they return to pending untouched afterward.
	var foreign []string
	defer func() {
		for _, id := range foreign {
			if err := c.queue.Requeue(ctx, id); err != nil {
				c.log.Error("requeue failed", slog.String("id", id), logger.Error(err))
			}
		}
	}()

	processed := 0
	for {
		entry, err := c.queue.Dequeue(ctx)
		if err != nil {
			return err
		}
		if entry == nil {
			break
		}
		if entry.Banana != banana {
			foreign = append(foreign, entry.ID)
			continue
		}
		if err := c.processEntry(ctx, entry); err != nil {
			if markErr := c.queue.MarkFailed(ctx, entry.ID, err); markErr != nil {
				return markErr
			}
			continue
		}
		if err := c.queue.MarkCompleted(ctx, entry.ID); err != nil {
			return err
		}
		processed++
	}
	c.log.Info("sync-and-process done", slog.String("banana", banana), slog.Int("processed", processed))
	return nil
}

// ForceProcess processes a single meeting by its canonical packet URL
func (c *Conductor) ForceProcess(ctx context.Context, packetURL string) error {
	meeting, err := c.meetings.GetByPacketURL(ctx, packetURL)
	if err != nil {
		return err
	}
	if meeting == nil {
		return fmt.Errorf("no meeting with packet url %q", packetURL)
	}
	result, err := c.processor.ProcessMeeting(ctx, meeting)
	if err != nil {
		return err
	}
	c.log.Info("meeting processed",
		slog.String("meeting_id", meeting.ID),
		slog.String("method", result.Method))
	return nil
}

// ProcessAllUnprocessed works through pending meetings in batches
func (c *Conductor) ProcessAllUnprocessed(ctx context.Context, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 10
	}
	total := 0
	for {
		pending, err := c.meetings.Unprocessed(ctx, batchSize)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			break
		}
		for _, meeting := range pending {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if _, err := c.processor.ProcessMeeting(ctx, meeting); err != nil {
				c.log.Warn("processing failed",
					slog.String("meeting_id", meeting.ID), logger.Error(err))
				if markErr := c.meetings.SetProcessingStatus(ctx, meeting.ID, meetings.ProcessingFailed); markErr != nil {
					c.log.Warn("processing status update failed", logger.Error(markErr))
				}
				continue
			}
			total++
		}
		if len(pending) < batchSize {
			break
		}
	}
	c.log.Info("backfill complete", slog.Int("processed", total))
	return nil
}

// Status is the operator-facing snapshot
type Status struct {
	ActiveCities int               `json:"active_cities"`
	TotalCities  int               `json:"total_cities"`
	Queue        *queue.Stats      `json:"queue"`
	FailedCities map[string]string `json:"failed_cities,omitempty"`
}

// GetStatus reports current pipeline state
func (c *Conductor) GetStatus(ctx context.Context) (*Status, error) {
	active, total, err := c.cities.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := c.queue.GetStats(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	failed := make(map[string]string, len(c.failedCities))
	for banana, msg := range c.failedCities {
		failed[banana] = msg
	}
	c.mu.Unlock()

	return &Status{ActiveCities: active, TotalCities: total, Queue: stats, FailedCities: failed}, nil
}
