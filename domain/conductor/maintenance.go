package conductor

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/engagic/engagic/pkg/logger"
)

const (
	staleRecoverySchedule = "@every 1h"
	queueReportSchedule   = "@every 24h"
)

// maintenance runs the housekeeping jobs alongside the two main loops:
// hourly stale-entry recovery and a daily queue report.
type maintenance struct {
	cron *cron.Cron
	log  *slog.Logger
}

func (c *Conductor) newMaintenance() (*maintenance, error) {
	m := &maintenance{
		cron: cron.New(),
		log:  c.log.With(logger.Scope("maintenance")),
	}

	if _, err := m.cron.AddFunc(staleRecoverySchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := c.queue.RecoverStale(ctx, c.cfg.Processor.StaleThreshold)
		if err != nil {
			m.log.Warn("stale recovery failed", logger.Error(err))
			return
		}
		if n > 0 {
			m.log.Info("recovered stale entries", slog.Int("count", n))
		}
	}); err != nil {
		return nil, err
	}

	if _, err := m.cron.AddFunc(queueReportSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		stats, err := c.queue.GetStats(ctx)
		if err != nil {
			m.log.Warn("queue report failed", logger.Error(err))
			return
		}
		m.log.Info("queue report",
			slog.Int("pending", stats.Pending),
			slog.Int("processing", stats.Processing),
			slog.Int("completed", stats.Completed),
			slog.Int("failed", stats.Failed))
	}); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *maintenance) Start() {
	m.cron.Start()
}

func (m *maintenance) Stop() {
	<-m.cron.Stop().Done()
}
