// Package cache de-duplicates summarization work across meetings that share
// a packet. Entries are keyed by the canonical packet URL.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/engagic/engagic/internal/database"
	"github.com/engagic/engagic/pkg/logger"
)

func init() {
	database.Register((*Entry)(nil))
}

var Module = fx.Module("cache",
	fx.Provide(NewService),
)

// Entry is a cached summary for one canonical packet URL
type Entry struct {
	bun.BaseModel `bun:"table:cache,alias:sc"`

	PacketURL      string    `bun:"packet_url,pk"`
	Summary        string    `bun:"summary,notnull"`
	ProcessingTime float64   `bun:"processing_time,notnull"`
	HitCount       int       `bun:"hit_count,notnull,default:0"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp"`
	LastAccessed   time.Time `bun:"last_accessed,notnull,default:current_timestamp"`
}

// Service reads and writes the summary cache
type Service struct {
	db  bun.IDB
	log *slog.Logger
}

// NewService creates a cache service
func NewService(db bun.IDB, log *slog.Logger) *Service {
	return &Service{
		db:  db,
		log: log.With(logger.Scope("cache")),
	}
}

// Lookup returns the cached entry for a canonical packet URL and records
// the hit. Hit count and last-accessed move under a single atomic UPDATE so
// concurrent readers cannot lose increments. Returns nil on miss.
func (s *Service) Lookup(ctx context.Context, packetURL string) (*Entry, error) {
	res, err := s.db.NewUpdate().
		Model((*Entry)(nil)).
		Set("hit_count = hit_count + 1").
		Set("last_accessed = ?", time.Now()).
		Where("packet_url = ?", packetURL).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache hit update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}

	entry := &Entry{}
	err = s.db.NewSelect().Model(entry).Where("packet_url = ?", packetURL).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache read: %w", err)
	}

	s.log.Debug("cache hit",
		slog.String("packet_url", packetURL),
		slog.Int("hit_count", entry.HitCount))
	return entry, nil
}

// Store writes or replaces the cached summary for a packet URL.
// Cache write failures are the caller's to log as warnings; a summary that
// could not be cached is still a valid summary.
func (s *Service) Store(ctx context.Context, packetURL, summary string, processingTime float64) error {
	now := time.Now()
	entry := &Entry{
		PacketURL:      packetURL,
		Summary:        summary,
		ProcessingTime: processingTime,
		CreatedAt:      now,
		LastAccessed:   now,
	}
	_, err := s.db.NewInsert().
		Model(entry).
		On("CONFLICT (packet_url) DO UPDATE").
		Set("summary = EXCLUDED.summary").
		Set("processing_time = EXCLUDED.processing_time").
		Set("last_accessed = EXCLUDED.last_accessed").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}
