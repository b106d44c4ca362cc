package meetings

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/engagic/engagic/pkg/logger"
)

var Module = fx.Module("meetings",
	fx.Provide(NewRepository),
)

// Repository persists meetings and agenda items. It is the only writer of
// entity state; adapters hand it value records via the conductor.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a meeting repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("meetings")),
	}
}

// Upsert inserts or updates a meeting keyed by id. Sync-owned fields are
// refreshed; processor-owned fields (summary, topics, processing_*) are
// left untouched so a re-sync never clobbers enrichment.
func (r *Repository) Upsert(ctx context.Context, m *Meeting) error {
	m.UpdatedAt = time.Now()
	if m.ProcessingStatus == "" {
		m.ProcessingStatus = ProcessingPending
	}

	_, err := r.db.NewInsert().
		Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("date = EXCLUDED.date").
		Set("packet_url = EXCLUDED.packet_url").
		Set("agenda_url = EXCLUDED.agenda_url").
		Set("status = EXCLUDED.status").
		Set("participation = COALESCE(EXCLUDED.participation, participation)").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert meeting %s: %w", m.ID, err)
	}
	return nil
}

// UpsertItem inserts or updates an agenda item keyed by id, preserving any
// existing summary and topics.
func (r *Repository) UpsertItem(ctx context.Context, item *AgendaItem) error {
	item.UpdatedAt = time.Now()

	_, err := r.db.NewInsert().
		Model(item).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("sequence = EXCLUDED.sequence").
		Set("attachments = EXCLUDED.attachments").
		Set("matter_id = EXCLUDED.matter_id").
		Set("matter_file = EXCLUDED.matter_file").
		Set("matter_type = EXCLUDED.matter_type").
		Set("sponsors = EXCLUDED.sponsors").
		Set("section = EXCLUDED.section").
		Set("item_number = EXCLUDED.item_number").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert item %s: %w", item.ID, err)
	}
	return nil
}

// Get returns a meeting by id, or nil when absent
func (r *Repository) Get(ctx context.Context, id string) (*Meeting, error) {
	m := &Meeting{}
	err := r.db.NewSelect().Model(m).Where("id = ?", id).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meeting %s: %w", id, err)
	}
	return m, nil
}

// GetByPacketURL returns the meeting whose canonical packet url matches
func (r *Repository) GetByPacketURL(ctx context.Context, packetURL string) (*Meeting, error) {
	m := &Meeting{}
	err := r.db.NewSelect().Model(m).Where("packet_url = ?", packetURL).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meeting by packet url: %w", err)
	}
	return m, nil
}

// Items returns a meeting's agenda items in sequence order
func (r *Repository) Items(ctx context.Context, meetingID string) ([]*AgendaItem, error) {
	var items []*AgendaItem
	err := r.db.NewSelect().
		Model(&items).
		Where("meeting_id = ?", meetingID).
		Order("sequence ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("items for meeting %s: %w", meetingID, err)
	}
	return items, nil
}

// CountRecent returns how many meetings a city had in the trailing window.
// The conductor's activity gate keys sync frequency off this.
func (r *Repository) CountRecent(ctx context.Context, banana string, since time.Time) (int, error) {
	n, err := r.db.NewSelect().
		Model((*Meeting)(nil)).
		Where("banana = ?", banana).
		Where("date >= ?", since).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count recent meetings for %s: %w", banana, err)
	}
	return n, nil
}

// SetSummary stores the processor's output for a meeting. Summary and
// complete status land in one update so a reader never observes a summary
// on a meeting that is not complete.
func (r *Repository) SetSummary(ctx context.Context, id, summary, method string, topics []string, seconds float64) error {
	_, err := r.db.NewUpdate().
		Model((*Meeting)(nil)).
		Set("summary = ?", summary).
		Set("topics = ?", StringList(topics)).
		Set("processing_status = ?", ProcessingComplete).
		Set("processing_method = ?", method).
		Set("processing_time = ?", seconds).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set summary for %s: %w", id, err)
	}
	return nil
}

// SetProcessingStatus updates only the processing state machine
func (r *Repository) SetProcessingStatus(ctx context.Context, id string, status ProcessingStatus) error {
	_, err := r.db.NewUpdate().
		Model((*Meeting)(nil)).
		Set("processing_status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set processing status for %s: %w", id, err)
	}
	return nil
}

// SetParticipation stores participation info extracted ahead of
// summarization, so search can use it even if the LLM step fails.
func (r *Repository) SetParticipation(ctx context.Context, id string, p *Participation) error {
	_, err := r.db.NewUpdate().
		Model((*Meeting)(nil)).
		Set("participation = ?", p).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set participation for %s: %w", id, err)
	}
	return nil
}

// SetItemSummary stores an item's summary and normalized topics
func (r *Repository) SetItemSummary(ctx context.Context, itemID, summary string, topics []string) error {
	_, err := r.db.NewUpdate().
		Model((*AgendaItem)(nil)).
		Set("summary = ?", summary).
		Set("topics = ?", StringList(topics)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", itemID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set item summary for %s: %w", itemID, err)
	}
	return nil
}

// Unprocessed returns meetings still pending, oldest first
func (r *Repository) Unprocessed(ctx context.Context, limit int) ([]*Meeting, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*Meeting
	err := r.db.NewSelect().
		Model(&out).
		Where("processing_status = ?", ProcessingPending).
		Where("packet_url IS NOT NULL OR agenda_url IS NOT NULL").
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed meetings: %w", err)
	}
	return out, nil
}
