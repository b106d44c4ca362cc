// Package matters tracks legislative dockets across meetings. A matter is
// the long-lived record (an ordinance, a contract file) that surfaces as
// agenda items in many meetings; appearances are the join rows.
package matters

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/engagic/engagic/domain/meetings"
	"github.com/engagic/engagic/internal/database"
	"github.com/engagic/engagic/pkg/logger"
)

func init() {
	database.Register((*Matter)(nil))
	database.Register((*Appearance)(nil))
}

var Module = fx.Module("matters",
	fx.Provide(NewService),
)

// Matter is a persistent legislative docket
type Matter struct {
	bun.BaseModel `bun:"table:city_matters,alias:mt"`

	ID               string              `bun:"id,pk"` // {banana}_{matter_file}
	Banana           string              `bun:"banana,notnull"`
	MatterFile       string              `bun:"matter_file,notnull"`
	MatterType       string              `bun:"matter_type"`
	Title            string              `bun:"title,notnull"`
	CanonicalSummary string              `bun:"canonical_summary"`
	CanonicalTopics  meetings.StringList `bun:"canonical_topics,type:text"`
	Sponsors         meetings.StringList `bun:"sponsors,type:text"`
	FirstSeen        time.Time           `bun:"first_seen,notnull"`
	LastSeen         time.Time           `bun:"last_seen,notnull"`
	AppearanceCount  int                 `bun:"appearance_count,notnull,default:0"`
}

// Appearance links a matter to one agenda item in one meeting
type Appearance struct {
	bun.BaseModel `bun:"table:matter_appearances,alias:ma"`

	MatterID    string    `bun:"matter_id,pk"`
	ItemID      string    `bun:"item_id,pk"`
	MeetingID   string    `bun:"meeting_id,notnull"`
	AppearedAt  time.Time `bun:"appeared_at,notnull"`
	VoteOutcome string    `bun:"vote_outcome"`
	VoteTally   string    `bun:"vote_tally"`
}

// Service maintains matters and their appearance history
type Service struct {
	db  bun.IDB
	log *slog.Logger
}

// NewService creates a matters service
func NewService(db bun.IDB, log *slog.Logger) *Service {
	return &Service{
		db:  db,
		log: log.With(logger.Scope("matters")),
	}
}

// MatterID builds the deterministic matter key
func MatterID(banana, matterFile string) string {
	return banana + "_" + matterFile
}

// RecordAppearance upserts the matter and logs one appearance. first_seen
// is set once; last_seen and appearance_count advance with each new
// appearance. Canonical summary/topics are written only on first sight and
// never recomputed for later appearances.
func (s *Service) RecordAppearance(ctx context.Context, banana, matterFile, matterType, title, meetingID, itemID string, appearedAt time.Time, sponsors []string) error {
	if matterFile == "" {
		return fmt.Errorf("record appearance: empty matter file")
	}

	matterID := MatterID(banana, matterFile)
	matter := &Matter{
		ID:         matterID,
		Banana:     banana,
		MatterFile: matterFile,
		MatterType: matterType,
		Title:      title,
		Sponsors:   meetings.StringList(sponsors),
		FirstSeen:  appearedAt,
		LastSeen:   appearedAt,
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(matter).
			On("CONFLICT (id) DO UPDATE").
			Set("title = EXCLUDED.title").
			Set("matter_type = EXCLUDED.matter_type").
			Set("sponsors = EXCLUDED.sponsors").
			Set("last_seen = MAX(last_seen, EXCLUDED.last_seen)").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert matter %s: %w", matterID, err)
		}

		appearance := &Appearance{
			MatterID:   matterID,
			ItemID:     itemID,
			MeetingID:  meetingID,
			AppearedAt: appearedAt,
		}
		res, err := tx.NewInsert().
			Model(appearance).
			On("CONFLICT (matter_id, item_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert appearance: %w", err)
		}

		// Only bump the counter when this item is genuinely new for the
		// matter; re-syncing the same meeting must not inflate it.
		if n, _ := res.RowsAffected(); n > 0 {
			_, err = tx.NewUpdate().
				Model((*Matter)(nil)).
				Set("appearance_count = appearance_count + 1").
				Where("id = ?", matterID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("bump appearance count: %w", err)
			}
		}
		return nil
	})
}

// SetCanonicalSummary stores the matter's frozen summary and topics
func (s *Service) SetCanonicalSummary(ctx context.Context, matterID, summary string, topics []string) error {
	_, err := s.db.NewUpdate().
		Model((*Matter)(nil)).
		Set("canonical_summary = ?", summary).
		Set("canonical_topics = ?", meetings.StringList(topics)).
		Where("id = ?", matterID).
		Where("canonical_summary IS NULL OR canonical_summary = ''").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set canonical summary for %s: %w", matterID, err)
	}
	return nil
}

// Get returns a matter by id, or nil when absent
func (s *Service) Get(ctx context.Context, id string) (*Matter, error) {
	m := &Matter{}
	err := s.db.NewSelect().Model(m).Where("id = ?", id).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get matter %s: %w", id, err)
	}
	return m, nil
}

// Appearances lists a matter's appearance history, newest first
func (s *Service) Appearances(ctx context.Context, matterID string) ([]*Appearance, error) {
	var out []*Appearance
	err := s.db.NewSelect().
		Model(&out).
		Where("matter_id = ?", matterID).
		Order("appeared_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("appearances for %s: %w", matterID, err)
	}
	return out, nil
}
