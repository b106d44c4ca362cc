package cities

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

var Module = fx.Module("cities",
	fx.Provide(NewRepository),
)

// Repository persists cities and zipcode mappings
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a city repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("cities")),
	}
}

// Upsert inserts or updates a city keyed by banana
func (r *Repository) Upsert(ctx context.Context, city *City) error {
	if city.Banana == "" {
		city.Banana = Banana(city.Name, city.State)
	}
	city.UpdatedAt = time.Now()

	_, err := r.db.NewInsert().
		Model(city).
		On("CONFLICT (banana) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("state = EXCLUDED.state").
		Set("vendor = EXCLUDED.vendor").
		Set("slug = EXCLUDED.slug").
		Set("county = EXCLUDED.county").
		Set("status = EXCLUDED.status").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert city %s: %w", city.Banana, err)
	}
	return nil
}

// Get returns a city by banana, or nil when absent
func (r *Repository) Get(ctx context.Context, banana string) (*City, error) {
	city := &City{}
	err := r.db.NewSelect().
		Model(city).
		Where("banana = ?", banana).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get city %s: %w", banana, err)
	}
	return city, nil
}

// ListActive returns all active cities
func (r *Repository) ListActive(ctx context.Context) ([]*City, error) {
	var out []*City
	err := r.db.NewSelect().
		Model(&out).
		Where("status = ?", StatusActive).
		Order("banana ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active cities: %w", err)
	}
	return out, nil
}

// TouchSynced records a successful sync time
func (r *Repository) TouchSynced(ctx context.Context, banana string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*City)(nil)).
		Set("last_synced = ?", at).
		Set("updated_at = ?", time.Now()).
		Where("banana = ?", banana).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("touch synced %s: %w", banana, err)
	}
	return nil
}

// Count returns the number of cities, active and total
func (r *Repository) Count(ctx context.Context) (active int, total int, err error) {
	total, err = r.db.NewSelect().Model((*City)(nil)).Count(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count cities: %w", err)
	}
	active, err = r.db.NewSelect().
		Model((*City)(nil)).
		Where("status = ?", StatusActive).
		Count(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count active cities: %w", err)
	}
	return active, total, nil
}
