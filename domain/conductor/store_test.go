package conductor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/engagic/engagic/domain/cities"
	"github.com/engagic/engagic/domain/matters"
	"github.com/engagic/engagic/domain/meetings"
	"github.com/engagic/engagic/domain/queue"
	"github.com/engagic/engagic/internal/config"
	"github.com/engagic/engagic/internal/database"
)

func testConductor(t *testing.T) (*Conductor, *bun.DB) {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, database.CreateTables(context.Background(), db))
	t.Cleanup(func() { db.Close() })

	log := slog.Default()
	c := &Conductor{
		cities:   cities.NewRepository(db, log),
		meetings: meetings.NewRepository(db, log),
		queue:    queue.NewService(db, &config.Config{}, log),
		matters:  matters.NewService(db, log),
		cfg:      &config.Config{},
		log:      log,
	}
	return c, db
}

// Scraped rows carry no vendor id, so identity comes from the content
// hash. Re-syncing the same listing, in any order, must land on the same
// meeting row and the same queue entry.
func TestStoreMeetingStableAcrossResyncs(t *testing.T) {
	c, db := testConductor(t)
	ctx := context.Background()
	city := &cities.City{Banana: "exampleCA", Name: "Example", State: "CA",
		Vendor: cities.VendorGranicus, Slug: "example"}

	fetched := meetings.FetchedMeeting{
		Title:      "City Council Regular Meeting",
		Start:      time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC),
		PacketURLs: []string{"https://example.granicus.com/AgendaViewer.php?view_id=2&clip_id=991"},
	}

	first := fetched
	queued, err := c.storeMeeting(ctx, city, &first)
	require.NoError(t, err)
	assert.True(t, queued)

	// Second sync: the publisher page now lists the meeting at a different
	// position, everything else unchanged.
	second := fetched
	_, err = c.storeMeeting(ctx, city, &second)
	require.NoError(t, err)

	n, err := db.NewSelect().Model((*meetings.Meeting)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "same meeting stored more than once across syncs")

	stored := &meetings.Meeting{}
	require.NoError(t, db.NewSelect().Model(stored).Scan(ctx))
	want := city.Banana + "_" + meetings.GenerateID(city.Slug, fetched.Start, fetched.Title, string(city.Vendor))
	assert.Equal(t, want, stored.ID)

	entries, err := db.NewSelect().Model((*queue.Entry)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, entries)
}

func TestStoreMeetingPrefersVendorID(t *testing.T) {
	c, db := testConductor(t)
	ctx := context.Background()
	city := &cities.City{Banana: "seattleWA", Name: "Seattle", State: "WA",
		Vendor: cities.VendorLegistar, Slug: "seattle"}

	fetched := meetings.FetchedMeeting{
		VendorID:   "654",
		Title:      "City Council",
		Start:      time.Date(2026, 9, 2, 14, 0, 0, 0, time.UTC),
		PacketURLs: []string{"https://seattle.legistar.com/View.ashx?ID=1"},
	}
	_, err := c.storeMeeting(ctx, city, &fetched)
	require.NoError(t, err)

	stored := &meetings.Meeting{}
	require.NoError(t, db.NewSelect().Model(stored).Scan(ctx))
	assert.Equal(t, "seattleWA_654", stored.ID)
}
