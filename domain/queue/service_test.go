package queue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/engagic/engagic/internal/config"
	"github.com/engagic/engagic/internal/database"
)

func testDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, database.CreateTables(context.Background(), db))
	t.Cleanup(func() { db.Close() })
	return db
}

func loadEntry(t *testing.T, db *bun.DB, id string) *Entry {
	t.Helper()
	entry := &Entry{}
	require.NoError(t, db.NewSelect().Model(entry).Where("id = ?", id).Scan(context.Background()))
	return entry
}

func TestRequeuePreservesRetryBudget(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, &config.Config{}, slog.Default())
	ctx := context.Background()

	entry, err := svc.Enqueue(ctx, "https://example.granicus.com/AgendaViewer.php?view_id=2&clip_id=991",
		"exampleCA_abc123", "exampleCA", 10)
	require.NoError(t, err)

	// Claim and hand back more times than the retry budget allows; the
	// entry must survive with its budget intact.
	for i := 0; i < MaxRetries+1; i++ {
		claimed, err := svc.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		require.Equal(t, entry.ID, claimed.ID)
		require.NoError(t, svc.Requeue(ctx, claimed.ID))
	}

	got := loadEntry(t, db, entry.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	assert.Nil(t, got.StartedAt)
}

func TestRequeueOnlyTouchesClaimedEntries(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, &config.Config{}, slog.Default())
	ctx := context.Background()

	entry, err := svc.Enqueue(ctx, "https://x.gov/packet.pdf", "m1", "exampleCA", 5)
	require.NoError(t, err)

	claimed, err := svc.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.MarkCompleted(ctx, claimed.ID))

	// A completed entry never returns to pending.
	require.NoError(t, svc.Requeue(ctx, entry.ID))
	assert.Equal(t, StatusCompleted, loadEntry(t, db, entry.ID).Status)
}

func TestMarkFailedRetriesThenFails(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, &config.Config{}, slog.Default())
	ctx := context.Background()

	entry, err := svc.Enqueue(ctx, "https://x.gov/packet.pdf", "m1", "exampleCA", 5)
	require.NoError(t, err)

	for attempt := 1; attempt <= MaxRetries; attempt++ {
		claimed, err := svc.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed, "attempt %d", attempt)
		require.NoError(t, svc.MarkFailed(ctx, claimed.ID, fmt.Errorf("download failed")))
	}

	got := loadEntry(t, db, entry.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, MaxRetries, got.RetryCount)

	claimed, err := svc.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestMarkFailedHonorsConfiguredBudget(t *testing.T) {
	db := testDB(t)
	cfg := &config.Config{}
	cfg.Processor.MaxRetries = 1
	svc := NewService(db, cfg, slog.Default())
	ctx := context.Background()

	entry, err := svc.Enqueue(ctx, "https://x.gov/packet.pdf", "m1", "exampleCA", 5)
	require.NoError(t, err)

	claimed, err := svc.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.MarkFailed(ctx, claimed.ID, fmt.Errorf("download failed")))

	got := loadEntry(t, db, entry.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
}
