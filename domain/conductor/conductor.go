// Package conductor runs the two long-lived loops: vendor sync (discovery)
// and queue processing (enrichment). One conductor instance per process,
// owned by the CLI driver.
package conductor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/fx"

	"github.com/engagic/engagic/domain/adapters"
	"github.com/engagic/engagic/domain/cities"
	"github.com/engagic/engagic/domain/matters"
	"github.com/engagic/engagic/domain/meetings"
	"github.com/engagic/engagic/domain/processor"
	"github.com/engagic/engagic/domain/queue"
	"github.com/engagic/engagic/internal/config"
	"github.com/engagic/engagic/pkg/logger"
)

var Module = fx.Module("conductor",
	fx.Provide(New),
)

const (
	groupPauseMin = 30 * time.Second
	groupPauseMax = 40 * time.Second

	cityRetryFirstWait  = 5 * time.Second
	cityRetrySecondWait = 20 * time.Second
	cityRetryJitterMax  = 2 * time.Second

	neverSyncedScore = 1000

	activityWindow = 30 * 24 * time.Hour
)

// Conductor coordinates sync and processing
type Conductor struct {
	cities    *cities.Repository
	meetings  *meetings.Repository
	queue     *queue.Service
	matters   *matters.Service
	processor *processor.Processor
	cfg       *config.Config
	limiter   *vendorLimiter
	log       *slog.Logger

	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	maint        *maintenance
	failedCities map[string]string // banana -> error, reset each cycle
}

// New creates a conductor
func New(cityRepo *cities.Repository, meetingRepo *meetings.Repository, queueSvc *queue.Service,
	matterSvc *matters.Service, proc *processor.Processor, cfg *config.Config, log *slog.Logger) *Conductor {
	return &Conductor{
		cities:       cityRepo,
		meetings:     meetingRepo,
		queue:        queueSvc,
		matters:      matterSvc,
		processor:    proc,
		cfg:          cfg,
		limiter:      newVendorLimiter(MinDelay, time.Second),
		log:          log.With(logger.Scope("conductor")),
		failedCities: make(map[string]string),
	}
}

// Start launches both loops. Stale queue entries from a previous crash are
// recovered before any new work is pulled.
func (c *Conductor) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	if n, err := c.queue.RecoverStale(ctx, c.cfg.Processor.StaleThreshold); err != nil {
		c.log.Warn("stale recovery failed", logger.Error(err))
	} else if n > 0 {
		c.log.Info("recovered stale entries", slog.Int("count", n))
	}

	maint, err := c.newMaintenance()
	if err != nil {
		return fmt.Errorf("schedule maintenance: %w", err)
	}
	maint.Start()
	c.mu.Lock()
	c.maint = maint
	c.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.syncLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		c.processLoop(ctx)
	}()
	go func() {
		wg.Wait()
		close(c.doneCh)
	}()

	c.log.Info("conductor started")
	return nil
}

// Stop flips the running flag and waits for both loops to finish their
// current iteration, bounded by the configured shutdown timeout.
func (c *Conductor) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.doneCh
	maint := c.maint
	c.mu.Unlock()

	if maint != nil {
		maint.Stop()
	}

	select {
	case <-done:
		c.log.Info("conductor stopped")
	case <-time.After(c.cfg.ShutdownTimeout):
		c.log.Warn("conductor stop timed out")
	}
}

func (c *Conductor) stopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// syncLoop runs a full sync on the configured interval, backing off to the
// error cooldown after a fatal cycle failure.
func (c *Conductor) syncLoop(ctx context.Context) {
	for {
		wait := c.cfg.Sync.Interval
		if err := c.FullSync(ctx); err != nil {
			c.log.Error("sync cycle failed", logger.Error(err))
			wait = c.cfg.Sync.ErrorCooldown
		}

		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// FullSync syncs every active city, grouped by vendor and ordered by
// priority within each group.
func (c *Conductor) FullSync(ctx context.Context) error {
	c.mu.Lock()
	c.failedCities = make(map[string]string)
	c.mu.Unlock()

	active, err := c.cities.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active cities: %w", err)
	}
	if len(active) == 0 {
		c.log.Info("no active cities to sync")
		return nil
	}

	groups := make(map[cities.Vendor][]*cities.City)
	for _, city := range active {
		groups[city.Vendor] = append(groups[city.Vendor], city)
	}
	vendors := make([]cities.Vendor, 0, len(groups))
	for vendor := range groups {
		vendors = append(vendors, vendor)
	}
	sort.Slice(vendors, func(i, j int) bool { return vendors[i] < vendors[j] })

	synced, skipped := 0, 0
	for gi, vendor := range vendors {
		group := groups[vendor]
		c.orderByPriority(ctx, group)

		for _, city := range group {
			if c.stopping() || ctx.Err() != nil {
				return nil
			}
			due, err := c.syncDue(ctx, city)
			if err != nil {
				c.log.Warn("activity gate check failed", slog.String("banana", city.Banana), logger.Error(err))
			}
			if !due {
				skipped++
				continue
			}
			if err := c.syncCityWithRetry(ctx, city); err != nil {
				c.recordFailure(city.Banana, err)
				continue
			}
			synced++
		}

		c.logMemory(vendor)
		if gi < len(vendors)-1 {
			pause := groupPauseMin + time.Duration(rand.Int63n(int64(groupPauseMax-groupPauseMin)))
			select {
			case <-c.stopCh:
				return nil
			case <-ctx.Done():
				return nil
			case <-time.After(pause):
			}
		}
	}

	c.mu.Lock()
	failed := len(c.failedCities)
	c.mu.Unlock()
	c.log.Info("sync cycle complete",
		slog.Int("synced", synced),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed))
	return nil
}

// orderByPriority sorts a vendor group: never-synced cities first, then by
// 10x recent meeting count plus capped staleness.
func (c *Conductor) orderByPriority(ctx context.Context, group []*cities.City) {
	scores := make(map[string]float64, len(group))
	for _, city := range group {
		scores[city.Banana] = c.priorityScore(ctx, city)
	}
	sort.SliceStable(group, func(i, j int) bool {
		return scores[group[i].Banana] > scores[group[j].Banana]
	})
}

func (c *Conductor) priorityScore(ctx context.Context, city *cities.City) float64 {
	if city.LastSynced == nil {
		return neverSyncedScore
	}
	recent, err := c.meetings.CountRecent(ctx, city.Banana, time.Now().Add(-activityWindow))
	if err != nil {
		recent = 0
	}
	staleness := time.Since(*city.LastSynced).Hours() / 24
	if staleness > 10 {
		staleness = 10
	}
	return float64(10*recent) + staleness
}

// syncDue applies the activity gate: busy cities re-sync every 12 hours,
// quiet ones weekly.
func (c *Conductor) syncDue(ctx context.Context, city *cities.City) (bool, error) {
	if city.LastSynced == nil {
		return true, nil
	}
	recent, err := c.meetings.CountRecent(ctx, city.Banana, time.Now().Add(-activityWindow))
	if err != nil {
		return true, err
	}
	return time.Since(*city.LastSynced) > syncThreshold(recent), nil
}

// syncThreshold maps 30-day meeting volume to a re-sync interval
func syncThreshold(recentMeetings int) time.Duration {
	switch {
	case recentMeetings >= 8:
		return 12 * time.Hour
	case recentMeetings >= 4:
		return 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// syncCityWithRetry gives each city one retry with a short then a long wait
func (c *Conductor) syncCityWithRetry(ctx context.Context, city *cities.City) error {
	err := c.SyncCity(ctx, city)
	if err == nil {
		return nil
	}
	for attempt, wait := range []time.Duration{cityRetryFirstWait, cityRetrySecondWait} {
		jittered := wait + time.Duration(rand.Int63n(int64(cityRetryJitterMax)))
		c.log.Warn("city sync failed, retrying",
			slog.String("banana", city.Banana),
			slog.Int("attempt", attempt+1),
			slog.Duration("wait", jittered),
			logger.Error(err))
		select {
		case <-c.stopCh:
			return err
		case <-ctx.Done():
			return err
		case <-time.After(jittered):
		}
		if err = c.SyncCity(ctx, city); err == nil {
			return nil
		}
	}
	return err
}

// SyncCity fetches one city's meetings and stores them. The adapter owns
// its HTTP session for the duration of the call.
func (c *Conductor) SyncCity(ctx context.Context, city *cities.City) error {
	if err := c.limiter.Wait(ctx, city.Vendor); err != nil {
		return err
	}

	adapter, err := adapters.New(city, c.cfg, adapters.DefaultWindow(c.cfg), c.log)
	if err != nil {
		return fmt.Errorf("open adapter for %s: %w", city.Banana, err)
	}
	defer adapter.Close()

	fetched, err := adapter.FetchMeetings(ctx)
	if err != nil {
		return fmt.Errorf("fetch meetings for %s: %w", city.Banana, err)
	}

	stored, enqueued := 0, 0
	for i := range fetched {
		fm := &fetched[i]
		if err := fm.Validate(); err != nil {
			c.log.Warn("dropping invalid meeting", slog.String("banana", city.Banana), logger.Error(err))
			continue
		}
		queued, err := c.storeMeeting(ctx, city, fm)
		if err != nil {
			c.log.Warn("meeting store failed", slog.String("banana", city.Banana), logger.Error(err))
			continue
		}
		stored++
		if queued {
			enqueued++
		}
	}

	if err := c.cities.TouchSynced(ctx, city.Banana, time.Now()); err != nil {
		c.log.Warn("last-synced update failed", logger.Error(err))
	}
	c.log.Info("city synced",
		slog.String("banana", city.Banana),
		slog.Int("meetings", stored),
		slog.Int("enqueued", enqueued))
	return nil
}

// storeMeeting upserts the meeting and its items, records matters, and
// enqueues processable meetings. Returns whether a queue entry was added.
func (c *Conductor) storeMeeting(ctx context.Context, city *cities.City, fm *meetings.FetchedMeeting) (bool, error) {
	id := fm.VendorID
	if id == "" {
		id = meetings.GenerateID(city.Slug, fm.Start, fm.Title, string(city.Vendor))
	}
	id = city.Banana + "_" + id

	m := &meetings.Meeting{
		ID:     id,
		Banana: city.Banana,
		Title:  fm.Title,
	}
	if !fm.Start.IsZero() {
		start := fm.Start
		m.Date = &start
	}
	if fm.Status != "" {
		status := fm.Status
		m.Status = &status
	}
	if fm.Participation != nil {
		m.Participation = fm.Participation
	}

	canonical := ""
	if fm.HasItems() {
		agendaURL := fm.AgendaURL
		m.AgendaURL = &agendaURL
		canonical = agendaURL
	} else {
		canonical = queue.CanonicalPacketURL(fm.PacketURLs)
		if canonical != "" {
			m.PacketURL = &canonical
		}
	}

	if err := c.meetings.Upsert(ctx, m); err != nil {
		return false, err
	}

	for _, fi := range fm.Items {
		item := &meetings.AgendaItem{
			ID:          meetings.ItemID(id, fi.VendorItemID, fi.Sequence),
			MeetingID:   id,
			Title:       fi.Title,
			Sequence:    fi.Sequence,
			Attachments: fi.Attachments,
			Sponsors:    fi.Sponsors,
		}
		if fi.MatterID != "" {
			item.MatterID = &fi.MatterID
		}
		if fi.MatterFile != "" {
			item.MatterFile = &fi.MatterFile
		}
		if fi.MatterType != "" {
			item.MatterType = &fi.MatterType
		}
		if fi.Section != "" {
			item.Section = &fi.Section
		}
		if fi.ItemNumber != "" {
			item.ItemNumber = &fi.ItemNumber
		}
		if err := c.meetings.UpsertItem(ctx, item); err != nil {
			return false, err
		}

		if fi.MatterFile != "" {
			appearedAt := fm.Start
			if appearedAt.IsZero() {
				appearedAt = time.Now()
			}
			if err := c.matters.RecordAppearance(ctx, city.Banana, fi.MatterFile, fi.MatterType,
				fi.Title, id, item.ID, appearedAt, fi.Sponsors); err != nil {
				c.log.Warn("matter appearance failed", logger.Error(err))
			}
		}
	}

	if canonical == "" {
		return false, nil
	}
	daysOld := 0
	if !fm.Start.IsZero() && fm.Start.Before(time.Now()) {
		daysOld = int(time.Since(fm.Start).Hours() / 24)
	}
	if _, err := c.queue.Enqueue(ctx, canonical, id, city.Banana, queue.Priority(daysOld)); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Conductor) recordFailure(banana string, err error) {
	c.mu.Lock()
	c.failedCities[banana] = err.Error()
	c.mu.Unlock()
}

// logMemory reports process RSS between vendor groups; big HTML and PDF
// buffers should have been released by now.
func (c *Conductor) logMemory(vendor cities.Vendor) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return
	}
	c.log.Info("vendor group done",
		slog.String("vendor", string(vendor)),
		slog.Uint64("rss_mb", mem.RSS/(1<<20)))
}
