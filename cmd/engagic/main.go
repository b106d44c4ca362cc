// Package main is the engagic pipeline entry point.
//
// Daemon mode runs the conductor's sync and processing loops until
// interrupted. Every other flag is a one-shot operation against the same
// database, useful for onboarding cities and debugging single meetings.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/engagic/engagic/domain/adapters"
	"github.com/engagic/engagic/domain/cache"
	"github.com/engagic/engagic/domain/cities"
	"github.com/engagic/engagic/domain/conductor"
	"github.com/engagic/engagic/domain/matters"
	"github.com/engagic/engagic/domain/meetings"
	"github.com/engagic/engagic/domain/processor"
	"github.com/engagic/engagic/domain/queue"
	"github.com/engagic/engagic/domain/summarize"
	"github.com/engagic/engagic/domain/topics"
	"github.com/engagic/engagic/internal/config"
	"github.com/engagic/engagic/internal/database"
	"github.com/engagic/engagic/pkg/logger"
)

func main() {
	// Load .env if present (for local development). Load() won't overwrite
	// existing vars.
	_ = godotenv.Load()

	daemon := flag.Bool("daemon", false, "run the sync and processing loops until interrupted")
	fullSync := flag.Bool("full-sync", false, "sync every active city once, then exit")
	syncCity := flag.String("sync-city", "", "sync one city by banana, then exit")
	syncAndProcess := flag.String("sync-and-process", "", "sync one city and process its queue inline")
	processMeeting := flag.String("process-meeting", "", "process one meeting by canonical packet URL")
	processAll := flag.Bool("process-all-unprocessed", false, "process every pending meeting, then exit")
	batchSize := flag.Int("batch-size", 10, "batch size for -process-all-unprocessed")
	status := flag.Bool("status", false, "print pipeline status as JSON")
	addCity := flag.String("add-city", "", "register a city: 'Name,ST,vendor,slug'")
	flag.Parse()

	if *daemon {
		runDaemon()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case *addCity != "":
		err = runAddCity(ctx, *addCity)
	case *fullSync:
		err = withConductor(ctx, false, func(c *conductor.Conductor) error {
			return c.FullSync(ctx)
		})
	case *syncCity != "":
		err = withConductor(ctx, false, func(c *conductor.Conductor) error {
			return c.ForceSync(ctx, *syncCity)
		})
	case *syncAndProcess != "":
		err = withConductor(ctx, true, func(c *conductor.Conductor) error {
			return c.SyncAndProcess(ctx, *syncAndProcess)
		})
	case *processMeeting != "":
		err = withConductor(ctx, true, func(c *conductor.Conductor) error {
			return c.ForceProcess(ctx, *processMeeting)
		})
	case *processAll:
		err = withConductor(ctx, true, func(c *conductor.Conductor) error {
			return c.ProcessAllUnprocessed(ctx, *batchSize)
		})
	case *status:
		err = runStatus(ctx)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runDaemon() {
	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,

		// Domain modules
		cities.Module,
		meetings.Module,
		queue.Module,
		cache.Module,
		matters.Module,
		topics.Module,
		summarize.Module,
		processor.Module,
		conductor.Module,

		fx.Invoke(registerLifecycle),
	).Run()
}

func registerLifecycle(lc fx.Lifecycle, db *bun.DB, cond *conductor.Conductor, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := adapters.LoadGranicusViewIDs(cfg.DataDir); err != nil {
				return err
			}
			if err := database.CreateTables(ctx, db); err != nil {
				return err
			}
			// The loops outlive startup; they stop via cond.Stop, not
			// this context.
			return cond.Start(context.Background())
		},
		OnStop: func(ctx context.Context) error {
			cond.Stop()
			return nil
		},
	})
}

// oneShot bundles everything a single CLI operation needs
type oneShot struct {
	log       *slog.Logger
	cfg       *config.Config
	db        *bun.DB
	cities    *cities.Repository
	conductor *conductor.Conductor
}

// buildOneShot wires the pipeline by hand, outside fx. Ops that summarize
// need the LLM client and therefore an API key; sync-only ops do not.
func buildOneShot(ctx context.Context, needLLM bool) (*oneShot, error) {
	log := logger.NewLogger()
	cfg, err := config.NewConfig(log)
	if err != nil {
		return nil, err
	}
	if err := adapters.LoadGranicusViewIDs(cfg.DataDir); err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DataDir, log)
	if err != nil {
		return nil, err
	}
	if err := database.CreateTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	cityRepo := cities.NewRepository(db, log)
	meetingRepo := meetings.NewRepository(db, log)
	queueSvc := queue.NewService(db, cfg, log)
	cacheSvc := cache.NewService(db, log)
	matterSvc := matters.NewService(db, log)

	var proc *processor.Processor
	if needLLM {
		normalizer, err := topics.NewNormalizer(log)
		if err != nil {
			db.Close()
			return nil, err
		}
		summarizer, err := summarize.NewClient(ctx, cfg, log)
		if err != nil {
			db.Close()
			return nil, err
		}
		proc = processor.New(meetingRepo, cacheSvc, summarizer, normalizer, cfg, log)
	}

	cond := conductor.New(cityRepo, meetingRepo, queueSvc, matterSvc, proc, cfg, log)
	return &oneShot{log: log, cfg: cfg, db: db, cities: cityRepo, conductor: cond}, nil
}

func withConductor(ctx context.Context, needLLM bool, fn func(*conductor.Conductor) error) error {
	env, err := buildOneShot(ctx, needLLM)
	if err != nil {
		return err
	}
	defer env.db.Close()
	return fn(env.conductor)
}

func runStatus(ctx context.Context) error {
	env, err := buildOneShot(ctx, false)
	if err != nil {
		return err
	}
	defer env.db.Close()

	st, err := env.conductor.GetStatus(ctx)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runAddCity(ctx context.Context, spec string) error {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return fmt.Errorf("expected 'Name,ST,vendor,slug', got %q", spec)
	}
	name := strings.TrimSpace(parts[0])
	state := strings.TrimSpace(parts[1])
	vendor := cities.Vendor(strings.ToLower(strings.TrimSpace(parts[2])))
	slug := strings.TrimSpace(parts[3])

	env, err := buildOneShot(ctx, false)
	if err != nil {
		return err
	}
	defer env.db.Close()

	city := &cities.City{
		Banana: cities.Banana(name, state),
		Name:   name,
		State:  state,
		Vendor: vendor,
		Slug:   slug,
		Status: cities.StatusActive,
	}
	if err := env.cities.Upsert(ctx, city); err != nil {
		return err
	}
	fmt.Println("registered", city.Banana)
	return nil
}
