// README: Process wiring shared by the service and backfill binaries.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"zonerev/internal/config"
	"zonerev/internal/events"
	"zonerev/internal/infra"
	"zonerev/internal/logger"
	"zonerev/internal/maps"
	"zonerev/internal/metrics"
	"zonerev/internal/modules/feed"
	"zonerev/internal/modules/runs"
	"zonerev/internal/modules/stats"
	"zonerev/internal/modules/zone"
	"zonerev/internal/service"
	"zonerev/internal/sheets"
)

type Options struct {
	// DryRun keeps results in memory instead of the stats tables and skips
	// the metadata sheet.
	DryRun bool
	// WithAuth builds the Firebase verifier when a project is configured.
	WithAuth bool
}

type App struct {
	Config   *config.Config
	Pipeline *service.Pipeline
	Metrics  *metrics.Metrics
	Verifier infra.TokenVerifier
	Results  *stats.Store
	Memory   *stats.MemoryStore

	db     *pgxpool.Pool
	redis  *redis.Client
	events *events.Publisher
}

func Build(ctx context.Context, cfg *config.Config, opts Options, log logger.Logger) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New()}

	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, err
	}
	a.db = db

	var (
		locker runs.Locker = runs.NewMemoryLocker()
		status runs.Status = runs.NewMemoryStatus()
	)
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = rdb
		locker = runs.NewRedisLocker(rdb)
		status = runs.NewRedisStatus(rdb)
	} else {
		log.Warn(ctx, "redis not configured, run lock is process-local")
	}

	if opts.WithAuth && cfg.Firebase.ProjectID != "" {
		v, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Verifier = v
	}

	var metadata service.MetadataSink
	if cfg.Sheets.SpreadsheetID != "" && !opts.DryRun {
		values, err := sheets.NewGoogleValues(ctx, cfg.Sheets.CredentialsFile)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("metadata sink: %w", err)
		}
		var writerOpts []sheets.Option
		if cfg.Maps.APIKey != "" {
			geo, err := maps.NewGeocoder(cfg.Maps.APIKey, cfg.Maps.Language)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("metadata sink: %w", err)
			}
			writerOpts = append(writerOpts, sheets.WithLabeler(geo))
		}
		metadata = sheets.NewWriter(values, cfg.Sheets.SpreadsheetID, cfg.Sheets.Range, writerOpts...)
	}

	var reports service.ReportPublisher
	if len(cfg.Events.Brokers) > 0 {
		pub, err := events.NewPublisher(events.Config{
			Brokers:      cfg.Events.Brokers,
			Topic:        cfg.Events.Topic,
			WriteTimeout: cfg.Events.WriteTimeout,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.events = pub
		reports = pub
	}

	loc := cfg.Location()
	p := cfg.Pipeline

	a.Results = stats.NewStore(db, stats.Tables{Hourly: p.HourlyTable, Daily: p.DailyTable})
	var sink stats.Sink = a.Results
	if opts.DryRun {
		a.Memory = stats.NewMemoryStore()
		sink = a.Memory
	}

	a.Pipeline = service.NewPipeline(service.PipelineDeps{
		Zones:    zone.NewService(zone.NewStore(db), p.ZoneNamePattern),
		Feed:     feed.NewStore(db, feed.Filter{ValidStatusCodes: p.ValidStatusCodes, CityIDs: p.CityIDs}, loc),
		Sink:     sink,
		Metadata: metadata,
		Reports:  reports,
		Locker:   locker,
		Status:   status,
		Metrics:  a.Metrics,
		Logger:   log,
	}, service.PipelineConfig{
		Attributor: p.Attributor,
		Location:   loc,
		LockTTL:    p.LockTTL,
		DryRun:     opts.DryRun,
	})
	return a, nil
}

func (a *App) Close() {
	if a.events != nil {
		_ = a.events.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
