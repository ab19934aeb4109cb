// README: Pipeline orchestrates one recompute run: attribute, aggregate, distribute, merge, replace.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"zonerev/internal/logger"
	"zonerev/internal/metrics"
	"zonerev/internal/modules/aggregate"
	"zonerev/internal/modules/attribution"
	"zonerev/internal/modules/distribution"
	"zonerev/internal/modules/feed"
	"zonerev/internal/modules/rollup"
	"zonerev/internal/modules/runs"
	"zonerev/internal/modules/stats"
	"zonerev/internal/modules/zone"
	"zonerev/internal/types"
)

// ZoneLoader yields the decoded, validated catalog in catalog order.
type ZoneLoader interface {
	Load(ctx context.Context) ([]zone.Zone, error)
}

type Feed interface {
	Telemetry(ctx context.Context, window types.TimeRange) ([]feed.TelemetrySample, error)
	Rides(ctx context.Context, window types.TimeRange) ([]feed.RideRecord, error)
	DistributionInputs(ctx context.Context, g aggregate.Grain, window types.TimeRange) (map[aggregate.CityKey]distribution.Input, error)
}

// MetadataSink is refreshed after a successful write. Its failures are
// reported, never fatal.
type MetadataSink interface {
	Refresh(ctx context.Context, zones []zone.Zone) error
}

// ReportPublisher announces finished runs to downstream consumers. Its
// failures are logged, never fatal.
type ReportPublisher interface {
	Publish(ctx context.Context, report runs.Report) error
}

type PipelineConfig struct {
	Attributor string
	Location   *time.Location
	LockTTL    time.Duration
	DryRun     bool
}

type Pipeline struct {
	zones    ZoneLoader
	feed     Feed
	sink     stats.Sink
	metadata MetadataSink
	reports  ReportPublisher
	locker   runs.Locker
	status   runs.Status
	metrics  *metrics.Metrics
	log      logger.Logger
	cfg      PipelineConfig
	now      func() time.Time
}

type PipelineDeps struct {
	Zones ZoneLoader
	Feed  Feed
	Sink  stats.Sink
	// Metadata may be nil to skip the sheet refresh.
	Metadata MetadataSink
	// Reports may be nil to skip run events.
	Reports  ReportPublisher
	Locker   runs.Locker
	Status   runs.Status
	Metrics  *metrics.Metrics
	Logger   logger.Logger
}

func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if deps.Locker == nil {
		deps.Locker = runs.NewMemoryLocker()
	}
	if deps.Status == nil {
		deps.Status = runs.NewMemoryStatus()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Get()
	}
	return &Pipeline{
		zones:    deps.Zones,
		feed:     deps.Feed,
		sink:     deps.Sink,
		metadata: deps.Metadata,
		reports:  deps.Reports,
		locker:   deps.Locker,
		status:   deps.Status,
		metrics:  deps.Metrics,
		log:      deps.Logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Location is the wall clock buckets are computed on.
func (p *Pipeline) Location() *time.Location { return p.cfg.Location }

// Status exposes the last-run store to the ops API.
func (p *Pipeline) Status() runs.Status { return p.status }

// Run recomputes and replaces the stats of window at grain g. The window is
// widened to whole buckets. Concurrent runs of the same grain fail with
// runs.ErrLocked.
func (p *Pipeline) Run(ctx context.Context, g aggregate.Grain, window types.TimeRange) (runs.Report, error) {
	if !window.Valid() {
		return runs.Report{}, fmt.Errorf("%w: %s", stats.ErrInvalidWindow, window)
	}
	window = g.Align(window, p.cfg.Location)

	report := runs.Report{
		RunID:     uuid.NewString(),
		Grain:     g.String(),
		From:      window.From,
		To:        window.To,
		StartedAt: p.now(),
		DryRun:    p.cfg.DryRun,
	}
	log := p.log.With(
		logger.String("run_id", report.RunID),
		logger.String("grain", report.Grain),
		logger.String("window", window.String()),
	)

	lease, err := p.locker.Acquire(ctx, g.String(), p.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, runs.ErrLocked) {
			p.metrics.ObserveRun(report.Grain, metrics.OutcomeSkipped, 0)
			log.Info(ctx, "run skipped, lock held")
		}
		return report, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn(ctx, "failed to release run lock", logger.Error(err))
		}
	}()

	log.Info(ctx, "run started")
	err = p.run(ctx, log, g, window, &report)
	report.FinishedAt = p.now()

	outcome := runs.OutcomeSuccess
	if err != nil {
		outcome = runs.OutcomeFailure
		report.Error = err.Error()
		log.Error(ctx, "run failed", logger.Error(err), logger.Duration("elapsed", report.Duration()))
	} else {
		log.Info(ctx, "run finished",
			logger.Int64("rows_inserted", report.Counts.RowsInserted),
			logger.Int64("rows_deleted", report.Counts.RowsDeleted),
			logger.Duration("elapsed", report.Duration()),
		)
	}
	report.Outcome = outcome
	p.metrics.ObserveRun(report.Grain, outcome, report.Duration())

	if p.cfg.DryRun {
		// dry runs must not replace the last real report
		return report, err
	}
	if serr := p.status.Save(context.WithoutCancel(ctx), report); serr != nil {
		log.Warn(ctx, "failed to save run report", logger.Error(serr))
	}
	if p.reports != nil {
		if perr := p.reports.Publish(context.WithoutCancel(ctx), report); perr != nil {
			log.Warn(ctx, "failed to publish run report", logger.Error(perr))
		}
	}
	return report, err
}

func (p *Pipeline) run(ctx context.Context, log logger.Logger, g aggregate.Grain, window types.TimeRange, report *runs.Report) error {
	loc := p.cfg.Location

	zones, err := p.zones.Load(ctx)
	if err != nil {
		return fmt.Errorf("load zones: %w", err)
	}
	report.Counts.Zones = len(zones)
	if pairs := zone.OverlappingBounds(zones); len(pairs) > 0 {
		log.Debug(ctx, "zones with overlapping bounding boxes", logger.Any("pairs", pairs))
	}
	attributor, err := attribution.New(p.cfg.Attributor, zones)
	if err != nil {
		return err
	}

	telemetry, err := p.feed.Telemetry(ctx, window)
	if err != nil {
		return err
	}
	report.Counts.TelemetrySamples = len(telemetry)
	telemetryResults, err := attributor.Attribute(feed.TelemetrySamples(telemetry))
	if err != nil {
		return fmt.Errorf("attribute telemetry: %w", err)
	}
	report.Counts.UnassignedSamples = p.countAssignment(ctx, log, "telemetry", telemetryResults, &report.Counts.OverlappingSamples)

	rides, err := p.feed.Rides(ctx, window)
	if err != nil {
		return err
	}
	report.Counts.Rides = len(rides)
	rideSamples, amounts := feed.RideSamples(rides)
	rideResults, err := attributor.Attribute(rideSamples)
	if err != nil {
		return fmt.Errorf("attribute rides: %w", err)
	}
	report.Counts.UnassignedRides = p.countAssignment(ctx, log, "rides", rideResults, &report.Counts.OverlappingSamples)

	hourlyTelemetry, err := aggregate.Telemetry(telemetryResults, aggregate.Hourly, loc)
	if err != nil {
		return fmt.Errorf("aggregate telemetry: %w", err)
	}
	log.Debug(ctx, "kvt per hour after attribution", logger.Any("kvt", bucketLog(aggregate.KvtByBucket(hourlyTelemetry))))

	telemetryStats := hourlyTelemetry
	if g == aggregate.Daily {
		if telemetryStats, _, err = aggregate.RollupDaily(hourlyTelemetry, nil, loc); err != nil {
			return fmt.Errorf("aggregate telemetry: %w", err)
		}
	}
	rideStats, err := aggregate.Rides(rideResults, amounts, g, loc)
	if err != nil {
		return fmt.Errorf("aggregate rides: %w", err)
	}

	inputs, err := p.feed.DistributionInputs(ctx, g, window)
	if err != nil {
		return err
	}
	report.Counts.DistributionInputs = len(inputs)
	shares := distribution.Distribute(inputs, rideStats)
	if missing := distribution.Undistributed(inputs, rideStats); len(missing) > 0 {
		log.Warn(ctx, "city totals without rides were not distributed", logger.Int("cities", len(missing)))
	}

	rows, summary := rollup.Merge(telemetryStats, rideStats, shares, p.now())
	report.Counts.DroppedRideKeys = summary.DroppedRideKeys
	if summary.DroppedRideKeys > 0 {
		p.metrics.AddDroppedRideKeys(summary.DroppedRideKeys)
		log.Warn(ctx, "ride aggregates without telemetry dropped",
			logger.Int("keys", summary.DroppedRideKeys),
			logger.Int64("rides", summary.DroppedRides),
		)
	}
	log.Debug(ctx, "kvt per bucket after merge", logger.Any("kvt", bucketLog(rowKvt(rows))))

	replaced, err := p.sink.ReplaceWindow(ctx, g, window, rows)
	if err != nil {
		return fmt.Errorf("replace window: %w", err)
	}
	report.Counts.RowsDeleted = replaced.Deleted
	report.Counts.RowsInserted = replaced.Inserted
	p.metrics.AddRowsWritten(g.String(), replaced.Inserted)

	if p.metadata != nil {
		if err := p.metadata.Refresh(ctx, zones); err != nil {
			report.MetadataError = err.Error()
			p.metrics.IncMetadataFailure()
			log.Warn(ctx, "zone metadata refresh failed", logger.Error(err))
		}
	}
	return nil
}

// countAssignment records metrics for one feed and returns its unassigned count.
func (p *Pipeline) countAssignment(ctx context.Context, log logger.Logger, feedName string, results []attribution.Result, overlapping *int) int {
	var unassigned, overlap int
	for _, r := range results {
		switch {
		case !r.Assigned():
			unassigned++
		case r.Matches > 1:
			overlap++
		}
	}
	p.metrics.AddSamples(feedName, len(results)-unassigned, unassigned)
	if overlap > 0 {
		*overlapping += overlap
		p.metrics.AddOverlapping(overlap)
		log.Warn(ctx, "samples inside more than one zone, first zone kept",
			logger.String("feed", feedName),
			logger.Int("samples", overlap),
		)
	}
	return unassigned
}

func rowKvt(rows []stats.Row) map[time.Time]float64 {
	out := make(map[time.Time]float64)
	for _, r := range rows {
		out[r.Bucket] += r.Kvt
	}
	return out
}

// bucketLog renders per-bucket totals in time order for log output.
func bucketLog(m map[time.Time]float64) []string {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s=%g", k.Format(time.RFC3339), m[k])
	}
	return out
}
