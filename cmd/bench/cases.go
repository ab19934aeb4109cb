// README: Smoke checks and the attribution benchmark.
package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"

	"zonerev/internal/modules/attribution"
	"zonerev/internal/modules/zone"
	"zonerev/internal/types"
)

const (
	statusPass    = "PASS"
	statusFail    = "FAIL"
	statusPending = "PENDING"
	statusSkip    = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
	zones []zone.Zone
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg, httpc: &http.Client{Timeout: 10 * time.Second}}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		start := time.Now()
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		if res.Latency == 0 {
			res.Latency = time.Since(start)
		}
		results = append(results, res)
		fmt.Printf("%-7s %s (%s)", res.Status, tc.Name, res.Latency.Round(time.Microsecond))
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{Name: "Env: Postgres connect", Run: pingPostgres},
		{Name: "Env: Redis connect", Run: pingRedis},
		{Name: "Migration: apply (optional)", Run: applyMigration},
		{Name: "Migration: result tables exist", Run: tablesExist},
		{Name: "Catalog: zones load and decode", Run: loadCatalog},
		{Name: "Attribution: rtree matches brute force", Run: compareAttributors},
		httpCase("API: health", base+"/health", false, []int{http.StatusOK}, nil),
		httpCase("API: metrics", base+"/metrics", false, []int{http.StatusOK}, nil),
		httpCase("API: last hourly run", base+"/api/runs/last?grain=hourly", true,
			[]int{http.StatusOK}, []int{http.StatusNotFound, http.StatusUnauthorized}),
		{Name: "Perf: health throughput", Run: func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, base+"/health")
		}},
	}
}

func pingPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func pingRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func applyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: statusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	sql, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, s := range splitSQL(string(sql)) {
		if _, err := r.db.Exec(ctx, s); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
	}
	return Result{Status: statusPass}
}

func tablesExist(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	var missing []string
	for _, t := range tables {
		var name *string
		if err := r.db.QueryRow(ctx, `SELECT to_regclass($1)::text`, t).Scan(&name); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if name == nil {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return Result{Status: statusFail, Note: "missing " + strings.Join(missing, ", ")}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("tables=%d", len(tables))}
}

func loadCatalog(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	zones, err := zone.NewService(zone.NewStore(r.db), r.cfg.ZonePattern).Load(ctx)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	r.zones = zones
	if len(zones) == 0 {
		return Result{Status: statusPending, Note: "no zones match " + r.cfg.ZonePattern}
	}
	overlaps := len(zone.OverlappingBounds(zones))
	return Result{Status: statusPass, Note: fmt.Sprintf("zones=%d overlapping_bounds=%d", len(zones), overlaps)}
}

// compareAttributors draws random points over the catalog's extent and
// checks both attributors agree, reporting their timings.
func compareAttributors(_ context.Context, r *Runner) Result {
	if len(r.zones) == 0 {
		return Result{Status: statusSkip, Note: "no zones loaded"}
	}
	samples := randomSamples(r.zones, r.cfg.Samples)

	start := time.Now()
	brute, err := attribution.NewBruteForce(r.zones).Attribute(samples)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	bruteTook := time.Since(start)

	start = time.Now()
	indexed, err := attribution.NewIndexed(r.zones).Attribute(samples)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	indexedTook := time.Since(start)

	assigned := 0
	for i := range brute {
		if brute[i].ZoneID != indexed[i].ZoneID || brute[i].Matches != indexed[i].Matches {
			return Result{Status: statusFail, Note: fmt.Sprintf("sample %d: bruteforce zone %d, rtree zone %d", i, brute[i].ZoneID, indexed[i].ZoneID)}
		}
		if brute[i].Assigned() {
			assigned++
		}
	}
	return Result{
		Status:  statusPass,
		Latency: bruteTook + indexedTook,
		Note: fmt.Sprintf("samples=%d assigned=%d bruteforce=%s rtree=%s",
			len(samples), assigned, bruteTook.Round(time.Millisecond), indexedTook.Round(time.Millisecond)),
	}
}

func randomSamples(zones []zone.Zone, n int) []attribution.Sample {
	extent := zones[0].Bound()
	for _, z := range zones[1:] {
		extent = extent.Union(z.Bound())
	}
	extent = extent.Pad(0.01)
	rng := rand.New(rand.NewSource(1))
	now := time.Now()
	out := make([]attribution.Sample, n)
	for i := range out {
		p := orb.Point{
			extent.Min.X() + rng.Float64()*(extent.Max.X()-extent.Min.X()),
			extent.Min.Y() + rng.Float64()*(extent.Max.Y()-extent.Min.Y()),
		}
		out[i] = attribution.Sample{ID: int64(i), Timestamp: now, Position: types.Point{Lat: p.Y(), Lng: p.X()}}
	}
	return out
}

func httpCase(name, url string, auth bool, okStatuses, pendingStatuses []int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if auth && r.cfg.Token != "" {
				req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
			}
			start := time.Now()
			resp, err := r.httpc.Do(req)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			latency := time.Since(start)
			switch {
			case contains(okStatuses, resp.StatusCode):
				return Result{Status: statusPass, Latency: latency}
			case contains(pendingStatuses, resp.StatusCode):
				return Result{Status: statusPending, Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			default:
				return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			}
		},
	}
}

func perfLoad(ctx context.Context, r *Runner, url string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
				resp, err := r.httpc.Do(req)
				if err != nil {
					errCount.Add(1)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_.]+)`)

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	matches := createTableRe.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

// splitSQL drops comment lines and splits on semicolons.
func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
