// README: Feed store backed by PostgreSQL (read-only queries over the operational schema).
package feed

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"zonerev/internal/modules/aggregate"
	"zonerev/internal/modules/distribution"
	"zonerev/internal/types"
)

// Filter narrows every feed query.
type Filter struct {
	// ValidStatusCodes are the vehicle error_status values counted as available.
	ValidStatusCodes []int
	// CityIDs restricts results to these cities; empty means all.
	CityIDs []int64
}

type Store struct {
	db     *pgxpool.Pool
	filter Filter
	loc    *time.Location
}

func NewStore(db *pgxpool.Pool, filter Filter, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, filter: filter, loc: loc}
}

func (s *Store) cities() []int64 {
	if len(s.filter.CityIDs) == 0 {
		return nil
	}
	return s.filter.CityIDs
}

const telemetryQuery = `
	SELECT res.id, res."timestamp", COALESCE(res.city_id, 0), res.g_lat, res.g_lng, res.error_status
	FROM (
		SELECT
			tbh.id,
			tbh."timestamp",
			tb.city_id,
			tbh.g_lat,
			tbh.g_lng,
			tbh.error_status,
			RANK() OVER (PARTITION BY date_trunc('hour', tbh."timestamp") ORDER BY tbh."timestamp" DESC) AS rn
		FROM t_bike_history tbh
		LEFT JOIN t_bike tb ON tbh.id = tb.id
		WHERE tbh.error_status = ANY($1::int[])
			AND tbh."timestamp" >= $2
			AND tbh."timestamp" < $3
			AND ($4::bigint[] IS NULL OR tb.city_id = ANY($4::bigint[]))
	) AS res
	WHERE res.rn = 1
	ORDER BY res."timestamp", res.id`

// Telemetry returns the latest snapshot of every hour in the window.
func (s *Store) Telemetry(ctx context.Context, window types.TimeRange) ([]TelemetrySample, error) {
	rows, err := s.db.Query(ctx, telemetryQuery, s.filter.ValidStatusCodes, window.From, window.To, s.cities())
	if err != nil {
		return nil, &SourceError{Query: "telemetry", Window: window, Err: err}
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (TelemetrySample, error) {
		var t TelemetrySample
		err := row.Scan(&t.VehicleID, &t.Timestamp, &t.CityID, &t.Position.Lat, &t.Position.Lng, &t.StatusCode)
		return t, err
	})
	if err != nil {
		return nil, &SourceError{Query: "telemetry", Window: window, Err: err}
	}
	return out, nil
}

const ridesQuery = `
	SELECT
		tor.id,
		tor."timestamp",
		COALESCE(tb.city_id, 0),
		tor.start_lat,
		tor.start_lng,
		COALESCE(tor.ride_amount, 0)::float8,
		COALESCE(tor.discount, 0)::float8,
		COALESCE(tor.bike_discount_amount, 0)::float8,
		COALESCE(tor.subscription_price, 0)::float8
	FROM t_orders_revenue tor
	LEFT JOIN t_bike tb ON tor.bid = tb.id
	WHERE tor."timestamp" >= $1
		AND tor."timestamp" < $2
		AND ($3::bigint[] IS NULL OR tb.city_id = ANY($3::bigint[]))
	ORDER BY tor."timestamp", tor.id`

// Rides returns the revenue records whose timestamp lies in the window.
func (s *Store) Rides(ctx context.Context, window types.TimeRange) ([]RideRecord, error) {
	rows, err := s.db.Query(ctx, ridesQuery, window.From, window.To, s.cities())
	if err != nil {
		return nil, &SourceError{Query: "rides", Window: window, Err: err}
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (RideRecord, error) {
		var r RideRecord
		err := row.Scan(
			&r.RideID, &r.Timestamp, &r.CityID, &r.Start.Lat, &r.Start.Lng,
			&r.RideAmount, &r.Discount, &r.BonusDiscount, &r.SubscriptionPrice,
		)
		return r, err
	})
	if err != nil {
		return nil, &SourceError{Query: "rides", Window: window, Err: err}
	}
	return out, nil
}

// distributionQuery computes, per (bucket, city), the debt of finished rides
// and the city's ride-weighted portion of subscription revenue. Coefficients
// use every city so the filter does not inflate them.
const distributionQuery = `
	WITH uses AS (
		SELECT
			date_trunc($3::text, to_timestamp(tbu.start_time), $4::text) AS bucket,
			tb.city_id,
			tbu.id,
			tbu.ride_status
		FROM t_bike_use tbu
		LEFT JOIN t_bike tb ON tbu.bid = tb.id
		WHERE to_timestamp(tbu.start_time) >= $1
			AND to_timestamp(tbu.start_time) < $2
	),
	debts AS (
		SELECT u.bucket, u.city_id, SUM(COALESCE(tpd.debit_cash, 0)) AS debt
		FROM uses u
		LEFT JOIN t_payment_details tpd ON tpd.ride_id = u.id
		WHERE u.ride_status = 2
		GROUP BY 1, 2
	),
	coef AS (
		SELECT
			bucket,
			city_id,
			COUNT(*)::numeric / NULLIF(SUM(COUNT(*)) OVER (PARTITION BY bucket), 0) AS coef
		FROM uses
		WHERE ride_status != 5
		GROUP BY 1, 2
	),
	subs AS (
		SELECT date_trunc($3::text, tt.date::timestamptz, $4::text) AS bucket, SUM(COALESCE(tt.amount, 0)) AS total
		FROM t_trade tt
		WHERE tt.type = 6 AND tt.status = 1 AND tt.date >= $1 AND tt.date < $2
		GROUP BY 1
	),
	multi AS (
		SELECT date_trunc($3::text, tsm.start_time::timestamptz, $4::text) AS bucket, SUM(COALESCE(ts.price, 0)) AS total
		FROM t_subscription_mapping tsm
		LEFT JOIN t_subscription ts ON tsm.subscription_id = ts.id
		WHERE tsm.start_time >= $1 AND tsm.start_time < $2
		GROUP BY 1
	)
	SELECT
		COALESCE(d.bucket, c.bucket) AS bucket,
		COALESCE(d.city_id, c.city_id, 0) AS city_id,
		COALESCE(d.debt, 0)::float8,
		COALESCE(subs.total * c.coef, 0)::float8,
		COALESCE(multi.total * c.coef, 0)::float8
	FROM debts d
	FULL JOIN coef c ON d.bucket = c.bucket AND d.city_id = c.city_id
	LEFT JOIN subs ON subs.bucket = COALESCE(d.bucket, c.bucket)
	LEFT JOIN multi ON multi.bucket = COALESCE(d.bucket, c.bucket)
	WHERE ($5::bigint[] IS NULL OR COALESCE(d.city_id, c.city_id) = ANY($5::bigint[]))`

func truncUnit(g aggregate.Grain) string {
	if g == aggregate.Daily {
		return "day"
	}
	return "hour"
}

// DistributionInputs returns the shared city totals of the window at grain g.
func (s *Store) DistributionInputs(ctx context.Context, g aggregate.Grain, window types.TimeRange) (map[aggregate.CityKey]distribution.Input, error) {
	rows, err := s.db.Query(ctx, distributionQuery, window.From, window.To, truncUnit(g), s.loc.String(), s.cities())
	if err != nil {
		return nil, &SourceError{Query: "distribution_inputs", Window: window, Err: err}
	}
	defer rows.Close()

	out := make(map[aggregate.CityKey]distribution.Input)
	for rows.Next() {
		var (
			bucket time.Time
			cityID int64
			in     distribution.Input
		)
		if err := rows.Scan(&bucket, &cityID, &in.Debt, &in.SubRevenue, &in.MultiSubRevenue); err != nil {
			return nil, &SourceError{Query: "distribution_inputs", Window: window, Err: err}
		}
		key := aggregate.CityKey{Bucket: g.Truncate(bucket, s.loc), CityID: cityID}
		prev := out[key]
		out[key] = distribution.Input{
			Debt:            prev.Debt + in.Debt,
			SubRevenue:      prev.SubRevenue + in.SubRevenue,
			MultiSubRevenue: prev.MultiSubRevenue + in.MultiSubRevenue,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &SourceError{Query: "distribution_inputs", Window: window, Err: err}
	}
	return out, nil
}
