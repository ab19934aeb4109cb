// README: Stats store backed by PostgreSQL: delete-then-copy inside one transaction.
package stats

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"zonerev/internal/modules/aggregate"
	"zonerev/internal/types"
)

// valueColumns follow the bucket column in both result tables.
var valueColumns = []string{
	"city_id", "area_id", "area_name",
	"kvt", "poezdok", "obzchaya_stoimost", "oplacheno_bonusami", "skidka", "abon",
	"dolgi", "vyruchka_s_abonementov", "sum_mnogor_abon",
	"add_time",
}

type Store struct {
	db     *pgxpool.Pool
	tables Tables
}

func NewStore(db *pgxpool.Pool, tables Tables) *Store {
	return &Store{db: db, tables: tables}
}

// ReplaceWindow deletes the window's rows and copies the new ones in a single
// transaction. The deferred rollback is a no-op once the commit succeeded.
func (s *Store) ReplaceWindow(ctx context.Context, g aggregate.Grain, window types.TimeRange, rows []Row) (Replaced, error) {
	if err := checkWindow(window, rows); err != nil {
		return Replaced{}, err
	}
	table, bucketCol, err := s.tables.For(g)
	if err != nil {
		return Replaced{}, err
	}
	ident := pgx.Identifier(table)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Replaced{}, &SinkTransactionError{Stage: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE %s >= $1 AND %s < $2`,
		ident.Sanitize(), pgx.Identifier{bucketCol}.Sanitize(), pgx.Identifier{bucketCol}.Sanitize(),
	), window.From, window.To)
	if err != nil {
		return Replaced{}, &SinkTransactionError{Stage: "delete", Err: err}
	}

	columns := append([]string{bucketCol}, valueColumns...)
	inserted, err := tx.CopyFrom(ctx, ident, columns, pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		r := rows[i]
		return []any{
			r.Bucket, r.CityID, r.ZoneID, r.ZoneName,
			r.Kvt, r.Rides, r.Gross, r.BonusPaid, r.Discount, r.Subscription,
			r.Debt, r.SubRevenue, r.MultiSubRevenue,
			r.GeneratedAt,
		}, nil
	}))
	if err != nil {
		return Replaced{}, &SinkTransactionError{Stage: "insert", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return Replaced{}, &SinkTransactionError{Stage: "commit", Err: err}
	}
	return Replaced{Deleted: tag.RowsAffected(), Inserted: inserted}, nil
}

// Window reads back the rows of a window in key order.
func (s *Store) Window(ctx context.Context, g aggregate.Grain, window types.TimeRange) ([]Row, error) {
	table, bucketCol, err := s.tables.For(g)
	if err != nil {
		return nil, err
	}
	col := pgx.Identifier{bucketCol}.Sanitize()
	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s >= $1 AND %s < $2 ORDER BY %s, city_id, area_id, area_name`,
		col, strings.Join(valueColumns, ", "), pgx.Identifier(table).Sanitize(), col, col, col)

	rows, err := s.db.Query(ctx, query, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query stats window: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(
			&r.Bucket, &r.CityID, &r.ZoneID, &r.ZoneName,
			&r.Kvt, &r.Rides, &r.Gross, &r.BonusPaid, &r.Discount, &r.Subscription,
			&r.Debt, &r.SubRevenue, &r.MultiSubRevenue,
			&r.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan stats row: %w", err)
		}
		r.Bucket = r.Bucket.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read stats window: %w", err)
	}
	return out, nil
}
