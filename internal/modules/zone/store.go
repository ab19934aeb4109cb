// README: Zone catalog store backed by PostgreSQL (read-only).
package zone

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Active returns catalog rows whose name matches the LIKE pattern, in id order.
// The order is the tie-break order for overlapping zones.
func (s *Store) Active(ctx context.Context, namePattern string) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ta.id, ta."name", ta.detail
		FROM t_area ta
		WHERE ta."name" LIKE $1
		ORDER BY ta.id`, namePattern,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query zone catalog: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Name, &r.Encoded); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan zone row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read zone catalog: %w", err)
	}
	return out, nil
}
