package stats

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"zonerev/internal/modules/aggregate"
)

// Requires ZONEREV_TEST_DSN pointing at a database with migrations applied.
func TestStore_ReplaceWindowPostgres(t *testing.T) {
	dsn := os.Getenv("ZONEREV_TEST_DSN")
	if dsn == "" {
		t.Skip("ZONEREV_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	s := NewStore(pool, Tables{Hourly: "t_area_revenue_stats2", Daily: "t_area_revenue_stats_daily"})
	w := window(10, 12)
	rows := []Row{row(10, 0, 1), row(10, 1, 3), row(11, 1, 2)}

	for i := 0; i < 2; i++ {
		res, err := s.ReplaceWindow(ctx, aggregate.Hourly, w, rows)
		if err != nil {
			t.Fatalf("replace #%d: %v", i+1, err)
		}
		if res.Inserted != int64(len(rows)) {
			t.Fatalf("replace #%d inserted %d", i+1, res.Inserted)
		}
	}

	got, err := s.Window(ctx, aggregate.Hourly, w)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d rows after two replaces, want %d", len(got), len(rows))
	}
	for i := range rows {
		if !got[i].Bucket.Equal(rows[i].Bucket) || got[i].ZoneID != rows[i].ZoneID || got[i].Kvt != rows[i].Kvt {
			t.Errorf("row %d: got %+v, want %+v", i, got[i], rows[i])
		}
	}

	if _, err := s.ReplaceWindow(ctx, aggregate.Hourly, w, []Row{row(13, 1, 1)}); err == nil {
		t.Fatal("expected out-of-window row to be rejected")
	}
	after, _ := s.Window(ctx, aggregate.Hourly, w)
	if len(after) != len(rows) {
		t.Fatalf("rejected replace changed the window: %d rows", len(after))
	}

	// The DELETE runs, then COPY hits the primary key; the delete must roll back.
	_, err = s.ReplaceWindow(ctx, aggregate.Hourly, w, []Row{row(10, 2, 5), row(10, 2, 6)})
	if !errors.Is(err, ErrSinkTransaction) {
		t.Fatalf("expected sink transaction error, got %v", err)
	}
	var se *SinkTransactionError
	if !errors.As(err, &se) || se.Stage != "insert" {
		t.Fatalf("expected insert stage, got %v", err)
	}
	after, err = s.Window(ctx, aggregate.Hourly, w)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(after) != len(rows) {
		t.Fatalf("failed copy left %d rows, want the %d seeded", len(after), len(rows))
	}
	for i := range rows {
		if got := after[i]; !got.Bucket.Equal(rows[i].Bucket) || got.ZoneID != rows[i].ZoneID || got.Kvt != rows[i].Kvt {
			t.Errorf("row %d after rollback: got %+v, want %+v", i, got, rows[i])
		}
	}
}
