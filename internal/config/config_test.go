package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"zonerev/internal/config"
)

var configEnv = []string{
	"ZONEREV_CONFIG", "ZONEREV_ENV_FILE", "ZONEREV_LOG_LEVEL", "ZONEREV_HTTP__ADDR", "ZONEREV_DB__DSN",
	"ZONEREV_PIPELINE__CITY_IDS", "ZONEREV_PIPELINE__HOURLY_LOOKBACK", "ZONEREV_PIPELINE__ATTRIBUTOR",
	"ZONEREV_PIPELINE__VALID_STATUS_CODES", "ZONEREV_PIPELINE__TIMEZONE", "ZONEREV_SHEETS__SPREADSHEET_ID",
	"ZONEREV_EVENTS__BROKERS", "ZONEREV_MAPS__API_KEY",
}

func clearEnv(t *testing.T) {
	for _, k := range configEnv {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
	// keep a developer's .env out of the test
	t.Setenv("ZONEREV_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestNewDefaults(t *testing.T) {
	cfg := config.New(context.Background())
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	p := cfg.Pipeline
	if p.HourlyLookback != 2*time.Hour || p.ZoneNamePattern != "%| Area |%" || len(p.ValidStatusCodes) != 2 {
		t.Fatalf("unexpected defaults %+v", p)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", cfg.Location())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty dsn", func(c *config.Config) { c.DB.DSN = "" }},
		{"unknown attributor", func(c *config.Config) { c.Pipeline.Attributor = "quadtree" }},
		{"zero hourly lookback", func(c *config.Config) { c.Pipeline.HourlyLookback = 0 }},
		{"negative daily lookback", func(c *config.Config) { c.Pipeline.DailyLookback = -time.Hour }},
		{"unknown timezone", func(c *config.Config) { c.Pipeline.Timezone = "Mars/Olympus" }},
		{"no status codes", func(c *config.Config) { c.Pipeline.ValidStatusCodes = nil }},
		{"sheet without range", func(c *config.Config) { c.Sheets.SpreadsheetID = "x"; c.Sheets.Range = "" }},
		{"brokers without topic", func(c *config.Config) { c.Events.Brokers = []string{"k:9092"}; c.Events.Topic = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(context.Background())
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, config.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given defaults only", t, func() {
		clearEnv(t)
		cfg, err := config.Load(ctx)

		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.HTTP.Addr, convey.ShouldEqual, ":8080")
		convey.So(cfg.Pipeline.Attributor, convey.ShouldEqual, "rtree")
	})

	convey.Convey("Given environment overrides", t, func() {
		clearEnv(t)
		t.Setenv("ZONEREV_HTTP__ADDR", ":9999")
		t.Setenv("ZONEREV_PIPELINE__CITY_IDS", "3, 5")
		t.Setenv("ZONEREV_PIPELINE__HOURLY_LOOKBACK", "3h")
		t.Setenv("ZONEREV_PIPELINE__ATTRIBUTOR", "bruteforce")
		t.Setenv("ZONEREV_EVENTS__BROKERS", "kafka-1:9092,kafka-2:9092")
		t.Setenv("ZONEREV_MAPS__API_KEY", "maps-key")

		cfg, err := config.Load(ctx)

		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.HTTP.Addr, convey.ShouldEqual, ":9999")
		convey.So(cfg.Pipeline.CityIDs, convey.ShouldResemble, []int64{3, 5})
		convey.So(cfg.Pipeline.HourlyLookback, convey.ShouldEqual, 3*time.Hour)
		convey.So(cfg.Pipeline.Attributor, convey.ShouldEqual, "bruteforce")
		convey.So(cfg.Events.Brokers, convey.ShouldResemble, []string{"kafka-1:9092", "kafka-2:9092"})
		convey.So(cfg.Events.Topic, convey.ShouldEqual, "zonerev.runs")
		convey.So(cfg.Maps.APIKey, convey.ShouldEqual, "maps-key")
	})

	convey.Convey("Given a YAML file and env", t, func() {
		clearEnv(t)
		path := writeFile(t, "zonerev.yaml", `
log_level: debug
pipeline:
  timezone: Europe/Moscow
  valid_status_codes: [0, 7, 9]
  daily_enabled: false
sheets:
  spreadsheet_id: sheet-1
`)
		t.Setenv("ZONEREV_CONFIG", path)
		t.Setenv("ZONEREV_LOG_LEVEL", "warn")

		cfg, err := config.Load(ctx)

		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.LogLevel, convey.ShouldEqual, "warn")
		convey.So(cfg.Pipeline.Timezone, convey.ShouldEqual, "Europe/Moscow")
		convey.So(cfg.Pipeline.ValidStatusCodes, convey.ShouldResemble, []int{0, 7, 9})
		convey.So(cfg.Pipeline.DailyEnabled, convey.ShouldBeFalse)
		convey.So(cfg.Sheets.SpreadsheetID, convey.ShouldEqual, "sheet-1")
		convey.So(cfg.Sheets.Range, convey.ShouldEqual, "Zones!A1:I")
	})

	convey.Convey("Given a .env file", t, func() {
		clearEnv(t)
		envFile := writeFile(t, "test.env", "ZONEREV_DB__DSN=postgres://from-dotenv/db\n")
		t.Setenv("ZONEREV_ENV_FILE", envFile)
		t.Cleanup(func() { _ = os.Unsetenv("ZONEREV_DB__DSN") })

		cfg, err := config.Load(ctx)

		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.DB.DSN, convey.ShouldEqual, "postgres://from-dotenv/db")
	})

	convey.Convey("Given an invalid YAML file", t, func() {
		clearEnv(t)
		t.Setenv("ZONEREV_CONFIG", writeFile(t, "bad.yaml", "pipeline: [\n"))

		cfg, err := config.Load(ctx)

		convey.So(cfg, convey.ShouldBeNil)
		convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
	})

	convey.Convey("Given an invalid value", t, func() {
		clearEnv(t)
		t.Setenv("ZONEREV_PIPELINE__TIMEZONE", "Nowhere/Special")

		_, err := config.Load(ctx)

		convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
	})
}
