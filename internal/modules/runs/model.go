// README: Pipeline run reports, the last-run cache, and the cross-replica run lock.
package runs

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("no run recorded")
	ErrLocked   = errors.New("run already in progress")
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Counts are the per-stage sizes of one run.
type Counts struct {
	Zones              int   `json:"zones"`
	TelemetrySamples   int   `json:"telemetry_samples"`
	Rides              int   `json:"rides"`
	UnassignedSamples  int   `json:"unassigned_samples"`
	UnassignedRides    int   `json:"unassigned_rides"`
	OverlappingSamples int   `json:"overlapping_samples"`
	DistributionInputs int   `json:"distribution_inputs"`
	DroppedRideKeys    int   `json:"dropped_ride_keys"`
	RowsDeleted        int64 `json:"rows_deleted"`
	RowsInserted       int64 `json:"rows_inserted"`
}

// Report describes a finished run.
type Report struct {
	RunID      string    `json:"run_id"`
	Grain      string    `json:"grain"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	DryRun     bool      `json:"dry_run,omitempty"`
	Counts     Counts    `json:"counts"`
	// MetadataError is set when the sheet refresh failed; the run still counts as a success.
	MetadataError string `json:"metadata_error,omitempty"`
}

func (r Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
