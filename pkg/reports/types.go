package reports

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/snow-ghost/wban/core"
)

// Report is one metrics decomposition of a placement, typically the best
// solution of an optimizer run.
type Report struct {
	ID           int64        `json:"id" db:"id"`
	Timestamp    time.Time    `json:"timestamp" db:"timestamp"`
	Scenario     string       `json:"scenario" db:"scenario"`
	WeightsLabel string       `json:"weights_label" db:"weights_label"`
	Weights      core.Weights `json:"weights"`
	Algorithm    string       `json:"algorithm" db:"algorithm"`
	Run          int          `json:"run" db:"run"`
	Fitness      float64      `json:"fitness" db:"fitness"`
	Metrics      core.Metrics `json:"metrics"`
	Vector       []float64    `json:"vector"`
	RequestID    string       `json:"request_id" db:"request_id"`

	// Optional optimizer run details, nil when the client did not send them
	ExecutionTime *float64  `json:"execution_time,omitempty" db:"execution_time"`
	Convergence   []float64 `json:"convergence,omitempty" db:"convergence"`
}

// ErrNonFinite is returned for reports carrying NaN or infinite values.
// Neither JSON nor the CSV export can represent them.
var ErrNonFinite = errors.New("report holds non-finite values")

// Validate rejects reports that could not be exported later
func (r Report) Validate() error {
	check := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s = %v", ErrNonFinite, name, v)
		}
		return nil
	}

	fields := []struct {
		name string
		v    float64
	}{
		{"fitness", r.Fitness},
		{"E_total_real", r.Metrics.TotalEnergyJ},
		{"P_rel", r.Metrics.ReliabilityPenalty},
		{"P_geo", r.Metrics.GeometricPenalty},
		{"T_life", r.Metrics.NetworkLifetime},
	}
	for _, f := range fields {
		if err := check(f.name, f.v); err != nil {
			return err
		}
	}
	if r.ExecutionTime != nil {
		if err := check("execution_time", *r.ExecutionTime); err != nil {
			return err
		}
		if *r.ExecutionTime < 0 {
			return fmt.Errorf("execution_time is negative: %v", *r.ExecutionTime)
		}
	}
	for i, v := range r.Vector {
		if err := check(fmt.Sprintf("vector[%d]", i), v); err != nil {
			return err
		}
	}
	for i, v := range r.Convergence {
		if err := check(fmt.Sprintf("convergence[%d]", i), v); err != nil {
			return err
		}
	}
	for _, l := range r.Metrics.Links {
		for _, v := range []float64{l.DistanceM, l.PathLossDB, l.RequiredTxDBm, l.UsedTxDBm, l.MarginDB, l.EnergyJ} {
			if err := check("link "+l.SensorID, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Scenario     string `json:"scenario,omitempty"`
	WeightsLabel string `json:"weights_label,omitempty"`
	Algorithm    string `json:"algorithm,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// Summary aggregates the reports of one scenario/weights/algorithm group.
// Standard deviations are sample deviations and 0 for single-report groups.
type Summary struct {
	Scenario     string  `json:"scenario"`
	WeightsLabel string  `json:"weights_label"`
	Algorithm    string  `json:"algorithm"`
	Count        int64   `json:"count"`
	FitnessMean  float64 `json:"fitness_mean"`
	FitnessStd   float64 `json:"fitness_std"`
	FitnessMin   float64 `json:"fitness_min"`
	EnergyMeanJ  float64 `json:"energy_mean_j"`
	EnergyStdJ   float64 `json:"energy_std_j"`
	LifetimeMean float64 `json:"lifetime_mean"`
	LifetimeStd  float64 `json:"lifetime_std"`
	// ExecutionTimeMean averages only the reports that carry a run time; nil
	// when none of the group does.
	ExecutionTimeMean *float64 `json:"execution_time_mean,omitempty"`
}

// ExportFormat represents supported export formats
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatCSV  ExportFormat = "csv"
)

// Store persists reports
type Store interface {
	Record(ctx context.Context, r Report) (int64, error)
	List(ctx context.Context, f Filter) ([]Report, error)
	Summaries(ctx context.Context) ([]Summary, error)
	Close() error
}
