// Package testkit builds solution vectors with known geometry and checks the
// evaluator's contract against them.
package testkit

import (
	"fmt"
	"math"

	"github.com/snow-ghost/wban/core"
)

// VectorCase is a solution vector with its expected geometric validity.
type VectorCase struct {
	Name        string
	Vector      []float64
	WantInvalid bool
}

// CenterVector places every sensor at the centre of its zone and the hub at hub.
func CenterVector(s core.Scenario, zones map[string]core.Zone, hub core.Position) []float64 {
	v := make([]float64, 0, s.Dimension())
	for _, def := range s.Sensors {
		c := zones[def.Zone].Center()
		v = append(v, c.X, c.Y)
	}
	return append(v, hub.X, hub.Y)
}

// CornerVector places every sensor on the (x_min, y_min) corner of its zone.
func CornerVector(s core.Scenario, zones map[string]core.Zone, hub core.Position) []float64 {
	v := make([]float64, 0, s.Dimension())
	for _, def := range s.Sensors {
		z := zones[def.Zone]
		v = append(v, z.XMin, z.YMin)
	}
	return append(v, hub.X, hub.Y)
}

// OutOfZoneVector starts from CenterVector and pushes the first k sensors
// just past the right edge of their zones.
func OutOfZoneVector(s core.Scenario, zones map[string]core.Zone, hub core.Position, k int) []float64 {
	v := CenterVector(s, zones, hub)
	for i := 0; i < k && i < len(s.Sensors); i++ {
		v[2*i] = zones[s.Sensors[i].Zone].XMax + 0.01
	}
	return v
}

// GenerateCases returns a fixed set of valid and invalid placements.
func GenerateCases(s core.Scenario, zones map[string]core.Zone, hub core.Position) []VectorCase {
	cases := []VectorCase{
		{Name: "all_centered", Vector: CenterVector(s, zones, hub)},
		{Name: "all_on_corner", Vector: CornerVector(s, zones, hub)},
		{Name: "one_out_of_zone", Vector: OutOfZoneVector(s, zones, hub, 1), WantInvalid: true},
		{Name: "all_out_of_zone", Vector: OutOfZoneVector(s, zones, hub, len(s.Sensors)), WantInvalid: true},
	}
	if len(s.Sensors) > 0 {
		c := zones[s.Sensors[0].Zone].Center()
		cases = append(cases, VectorCase{Name: "hub_on_first_sensor", Vector: CenterVector(s, zones, c)})
	}
	return cases
}

// Runner checks an evaluator against vector cases.
type Runner struct{}

func NewRunner() *Runner { return &Runner{} }

// Run evaluates each case and aggregates pass/fail counts. A case passes
// when decoding round-trips, the score is finite and the score lands on the
// side of InvalidGeometryBase the case expects.
func (r *Runner) Run(ev core.FitnessEvaluator, cases []VectorCase) (map[string]float64, []error) {
	metrics := map[string]float64{
		"cases_total":  0,
		"cases_passed": 0,
		"cases_failed": 0,
	}

	var failures []error
	for _, tc := range cases {
		metrics["cases_total"] += 1
		if err := checkCase(ev, tc); err != nil {
			metrics["cases_failed"] += 1
			failures = append(failures, fmt.Errorf("%s: %w", tc.Name, err))
			continue
		}
		metrics["cases_passed"] += 1
	}
	return metrics, failures
}

func checkCase(ev core.FitnessEvaluator, tc VectorCase) error {
	p, err := ev.Decode(tc.Vector)
	if err != nil {
		return err
	}
	for i, s := range p.Sensors {
		if s.Position.X != tc.Vector[2*i] || s.Position.Y != tc.Vector[2*i+1] {
			return fmt.Errorf("sensor %d decoded to %+v", i, s.Position)
		}
	}
	n := len(tc.Vector)
	if p.Hub.Position.X != tc.Vector[n-2] || p.Hub.Position.Y != tc.Vector[n-1] {
		return fmt.Errorf("hub decoded to %+v", p.Hub.Position)
	}

	score, err := ev.Evaluate(tc.Vector)
	if err != nil {
		return err
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("non-finite score %v", score)
	}
	if tc.WantInvalid && score < core.InvalidGeometryBase {
		return fmt.Errorf("invalid placement scored %v", score)
	}
	if !tc.WantInvalid && score >= core.InvalidGeometryBase {
		return fmt.Errorf("valid placement scored %v", score)
	}
	return nil
}
