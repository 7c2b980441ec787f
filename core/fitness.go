package core

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

const (
	// GeometricPenalty is charged once per sensor placed outside its zone.
	GeometricPenalty = 1000.0
	// InvalidGeometryBase is the floor of every geometrically invalid score.
	InvalidGeometryBase = 1e6
	// ReliabilityPenaltyPerDB is charged per dB of missing link margin.
	ReliabilityPenaltyPerDB = 50.0
	// EnergyScale lifts joule-scale energy to the magnitude of the penalties.
	EnergyScale = 1e4
)

var (
	ErrInvalidConfig       = errors.New("invalid evaluator config")
	ErrVectorLength        = errors.New("solution vector length mismatch")
	ErrNonFiniteCoordinate = errors.New("solution vector has non-finite coordinate")
)

// EvaluatorConfig is the immutable input of an Evaluator.
type EvaluatorConfig struct {
	Scenario Scenario
	Zones    map[string]Zone
	Weights  Weights
}

// Evaluator scores sensor/hub placements for one scenario and weight pair.
// It keeps no state between calls; concurrent use is safe as long as the
// propagation model's shadowing source is.
type Evaluator struct {
	scenario Scenario
	zones    []Zone // resolved per sensor, in definition order
	weights  Weights
	prop     PropagationModel
	energy   EnergyModel
}

// NewEvaluator validates cfg and binds the physical models.
func NewEvaluator(cfg EvaluatorConfig, prop PropagationModel, energy EnergyModel) (*Evaluator, error) {
	if prop == nil || energy == nil {
		return nil, fmt.Errorf("%w: propagation and energy models are required", ErrInvalidConfig)
	}
	if len(cfg.Scenario.Sensors) == 0 {
		return nil, fmt.Errorf("%w: scenario %q has no sensors", ErrInvalidConfig, cfg.Scenario.ID)
	}
	if !validWeight(cfg.Weights.Energy) || !validWeight(cfg.Weights.Reliability) {
		return nil, fmt.Errorf("%w: weights must be finite and non-negative, got %+v", ErrInvalidConfig, cfg.Weights)
	}
	if math.IsNaN(cfg.Scenario.MaxTxPowerDBm) || math.IsInf(cfg.Scenario.MaxTxPowerDBm, 0) {
		return nil, fmt.Errorf("%w: scenario %q max tx power is not finite", ErrInvalidConfig, cfg.Scenario.ID)
	}

	sensors := make([]SensorDef, len(cfg.Scenario.Sensors))
	copy(sensors, cfg.Scenario.Sensors)
	zones := make([]Zone, len(sensors))
	for i, s := range sensors {
		z, ok := cfg.Zones[s.Zone]
		if !ok {
			return nil, fmt.Errorf("%w: sensor %q references unknown zone %q", ErrInvalidConfig, s.ID, s.Zone)
		}
		zones[i] = z
	}

	scenario := cfg.Scenario
	scenario.Sensors = sensors
	return &Evaluator{
		scenario: scenario,
		zones:    zones,
		weights:  cfg.Weights,
		prop:     prop,
		energy:   energy,
	}, nil
}

func validWeight(w float64) bool {
	return w >= 0 && !math.IsInf(w, 0) && !math.IsNaN(w)
}

// Scenario returns a copy of the bound scenario.
func (e *Evaluator) Scenario() Scenario {
	s := e.scenario
	s.Sensors = slices.Clone(s.Sensors)
	return s
}

// Weights returns the objective weights.
func (e *Evaluator) Weights() Weights { return e.weights }

// Dimension is the expected solution vector length.
func (e *Evaluator) Dimension() int { return e.scenario.Dimension() }

// Decode splits vector into sensor pairs in definition order followed by the
// hub pair. The length must equal Dimension().
func (e *Evaluator) Decode(vector []float64) (Placement, error) {
	if len(vector) != e.Dimension() {
		return Placement{}, fmt.Errorf("%w: scenario %q expects %d values, got %d",
			ErrVectorLength, e.scenario.ID, e.Dimension(), len(vector))
	}
	for i, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Placement{}, fmt.Errorf("%w: index %d", ErrNonFiniteCoordinate, i)
		}
	}

	p := Placement{Sensors: make([]SensorPlacement, len(e.scenario.Sensors))}
	for i, def := range e.scenario.Sensors {
		p.Sensors[i] = SensorPlacement{
			ID:       def.ID,
			Position: Position{X: vector[2*i], Y: vector[2*i+1]},
			Def:      def,
		}
	}
	hub := len(vector) - 2
	p.Hub = HubPlacement{Position: Position{X: vector[hub], Y: vector[hub+1]}}
	return p, nil
}

// Evaluate returns the objective to minimise. Invalid geometry short-circuits
// to InvalidGeometryBase plus the accumulated geometric penalty without
// running the physics. Path loss is stochastic, so repeated calls differ.
func (e *Evaluator) Evaluate(vector []float64) (float64, error) {
	p, err := e.Decode(vector)
	if err != nil {
		return 0, err
	}

	geometric := 0.0
	for i, s := range p.Sensors {
		if !e.zones[i].Contains(s.Position) {
			geometric += GeometricPenalty
		}
	}
	if geometric > 0 {
		return InvalidGeometryBase + geometric, nil
	}

	totalEnergy, reliability := 0.0, 0.0
	for _, s := range p.Sensors {
		l := e.link(s, p.Hub.Position)
		if l.MarginDB < 0 {
			reliability += -l.MarginDB * ReliabilityPenaltyPerDB
		}
		totalEnergy += l.EnergyJ
	}

	return e.weights.Energy*totalEnergy*EnergyScale + e.weights.Reliability*reliability + geometric, nil
}

// Metrics runs the same physics as Evaluate without the early exit and
// reports the unscaled decomposition. Lifetime is E_init over the worst
// per-node energy, or 0 when no node consumes energy.
func (e *Evaluator) Metrics(vector []float64) (Metrics, error) {
	p, err := e.Decode(vector)
	if err != nil {
		return Metrics{}, err
	}

	m := Metrics{Links: make([]LinkReport, 0, len(p.Sensors))}
	nodeEnergies := make([]float64, 0, len(p.Sensors))
	for i, s := range p.Sensors {
		l := e.link(s, p.Hub.Position)
		l.InZone = e.zones[i].Contains(s.Position)
		if !l.InZone {
			m.GeometricPenalty += GeometricPenalty
		}
		if l.MarginDB < 0 {
			m.ReliabilityPenalty += -l.MarginDB * ReliabilityPenaltyPerDB
		}
		m.TotalEnergyJ += l.EnergyJ
		nodeEnergies = append(nodeEnergies, l.EnergyJ)
		m.Links = append(m.Links, l)
	}

	if worst := floats.Max(nodeEnergies); worst > 0 {
		m.NetworkLifetime = e.energy.InitialEnergy() / worst
	}
	return m, nil
}

// Objective adapts Evaluate for optimizers that take a plain function.
// Precondition failures score +Inf.
func (e *Evaluator) Objective() func([]float64) float64 {
	return func(v []float64) float64 {
		f, err := e.Evaluate(v)
		if err != nil {
			return math.Inf(1)
		}
		return f
	}
}

// link computes one sensor's budget. A link short of margin is still costed
// at the scenario's maximum power.
func (e *Evaluator) link(s SensorPlacement, hub Position) LinkReport {
	d := e.prop.Distance(s.Position, hub)
	los := e.prop.LineOfSight(s.Position, hub)
	pl := e.prop.PathLoss(d, los)
	required := e.energy.RequiredTxPower(pl)

	used := required
	margin := e.scenario.MaxTxPowerDBm - required
	if margin < 0 {
		used = e.scenario.MaxTxPowerDBm
	}

	return LinkReport{
		SensorID:      s.ID,
		DistanceM:     d,
		LineOfSight:   los,
		PathLossDB:    pl,
		RequiredTxDBm: required,
		UsedTxDBm:     used,
		MarginDB:      margin,
		EnergyJ:       e.energy.Consumption(s.Def.DataRate, used),
	}
}
