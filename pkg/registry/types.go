package registry

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/snow-ghost/wban/core"
	"github.com/snow-ghost/wban/energy"
	"github.com/snow-ghost/wban/propagation"
)

// ObstacleZone is the body zone used as the line-of-sight obstacle.
const ObstacleZone = "chest"

var (
	ErrInvalidConfig   = errors.New("invalid wban config")
	ErrUnknownScenario = errors.New("unknown scenario")
)

// ZoneConfig is a body zone rectangle. All bounds are required.
type ZoneConfig struct {
	XMin *float64 `json:"x_min" yaml:"x_min"`
	XMax *float64 `json:"x_max" yaml:"x_max"`
	YMin *float64 `json:"y_min" yaml:"y_min"`
	YMax *float64 `json:"y_max" yaml:"y_max"`
}

// PropagationConfig holds the channel constants and the receiver side of
// the link budget.
type PropagationConfig struct {
	D0        *float64 `json:"d0" yaml:"d0"`
	PL0LOS    *float64 `json:"PL0_LOS" yaml:"PL0_LOS"`
	PL0NLOS   *float64 `json:"PL0_NLOS" yaml:"PL0_NLOS"`
	NLOS      *float64 `json:"n_LOS" yaml:"n_LOS"`
	NNLOS     *float64 `json:"n_NLOS" yaml:"n_NLOS"`
	SigmaLOS  *float64 `json:"sigma_LOS" yaml:"sigma_LOS"`
	SigmaNLOS *float64 `json:"sigma_NLOS" yaml:"sigma_NLOS"`
	PSens     *float64 `json:"P_sens" yaml:"P_sens"`
	MSafe     *float64 `json:"M_safe" yaml:"M_safe"`
}

// EnergyConfig holds the radio energy constants. AmpScale is optional and
// defaults to energy.DefaultAmpScale; an explicit 0 drops the amplifier term.
type EnergyConfig struct {
	EElec    *float64 `json:"E_elec" yaml:"E_elec"`
	EInit    *float64 `json:"E_init" yaml:"E_init"`
	AmpScale *float64 `json:"amp_scale,omitempty" yaml:"amp_scale,omitempty"`
}

// SensorConfig is one sensor of a scenario. All fields are required.
type SensorConfig struct {
	ID       string   `json:"id" yaml:"id"`
	Zone     string   `json:"zone" yaml:"zone"`
	DataRate *float64 `json:"data_rate" yaml:"data_rate"`
}

// ScenarioConfig is one sensor deployment.
type ScenarioConfig struct {
	Sensors []SensorConfig `json:"sensors" yaml:"sensors"`
	PTXMax  *float64       `json:"P_TX_max" yaml:"P_TX_max"`
}

// Document is the full WBAN configuration file.
type Document struct {
	BodyZones   map[string]ZoneConfig     `json:"body_zones" yaml:"body_zones"`
	Propagation PropagationConfig         `json:"propagation_model" yaml:"propagation_model"`
	Energy      EnergyConfig              `json:"energy_model" yaml:"energy_model"`
	Scenarios   map[string]ScenarioConfig `json:"scenarios" yaml:"scenarios"`
}

// Validate reports every missing or malformed key at once.
func (d *Document) Validate() error {
	var errs []error
	missing := func(path string, v *float64) {
		if v == nil {
			errs = append(errs, fmt.Errorf("missing %s", path))
		} else if math.IsNaN(*v) || math.IsInf(*v, 0) {
			errs = append(errs, fmt.Errorf("%s is not finite", path))
		}
	}

	if len(d.BodyZones) == 0 {
		errs = append(errs, errors.New("missing body_zones"))
	}
	for _, name := range sortedKeys(d.BodyZones) {
		z := d.BodyZones[name]
		missing("body_zones."+name+".x_min", z.XMin)
		missing("body_zones."+name+".x_max", z.XMax)
		missing("body_zones."+name+".y_min", z.YMin)
		missing("body_zones."+name+".y_max", z.YMax)
		if z.XMin != nil && z.XMax != nil && z.YMin != nil && z.YMax != nil && z.zone().Empty() {
			errs = append(errs, fmt.Errorf("body_zones.%s has inverted bounds", name))
		}
	}
	if _, ok := d.BodyZones[ObstacleZone]; !ok {
		errs = append(errs, fmt.Errorf("missing body_zones.%s", ObstacleZone))
	}

	p := d.Propagation
	missing("propagation_model.d0", p.D0)
	missing("propagation_model.PL0_LOS", p.PL0LOS)
	missing("propagation_model.PL0_NLOS", p.PL0NLOS)
	missing("propagation_model.n_LOS", p.NLOS)
	missing("propagation_model.n_NLOS", p.NNLOS)
	missing("propagation_model.sigma_LOS", p.SigmaLOS)
	missing("propagation_model.sigma_NLOS", p.SigmaNLOS)
	missing("propagation_model.P_sens", p.PSens)
	missing("propagation_model.M_safe", p.MSafe)
	missing("energy_model.E_elec", d.Energy.EElec)
	missing("energy_model.E_init", d.Energy.EInit)
	if a := d.Energy.AmpScale; a != nil && (math.IsNaN(*a) || math.IsInf(*a, 0)) {
		errs = append(errs, errors.New("energy_model.amp_scale is not finite"))
	}

	if len(d.Scenarios) == 0 {
		errs = append(errs, errors.New("missing scenarios"))
	}
	for _, id := range sortedKeys(d.Scenarios) {
		s := d.Scenarios[id]
		missing("scenarios."+id+".P_TX_max", s.PTXMax)
		if len(s.Sensors) == 0 {
			errs = append(errs, fmt.Errorf("scenarios.%s has no sensors", id))
		}
		seen := make(map[string]bool, len(s.Sensors))
		for i, sensor := range s.Sensors {
			if sensor.ID == "" {
				errs = append(errs, fmt.Errorf("scenarios.%s.sensors[%d] has no id", id, i))
			} else if seen[sensor.ID] {
				errs = append(errs, fmt.Errorf("scenarios.%s has duplicate sensor %q", id, sensor.ID))
			}
			seen[sensor.ID] = true
			if _, ok := d.BodyZones[sensor.Zone]; !ok {
				errs = append(errs, fmt.Errorf("scenarios.%s sensor %q references unknown zone %q", id, sensor.ID, sensor.Zone))
			}
			rate := fmt.Sprintf("scenarios.%s.sensors[%d].data_rate", id, i)
			missing(rate, sensor.DataRate)
			if sensor.DataRate != nil && *sensor.DataRate < 0 {
				errs = append(errs, fmt.Errorf("%s is negative", rate))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	if err := d.PropagationParams().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := energy.New(d.EnergyParams(), d.LinkBudget()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (z ZoneConfig) zone() core.Zone {
	return core.Zone{XMin: *z.XMin, XMax: *z.XMax, YMin: *z.YMin, YMax: *z.YMax}
}

// Zones returns the body zones. The document must be valid.
func (d *Document) Zones() map[string]core.Zone {
	zones := make(map[string]core.Zone, len(d.BodyZones))
	for name, z := range d.BodyZones {
		zones[name] = z.zone()
	}
	return zones
}

// Scenario returns the typed scenario for id.
func (d *Document) Scenario(id string) (core.Scenario, error) {
	s, ok := d.Scenarios[id]
	if !ok {
		return core.Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	sensors := make([]core.SensorDef, len(s.Sensors))
	for i, sc := range s.Sensors {
		sensors[i] = core.SensorDef{ID: sc.ID, Zone: sc.Zone, DataRate: *sc.DataRate}
	}
	return core.Scenario{ID: id, Sensors: sensors, MaxTxPowerDBm: *s.PTXMax}, nil
}

// ScenarioIDs lists scenarios in lexical order.
func (d *Document) ScenarioIDs() []string {
	return sortedKeys(d.Scenarios)
}

func (d *Document) PropagationParams() propagation.Params {
	p := d.Propagation
	return propagation.Params{
		D0:   *p.D0,
		LOS:  propagation.ChannelParams{PL0: *p.PL0LOS, N: *p.NLOS, Sigma: *p.SigmaLOS},
		NLOS: propagation.ChannelParams{PL0: *p.PL0NLOS, N: *p.NNLOS, Sigma: *p.SigmaNLOS},
	}
}

func (d *Document) LinkBudget() energy.LinkBudget {
	return energy.LinkBudget{SensitivityDBm: *d.Propagation.PSens, SafetyMarginDB: *d.Propagation.MSafe}
}

func (d *Document) EnergyParams() energy.Params {
	return energy.Params{ElecJPerBit: *d.Energy.EElec, InitialJ: *d.Energy.EInit, AmpScale: d.Energy.AmpScale}
}

// NewEvaluator builds a fitness evaluator for one scenario and weight pair.
// The document must be valid; shadowing may be nil for a deterministic model.
func (d *Document) NewEvaluator(scenarioID string, weights core.Weights, shadowing core.Shadowing) (*core.Evaluator, error) {
	scenario, err := d.Scenario(scenarioID)
	if err != nil {
		return nil, err
	}
	zones := d.Zones()
	prop, err := propagation.New(d.PropagationParams(), zones[ObstacleZone], shadowing)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	en, err := energy.New(d.EnergyParams(), d.LinkBudget())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return core.NewEvaluator(core.EvaluatorConfig{Scenario: scenario, Zones: zones, Weights: weights}, prop, en)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
