package core

// Position is a point on the body map. One unit is treated as one metre.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Zone is an axis-aligned body region in map coordinates.
type Zone struct {
	XMin float64 `json:"x_min" yaml:"x_min"`
	XMax float64 `json:"x_max" yaml:"x_max"`
	YMin float64 `json:"y_min" yaml:"y_min"`
	YMax float64 `json:"y_max" yaml:"y_max"`
}

// Contains reports whether p lies inside the zone. Edges are inclusive.
func (z Zone) Contains(p Position) bool {
	return z.XMin <= p.X && p.X <= z.XMax && z.YMin <= p.Y && p.Y <= z.YMax
}

// Center returns the midpoint of the zone.
func (z Zone) Center() Position {
	return Position{X: (z.XMin + z.XMax) / 2, Y: (z.YMin + z.YMax) / 2}
}

// Empty reports whether the zone has inverted bounds.
func (z Zone) Empty() bool {
	return z.XMin > z.XMax || z.YMin > z.YMax
}

// SensorDef is the static definition of one sensor in a scenario.
type SensorDef struct {
	ID       string  `json:"id" yaml:"id"`
	Zone     string  `json:"zone" yaml:"zone"`
	DataRate float64 `json:"data_rate" yaml:"data_rate"` // bits per evaluation period
}

// Scenario fixes the sensor set and the transmit power ceiling.
type Scenario struct {
	ID            string      `json:"id"`
	Sensors       []SensorDef `json:"sensors"`
	MaxTxPowerDBm float64     `json:"max_tx_power_dbm"`
}

// Dimension is the solution vector length for the scenario: an (x,y) pair
// per sensor plus one for the hub.
func (s Scenario) Dimension() int {
	return 2*len(s.Sensors) + 2
}

// Weights balance energy against reliability in the objective.
type Weights struct {
	Energy      float64 `json:"w_E" yaml:"w_E"`
	Reliability float64 `json:"w_R" yaml:"w_R"`
}

// SensorPlacement is a decoded sensor position with its definition.
type SensorPlacement struct {
	ID       string
	Position Position
	Def      SensorDef
}

// HubPlacement is the decoded hub position.
type HubPlacement struct {
	Position Position
}

// Placement is the typed form of a solution vector. It is produced per
// evaluation and never shared.
type Placement struct {
	Sensors []SensorPlacement
	Hub     HubPlacement
}

// LinkReport describes one sensor-to-hub link as computed by Metrics.
type LinkReport struct {
	SensorID      string  `json:"sensor_id"`
	InZone        bool    `json:"in_zone"`
	DistanceM     float64 `json:"distance_m"`
	LineOfSight   bool    `json:"line_of_sight"`
	PathLossDB    float64 `json:"path_loss_db"`
	RequiredTxDBm float64 `json:"required_tx_dbm"`
	UsedTxDBm     float64 `json:"used_tx_dbm"`
	MarginDB      float64 `json:"margin_db"`
	EnergyJ       float64 `json:"energy_j"`
}

// Metrics is the reporting decomposition of a solution.
type Metrics struct {
	TotalEnergyJ       float64      `json:"E_total_real"`
	ReliabilityPenalty float64      `json:"P_rel"`
	GeometricPenalty   float64      `json:"P_geo"`
	NetworkLifetime    float64      `json:"T_life"`
	Links              []LinkReport `json:"links,omitempty"`
}
