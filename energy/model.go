// Package energy converts link budgets into transmit power and per-period
// radio energy.
package energy

import (
	"errors"
	"fmt"
	"math"
)

// DefaultAmpScale is the joules-per-bit-per-watt factor of the amplifier term.
const DefaultAmpScale = 1e-6

var ErrInvalidParams = errors.New("invalid energy params")

// Params are the radio energy constants.
type Params struct {
	ElecJPerBit float64  // E_elec
	InitialJ    float64  // E_init, per node
	AmpScale    *float64 // nil selects DefaultAmpScale
}

// LinkBudget fixes the receiver side of the link.
type LinkBudget struct {
	SensitivityDBm float64 // P_sens
	SafetyMarginDB float64 // M_safe
}

// Model implements core.EnergyModel.
type Model struct {
	params   Params
	ampScale float64
	link     LinkBudget
}

// New validates params and binds them to the receiver side of the link.
func New(params Params, link LinkBudget) (*Model, error) {
	if params.ElecJPerBit < 0 || math.IsNaN(params.ElecJPerBit) {
		return nil, fmt.Errorf("%w: E_elec must be non-negative, got %v", ErrInvalidParams, params.ElecJPerBit)
	}
	if !(params.InitialJ > 0) {
		return nil, fmt.Errorf("%w: E_init must be positive, got %v", ErrInvalidParams, params.InitialJ)
	}
	ampScale := DefaultAmpScale
	if params.AmpScale != nil {
		ampScale = *params.AmpScale
	}
	if !(ampScale >= 0) || math.IsInf(ampScale, 0) {
		return nil, fmt.Errorf("%w: amplifier scale must be finite and non-negative, got %v", ErrInvalidParams, ampScale)
	}
	return &Model{params: params, ampScale: ampScale, link: link}, nil
}

// RequiredTxPower is the lowest transmit power (dBm) that closes a link with
// the given path loss and the configured margin above sensitivity.
func (m *Model) RequiredTxPower(pathLossDB float64) float64 {
	return m.link.SensitivityDBm + pathLossDB + m.link.SafetyMarginDB
}

// Consumption returns the energy (J) to send bits at txPowerDBm: a fixed
// electronics cost per bit plus an amplifier cost linear in radiated watts.
func (m *Model) Consumption(bits, txPowerDBm float64) float64 {
	watts := DBmToWatts(txPowerDBm)
	elec := m.params.ElecJPerBit * bits
	amp := watts * bits * m.ampScale
	return elec + amp
}

// InitialEnergy is the per-node battery budget E_init in joules.
func (m *Model) InitialEnergy() float64 { return m.params.InitialJ }

// DBmToWatts converts a power level in dBm to watts.
func DBmToWatts(dbm float64) float64 {
	return math.Pow(10, (dbm-30)/10)
}
