// Package propagation models on-body radio links: distance, line-of-sight
// through the torso and log-distance path loss with log-normal shadowing.
package propagation

import (
	"errors"
	"fmt"
	"math"

	"github.com/snow-ghost/wban/core"
)

// MinDistanceM floors link distance so co-located nodes stay in the log domain.
const MinDistanceM = 0.01

var ErrInvalidParams = errors.New("invalid propagation params")

// ChannelParams is one log-distance channel: intercept, exponent, shadowing.
type ChannelParams struct {
	PL0   float64 // dB at D0
	N     float64
	Sigma float64 // dB
}

// Params holds the reference distance and the LOS/NLOS channel sets.
type Params struct {
	D0   float64 // metres
	LOS  ChannelParams
	NLOS ChannelParams
}

// Validate rejects parameters that would make path loss undefined.
func (p Params) Validate() error {
	if !(p.D0 > 0) {
		return fmt.Errorf("%w: d0 must be positive, got %v", ErrInvalidParams, p.D0)
	}
	channels := []struct {
		name string
		c    ChannelParams
	}{{"los", p.LOS}, {"nlos", p.NLOS}}
	for _, ch := range channels {
		name, c := ch.name, ch.c
		if c.Sigma < 0 || math.IsNaN(c.Sigma) {
			return fmt.Errorf("%w: %s sigma must be non-negative, got %v", ErrInvalidParams, name, c.Sigma)
		}
		if math.IsNaN(c.PL0) || math.IsNaN(c.N) {
			return fmt.Errorf("%w: %s intercept and exponent are required", ErrInvalidParams, name)
		}
	}
	return nil
}

// Model implements core.PropagationModel. The chest zone is the single
// obstacle considered for line-of-sight.
type Model struct {
	params    Params
	chest     core.Zone
	shadowing core.Shadowing
}

// New binds params to the chest obstacle and a shadowing source. A nil
// source disables shadowing.
func New(params Params, chest core.Zone, shadowing core.Shadowing) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if chest.Empty() {
		return nil, fmt.Errorf("%w: chest zone has inverted bounds %+v", ErrInvalidParams, chest)
	}
	if shadowing == nil {
		shadowing = NoShadowing{}
	}
	return &Model{params: params, chest: chest, shadowing: shadowing}, nil
}

// Distance is the Euclidean distance in map units.
func (m *Model) Distance(p1, p2 core.Position) float64 {
	return math.Hypot(p1.X-p2.X, p1.Y-p2.Y)
}

// LineOfSight reports false when the bounding box of the sensor-hub segment
// overlaps the chest zone. This is coarser than an exact segment/rectangle
// test: a diagonal that only passes near a corner is still treated as
// obstructed, and an endpoint inside the chest always is.
func (m *Model) LineOfSight(sensor, hub core.Position) bool {
	return !segmentBoxOverlaps(sensor, hub, m.chest)
}

// PathLoss returns PL0 + 10*n*log10(d/d0) + X in dB, with X drawn from the
// shadowing source on every call.
func (m *Model) PathLoss(distance float64, los bool) float64 {
	c := m.params.NLOS
	if los {
		c = m.params.LOS
	}
	d := math.Max(distance, MinDistanceM)
	return c.PL0 + 10*c.N*math.Log10(d/m.params.D0) + m.shadowing.Sample(c.Sigma)
}

func segmentBoxOverlaps(p1, p2 core.Position, z core.Zone) bool {
	return !(math.Max(p1.X, p2.X) < z.XMin ||
		math.Min(p1.X, p2.X) > z.XMax ||
		math.Max(p1.Y, p2.Y) < z.YMin ||
		math.Min(p1.Y, p2.Y) > z.YMax)
}
