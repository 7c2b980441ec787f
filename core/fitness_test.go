package core_test

import (
	"math"
	"testing"

	"github.com/snow-ghost/wban/core"
	"github.com/snow-ghost/wban/pkg/registry"
	"github.com/snow-ghost/wban/propagation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatChannel reports a constant path loss
type flatChannel struct{ lossDB float64 }

func (flatChannel) Distance(p1, p2 core.Position) float64 { return math.Hypot(p1.X-p2.X, p1.Y-p2.Y) }
func (flatChannel) LineOfSight(core.Position, core.Position) bool {
	return true
}
func (c flatChannel) PathLoss(float64, bool) float64 { return c.lossDB }

// fixedRadio needs the same power on every link and spends joulesPerBit
type fixedRadio struct {
	requiredDBm  float64
	joulesPerBit float64
	initialJ     float64
}

func (r fixedRadio) RequiredTxPower(float64) float64 { return r.requiredDBm }
func (r fixedRadio) Consumption(bits, _ float64) float64 {
	return bits * r.joulesPerBit
}
func (r fixedRadio) InitialEnergy() float64 { return r.initialJ }

var testZones = map[string]core.Zone{
	"chest": {XMin: 0.35, XMax: 0.65, YMin: 0.20, YMax: 0.45},
	"arm":   {XMin: 0.10, XMax: 0.30, YMin: 0.20, YMax: 0.55},
}

func testScenario() core.Scenario {
	return core.Scenario{
		ID: "T1",
		Sensors: []core.SensorDef{
			{ID: "ecg", Zone: "chest", DataRate: 2000},
			{ID: "spo2", Zone: "arm", DataRate: 400},
		},
		MaxTxPowerDBm: 0,
	}
}

func newStubEvaluator(t *testing.T, s core.Scenario, w core.Weights, radio fixedRadio) *core.Evaluator {
	t.Helper()
	ev, err := core.NewEvaluator(core.EvaluatorConfig{Scenario: s, Zones: testZones, Weights: w}, flatChannel{lossDB: 60}, radio)
	require.NoError(t, err)
	return ev
}

func TestDecode(t *testing.T) {
	ev := newStubEvaluator(t, testScenario(), core.Weights{Energy: 0.5, Reliability: 0.5}, fixedRadio{})
	require.Equal(t, 6, ev.Dimension())

	v := []float64{0.5, 0.3, 0.2, 0.4, 0.45, 0.5}
	p, err := ev.Decode(v)
	require.NoError(t, err)

	require.Len(t, p.Sensors, 2)
	for i, s := range p.Sensors {
		assert.Equal(t, core.Position{X: v[2*i], Y: v[2*i+1]}, s.Position)
		assert.Equal(t, testScenario().Sensors[i], s.Def)
		assert.Equal(t, s.Def.ID, s.ID)
	}
	assert.Equal(t, core.Position{X: 0.45, Y: 0.5}, p.Hub.Position)
}

func TestDecodeRejectsMalformedVectors(t *testing.T) {
	ev := newStubEvaluator(t, testScenario(), core.Weights{Energy: 1}, fixedRadio{})

	_, err := ev.Decode([]float64{0.5, 0.3, 0.2, 0.4})
	assert.ErrorIs(t, err, core.ErrVectorLength)

	_, err = ev.Evaluate(make([]float64, 7))
	assert.ErrorIs(t, err, core.ErrVectorLength)

	_, err = ev.Metrics([]float64{0.5, math.NaN(), 0.2, 0.4, 0.45, 0.5})
	assert.ErrorIs(t, err, core.ErrNonFiniteCoordinate)

	_, err = ev.Evaluate([]float64{0.5, 0.3, math.Inf(1), 0.4, 0.45, 0.5})
	assert.ErrorIs(t, err, core.ErrNonFiniteCoordinate)

	assert.True(t, math.IsInf(ev.Objective()(nil), 1))
}

func TestGeometricPenalty(t *testing.T) {
	radio := fixedRadio{requiredDBm: -10, joulesPerBit: 1e-9, initialJ: 0.5}
	ev := newStubEvaluator(t, testScenario(), core.Weights{Energy: 0.5, Reliability: 0.5}, radio)

	tests := []struct {
		name    string
		vector  []float64
		outside int
	}{
		{"boundary corner is inside", []float64{0.35, 0.20, 0.10, 0.20, 0.5, 0.5}, 0},
		{"far boundary corner is inside", []float64{0.65, 0.45, 0.30, 0.55, 0.5, 0.5}, 0},
		{"one sensor outside", []float64{0.66, 0.30, 0.20, 0.40, 0.5, 0.5}, 1},
		{"both sensors outside", []float64{0.10, 0.90, 0.90, 0.90, 0.5, 0.5}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ev.Evaluate(tt.vector)
			require.NoError(t, err)
			m, err := ev.Metrics(tt.vector)
			require.NoError(t, err)

			assert.Equal(t, float64(tt.outside)*core.GeometricPenalty, m.GeometricPenalty)
			if tt.outside == 0 {
				assert.Less(t, f, core.InvalidGeometryBase)
				assert.GreaterOrEqual(t, f, 0.0)
			} else {
				assert.Equal(t, core.InvalidGeometryBase+float64(tt.outside)*core.GeometricPenalty, f)
			}

			outside := 0
			for _, l := range m.Links {
				if !l.InZone {
					outside++
				}
			}
			assert.Equal(t, tt.outside, outside)
		})
	}
}

func TestFitnessIsScaledEnergyWithoutViolations(t *testing.T) {
	radio := fixedRadio{requiredDBm: -10, joulesPerBit: 1e-9, initialJ: 0.5}
	w := core.Weights{Energy: 0.7, Reliability: 0.3}
	ev := newStubEvaluator(t, testScenario(), w, radio)

	v := []float64{0.5, 0.3, 0.2, 0.4, 0.45, 0.5}
	f, err := ev.Evaluate(v)
	require.NoError(t, err)

	total := 0.0
	for _, s := range testScenario().Sensors {
		total += s.DataRate * radio.joulesPerBit
	}
	assert.Equal(t, w.Energy*total*core.EnergyScale, f)

	m, err := ev.Metrics(v)
	require.NoError(t, err)
	assert.Equal(t, total, m.TotalEnergyJ)
	assert.Zero(t, m.ReliabilityPenalty)
	for _, l := range m.Links {
		assert.Equal(t, 10.0, l.MarginDB)
		assert.Equal(t, -10.0, l.UsedTxDBm)
	}
}

func TestReliabilityPenalty(t *testing.T) {
	s := testScenario()
	s.Sensors = s.Sensors[:1]
	s.MaxTxPowerDBm = -5

	// 10 dB more than the radio can deliver
	radio := fixedRadio{requiredDBm: 5, joulesPerBit: 1e-9, initialJ: 0.5}
	ev := newStubEvaluator(t, s, core.Weights{Energy: 0, Reliability: 0.8}, radio)

	v := []float64{0.5, 0.3, 0.45, 0.5}
	f, err := ev.Evaluate(v)
	require.NoError(t, err)
	assert.InDelta(t, 400.0, f, 1e-9)

	m, err := ev.Metrics(v)
	require.NoError(t, err)
	assert.InDelta(t, 500.0, m.ReliabilityPenalty, 1e-9)
	require.Len(t, m.Links, 1)
	assert.Equal(t, -10.0, m.Links[0].MarginDB)
	assert.Equal(t, -5.0, m.Links[0].UsedTxDBm)
	assert.Equal(t, 5.0, m.Links[0].RequiredTxDBm)
}

func TestNetworkLifetime(t *testing.T) {
	v := []float64{0.5, 0.3, 0.2, 0.4, 0.45, 0.5}

	t.Run("worst node bounds lifetime", func(t *testing.T) {
		radio := fixedRadio{requiredDBm: -10, joulesPerBit: 1e-9, initialJ: 0.5}
		ev := newStubEvaluator(t, testScenario(), core.Weights{Energy: 1}, radio)

		m, err := ev.Metrics(v)
		require.NoError(t, err)
		assert.InDelta(t, 0.5/(2000*1e-9), m.NetworkLifetime, 1e-6)
	})

	t.Run("zero energy gives zero lifetime", func(t *testing.T) {
		ev := newStubEvaluator(t, testScenario(), core.Weights{Energy: 1}, fixedRadio{initialJ: 0.5})

		m, err := ev.Metrics(v)
		require.NoError(t, err)
		assert.Zero(t, m.NetworkLifetime)
		assert.Zero(t, m.TotalEnergyJ)
	})
}

func TestNewEvaluatorValidation(t *testing.T) {
	s := testScenario()
	w := core.Weights{Energy: 0.5, Reliability: 0.5}
	prop, radio := flatChannel{}, fixedRadio{}

	tests := []struct {
		name string
		cfg  core.EvaluatorConfig
		prop core.PropagationModel
		en   core.EnergyModel
	}{
		{"missing propagation", core.EvaluatorConfig{Scenario: s, Zones: testZones, Weights: w}, nil, radio},
		{"missing energy", core.EvaluatorConfig{Scenario: s, Zones: testZones, Weights: w}, prop, nil},
		{"no sensors", core.EvaluatorConfig{Scenario: core.Scenario{ID: "empty"}, Zones: testZones, Weights: w}, prop, radio},
		{"negative weight", core.EvaluatorConfig{Scenario: s, Zones: testZones, Weights: core.Weights{Energy: -1}}, prop, radio},
		{"NaN weight", core.EvaluatorConfig{Scenario: s, Zones: testZones, Weights: core.Weights{Reliability: math.NaN()}}, prop, radio},
		{"unknown zone", core.EvaluatorConfig{Scenario: s, Zones: map[string]core.Zone{"chest": testZones["chest"]}, Weights: w}, prop, radio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := core.NewEvaluator(tt.cfg, tt.prop, tt.en)
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}

func TestEvaluatorCopiesScenario(t *testing.T) {
	s := testScenario()
	ev := newStubEvaluator(t, s, core.Weights{Energy: 1}, fixedRadio{})

	s.Sensors[0].Zone = "arm"
	assert.Equal(t, "chest", ev.Scenario().Sensors[0].Zone)

	got := ev.Scenario()
	got.Sensors[0].Zone = "arm"
	assert.Equal(t, "chest", ev.Scenario().Sensors[0].Zone)
}

func TestSeededMetricsAreReproducible(t *testing.T) {
	doc := registry.DefaultDocument()
	w := core.Weights{Energy: 0.5, Reliability: 0.5}

	a, err := doc.NewEvaluator("S2", w, propagation.NewGaussianShadowing(11))
	require.NoError(t, err)
	b, err := doc.NewEvaluator("S2", w, propagation.NewGaussianShadowing(11))
	require.NoError(t, err)

	// S2 sensor order: ecg, eeg, spo2, emg, gait, temp
	v := []float64{
		0.5, 0.3, 0.5, 0.1, 0.2, 0.4, 0.6, 0.8, 0.4, 0.8, 0.8, 0.4,
		0.5, 0.5,
	}
	for i := 0; i < 3; i++ {
		ma, err := a.Metrics(v)
		require.NoError(t, err)
		mb, err := b.Metrics(v)
		require.NoError(t, err)
		assert.Equal(t, ma, mb)
		assert.Zero(t, ma.GeometricPenalty)
	}
}

func TestValidScoresAreFinite(t *testing.T) {
	doc := registry.DefaultDocument()
	ev, err := doc.NewEvaluator("S1", core.Weights{Energy: 0.5, Reliability: 0.5}, propagation.NewGaussianShadowing(3))
	require.NoError(t, err)

	// hub coinciding with a sensor exercises the distance floor
	v := []float64{0.5, 0.3, 0.2, 0.4, 0.8, 0.4, 0.5, 0.5, 0.5, 0.3}
	for i := 0; i < 50; i++ {
		f, err := ev.Evaluate(v)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(f) || math.IsInf(f, 0))
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, core.InvalidGeometryBase)
	}
}
