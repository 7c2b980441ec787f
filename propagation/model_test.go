package propagation

import (
	"math"
	"sync"
	"testing"

	"github.com/snow-ghost/wban/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	chest  = core.Zone{XMin: 0.35, XMax: 0.65, YMin: 0.20, YMax: 0.45}
	params = Params{
		D0:   0.1,
		LOS:  ChannelParams{PL0: 35.7, N: 3.23, Sigma: 6.1},
		NLOS: ChannelParams{PL0: 48.4, N: 5.9, Sigma: 5.0},
	}
)

func newModel(t *testing.T, s core.Shadowing) *Model {
	t.Helper()
	m, err := New(params, chest, s)
	require.NoError(t, err)
	return m
}

func TestDistance(t *testing.T) {
	m := newModel(t, nil)

	p := core.Position{X: 0.3, Y: 0.7}
	assert.Equal(t, 0.0, m.Distance(p, p))
	assert.InDelta(t, 0.5, m.Distance(core.Position{X: 0, Y: 0}, core.Position{X: 0.3, Y: 0.4}), 1e-12)
}

func TestPathLossDeterministic(t *testing.T) {
	m := newModel(t, NoShadowing{})

	// at the reference distance only the intercept remains
	assert.InDelta(t, 35.7, m.PathLoss(0.1, true), 1e-12)
	assert.InDelta(t, 48.4, m.PathLoss(0.1, false), 1e-12)

	assert.InDelta(t, 35.7+32.3, m.PathLoss(1.0, true), 1e-9)
	assert.InDelta(t, 48.4+59.0, m.PathLoss(1.0, false), 1e-9)
}

func TestPathLossDistanceFloor(t *testing.T) {
	m := newModel(t, NoShadowing{})

	floor := m.PathLoss(MinDistanceM, true)
	assert.InDelta(t, 35.7-32.3, floor, 1e-9)
	assert.Equal(t, floor, m.PathLoss(0, true))
	assert.Equal(t, floor, m.PathLoss(0.001, true))
	assert.False(t, math.IsInf(m.PathLoss(0, false), 0))
}

func TestLineOfSight(t *testing.T) {
	m := newModel(t, nil)

	tests := []struct {
		name   string
		sensor core.Position
		hub    core.Position
		los    bool
	}{
		{"both left of chest", core.Position{X: 0.2, Y: 0.3}, core.Position{X: 0.3, Y: 0.5}, true},
		{"head to waist through chest", core.Position{X: 0.5, Y: 0.1}, core.Position{X: 0.5, Y: 0.5}, false},
		{"arm to arm across chest", core.Position{X: 0.2, Y: 0.3}, core.Position{X: 0.8, Y: 0.3}, false},
		{"sensor on chest", core.Position{X: 0.5, Y: 0.3}, core.Position{X: 0.5, Y: 0.9}, false},
		{"below chest", core.Position{X: 0.4, Y: 0.6}, core.Position{X: 0.6, Y: 0.9}, true},
		// bounding box overlaps the corner although the segment misses it
		{"diagonal past corner", core.Position{X: 0.30, Y: 0.28}, core.Position{X: 0.40, Y: 0.10}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.los, m.LineOfSight(tt.sensor, tt.hub))
			assert.Equal(t, tt.los, m.LineOfSight(tt.hub, tt.sensor))
		})
	}
}

func TestNewRejectsInvalidParams(t *testing.T) {
	bad := params
	bad.D0 = 0
	_, err := New(bad, chest, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)

	bad = params
	bad.NLOS.Sigma = -1
	_, err = New(bad, chest, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)

	bad = params
	bad.LOS.N = math.NaN()
	_, err = New(bad, chest, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = New(params, core.Zone{XMin: 1, XMax: 0}, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestGaussianShadowingSeeded(t *testing.T) {
	a := NewGaussianShadowing(42)
	b := NewGaussianShadowing(42)
	c := NewGaussianShadowing(43)

	same := true
	for i := 0; i < 100; i++ {
		x, y, z := a.Sample(6.1), b.Sample(6.1), c.Sample(6.1)
		assert.Equal(t, x, y)
		same = same && x == z
	}
	assert.False(t, same, "different seeds should diverge")
	assert.Zero(t, a.Sample(0))
}

func TestGaussianShadowingMoments(t *testing.T) {
	s := NewGaussianShadowing(7)

	const n = 20000
	sum, sumSq := 0.0, 0.0
	for i := 0; i < n; i++ {
		x := s.Sample(5.0)
		sum += x
		sumSq += x * x
	}
	mean := sum / n
	std := math.Sqrt(sumSq/n - mean*mean)
	assert.InDelta(t, 0, mean, 0.15)
	assert.InDelta(t, 5.0, std, 0.15)
}

func TestGaussianShadowingConcurrent(t *testing.T) {
	s := NewGaussianShadowing(1)
	m := newModel(t, s)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				pl := m.PathLoss(0.3, i%2 == 0)
				assert.False(t, math.IsNaN(pl))
			}
		}()
	}
	wg.Wait()

	assert.NotPanics(t, func() { NewEntropyShadowing().Sample(1) })
}

func TestValidateReportsLOSFirst(t *testing.T) {
	bad := params
	bad.LOS.Sigma = -1
	bad.NLOS.Sigma = -1

	for i := 0; i < 20; i++ {
		err := bad.Validate()
		require.ErrorIs(t, err, ErrInvalidParams)
		assert.Contains(t, err.Error(), "los sigma")
		assert.NotContains(t, err.Error(), "nlos")
	}
}
