package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZone(t *testing.T) {
	z := Zone{XMin: 0.35, XMax: 0.65, YMin: 0.20, YMax: 0.45}

	assert.True(t, z.Contains(Position{X: 0.35, Y: 0.20}))
	assert.True(t, z.Contains(Position{X: 0.65, Y: 0.45}))
	assert.False(t, z.Contains(Position{X: 0.66, Y: 0.30}))
	assert.False(t, z.Contains(Position{X: 0.50, Y: 0.19}))
	assert.InDelta(t, 0.5, z.Center().X, 1e-12)
	assert.InDelta(t, 0.325, z.Center().Y, 1e-12)
	assert.False(t, z.Empty())
	assert.True(t, Zone{XMin: 1, XMax: 0}.Empty())
}

func TestScenarioDimension(t *testing.T) {
	assert.Equal(t, 2, Scenario{}.Dimension())
	assert.Equal(t, 10, Scenario{Sensors: make([]SensorDef, 4)}.Dimension())
}

func TestWeightsJSON(t *testing.T) {
	var w Weights
	require.NoError(t, json.Unmarshal([]byte(`{"w_E":0.8,"w_R":0.2}`), &w))
	assert.Equal(t, Weights{Energy: 0.8, Reliability: 0.2}, w)
}
