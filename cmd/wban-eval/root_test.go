package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/snow-ghost/wban/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// s1Center places every S1 sensor at its zone centre and the hub mid-torso
const s1Center = "0.5,0.325,0.2,0.375,0.8,0.375,0.5,0.505,0.5,0.55"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG", "")
	t.Setenv("WBAN_SEED", "")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScenariosCmd(t *testing.T) {
	out, err := run(t, "scenarios", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "an explicitly named file must exist")

	out, err = run(t, "scenarios")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"S1", "4", "10", "0"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"S2", "6", "14", "-5"}, strings.Fields(lines[2]))
}

func TestEvaluateCmdSeeded(t *testing.T) {
	args := []string{"evaluate", "-s", "S1", "--we", "0.8", "--wr", "0.2", "--seed", "42", "--vector", s1Center}

	first, err := run(t, args...)
	require.NoError(t, err)
	second, err := run(t, args...)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, strings.TrimSpace(first))
}

func TestEvaluateCmdInputFile(t *testing.T) {
	population := [][]float64{
		{0.5, 0.325, 0.2, 0.375, 0.8, 0.375, 0.5, 0.505, 0.5, 0.55},
		{0.9, 0.325, 0.2, 0.375, 0.8, 0.375, 0.5, 0.505, 0.5, 0.55},
	}
	data, err := json.Marshal(population)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "population.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	out, err := run(t, "evaluate", "-s", "S1", "--seed", "1", "--input", path)
	require.NoError(t, err)
	lines := strings.Fields(out)
	require.Len(t, lines, 2)
	assert.Equal(t, "1.001e+06", lines[1])
}

func TestEvaluateCmdErrors(t *testing.T) {
	_, err := run(t, "evaluate", "-s", "S1", "--vector", "0.1,0.2,0.3")
	assert.ErrorIs(t, err, core.ErrVectorLength)

	_, err = run(t, "evaluate", "-s", "S1")
	assert.Error(t, err)

	_, err = run(t, "evaluate", "-s", "S3", "--vector", s1Center)
	assert.Error(t, err)
}

func TestMetricsCmd(t *testing.T) {
	out, err := run(t, "metrics", "-s", "S1", "--seed", "3", "--vector", s1Center)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Contains(t, m, "E_total_real")
	assert.Contains(t, m, "T_life")
	assert.Equal(t, 0.0, m["P_geo"])
	assert.NotContains(t, m, "links")
}

func TestInitCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params", "wban.yaml")

	out, err := run(t, "init", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = run(t, "init", "-c", path)
	assert.Error(t, err)

	out, err = run(t, "scenarios", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "S2")
}
