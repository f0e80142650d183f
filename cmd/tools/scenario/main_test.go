package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"main/internal/feed"
)

func TestTemplateLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(template), 0o644))

	scenario, err := feed.LoadScenario(path)
	require.NoError(t, err)
	require.Equal(t, "calm-crash-recovery", scenario.Name)
	require.Equal(t, 200, scenario.TotalSteps())
}

func TestRenderScenarioRunsAllPhases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(template), 0o644))

	scenario, err := feed.LoadScenario(path)
	require.NoError(t, err)
	require.NoError(t, renderScenario(scenario, 7))
}
