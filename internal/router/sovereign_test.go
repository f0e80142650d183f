package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
	"main/pkg/exception"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	for _, p := range []struct {
		name   string
		weight float64
	}{
		{"alpha", 1.0},
		{"guardian", 2.0},
		{"liquidity", 1.4},
		{"convexity", 1.2},
	} {
		_, err := reg.AddPersona(p.name, schema.RatioFromFloat(p.weight))
		require.NoError(t, err)
	}
	return reg
}

func personaID(t *testing.T, reg *schema.Registry, name string) schema.PersonaID {
	t.Helper()
	id, ok := reg.PersonaIDByName(name)
	require.True(t, ok)
	return id
}

func TestNewSovereignNormalizesBaseWeights(t *testing.T) {
	reg := testRegistry(t)
	s, err := NewSovereign(reg, Config{})
	require.NoError(t, err)

	weights := s.Weights()
	total := 0.0
	for _, w := range weights {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.InDelta(t, 2.0/5.6, weights[personaID(t, reg, "guardian")], 1e-9)
	assert.False(t, s.DegradeMode())
	assert.Equal(t, 1.0, s.Load())
}

func TestNewSovereignRejectsEmptyRegistry(t *testing.T) {
	_, err := NewSovereign(schema.NewRegistry(), Config{})
	assert.Error(t, err)

	_, err = NewSovereign(nil, Config{})
	assert.Error(t, err)
}

func TestExcludeRampsSurvivors(t *testing.T) {
	reg := testRegistry(t)
	s, err := NewSovereign(reg, Config{Step: 0.25, CollapseThreshold: 10})
	require.NoError(t, err)

	alphaID := personaID(t, reg, "alpha")
	degraded := s.Exclude(alphaID)

	assert.False(t, degraded)
	assert.True(t, s.Excluded(alphaID))
	assert.Zero(t, s.Weight(alphaID))

	weights := s.Weights()
	total := 0.0
	for _, w := range weights {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	// survivors keep their relative ratio after a uniform ramp
	assert.InDelta(t, 2.0/4.6, weights[personaID(t, reg, "guardian")], 1e-9)
	assert.InDelta(t, 1.4/4.6, weights[personaID(t, reg, "liquidity")], 1e-9)
}

func TestExcludeUnknownLegIsNoop(t *testing.T) {
	reg := testRegistry(t)
	s, err := NewSovereign(reg, Config{})
	require.NoError(t, err)

	before := s.Weights()
	degraded := s.Exclude(schema.PersonaID(99))

	assert.False(t, degraded)
	assert.Equal(t, before, s.Weights())
}

func TestCollapseDegradesToGuardianAndLiquidity(t *testing.T) {
	reg := testRegistry(t)
	// threshold low enough that the first exclusion pulls the equation apart
	s, err := NewSovereign(reg, Config{Step: 0.25, CollapseThreshold: 1.0})
	require.NoError(t, err)

	degraded := s.Exclude(personaID(t, reg, "alpha"))

	require.True(t, degraded)
	assert.True(t, s.DegradeMode())

	weights := s.Weights()
	assert.Zero(t, weights[personaID(t, reg, "alpha")])
	assert.Zero(t, weights[personaID(t, reg, "convexity")])
	assert.InDelta(t, 2.0/3.4, weights[personaID(t, reg, "guardian")], 1e-9)
	assert.InDelta(t, 1.4/3.4, weights[personaID(t, reg, "liquidity")], 1e-9)
}

func TestExcludeEveryLegIsFullRiskOff(t *testing.T) {
	reg := testRegistry(t)
	s, err := NewSovereign(reg, Config{CollapseThreshold: 100})
	require.NoError(t, err)

	for _, name := range []string{"alpha", "guardian", "liquidity", "convexity"} {
		s.Exclude(personaID(t, reg, name))
	}

	assert.True(t, s.DegradeMode())
	for _, w := range s.Weights() {
		assert.Zero(t, w)
	}

	_, err = s.Combine(map[schema.PersonaID]map[uint32]float64{
		personaID(t, reg, "alpha"): {1: 1.0},
	})
	assert.ErrorIs(t, err, exception.ErrNoActiveLegs)
}

func TestMultiplierCapped(t *testing.T) {
	reg := testRegistry(t)
	s, err := NewSovereign(reg, Config{Step: 10.0, MaxMultiplier: 1.5, CollapseThreshold: 100})
	require.NoError(t, err)

	s.Exclude(personaID(t, reg, "alpha"))

	// base load without alpha at cap 1.5: (2.0+1.4+1.2)/5.6 * 1.5
	assert.InDelta(t, 4.6/5.6*1.5, s.Load(), 1e-9)
}

func TestCombineAppliesWeights(t *testing.T) {
	reg := testRegistry(t)
	s, err := NewSovereign(reg, Config{})
	require.NoError(t, err)

	alphaID := personaID(t, reg, "alpha")
	liquidityID := personaID(t, reg, "liquidity")
	signals := map[schema.PersonaID]map[uint32]float64{
		alphaID:     {1: 1.0, 2: -0.5},
		liquidityID: {1: 0.5},
	}

	combined, err := s.Combine(signals)
	require.NoError(t, err)

	wAlpha := s.Weight(alphaID)
	wLiquidity := s.Weight(liquidityID)
	assert.InDelta(t, wAlpha*1.0+wLiquidity*0.5, combined[1], 1e-9)
	assert.InDelta(t, wAlpha*-0.5, combined[2], 1e-9)
}

func TestCombineSkipsExcludedLeg(t *testing.T) {
	reg := testRegistry(t)
	s, err := NewSovereign(reg, Config{CollapseThreshold: 100})
	require.NoError(t, err)

	alphaID := personaID(t, reg, "alpha")
	s.Exclude(alphaID)

	combined, err := s.Combine(map[schema.PersonaID]map[uint32]float64{
		alphaID: {1: 10.0},
	})
	require.NoError(t, err)
	assert.Zero(t, combined[1])
}

func TestUpdatePayload(t *testing.T) {
	reg := testRegistry(t)
	s, err := NewSovereign(reg, Config{CollapseThreshold: 1.0})
	require.NoError(t, err)

	alphaID := personaID(t, reg, "alpha")
	s.Exclude(alphaID)
	u := s.Update(alphaID)

	assert.Equal(t, uint16(alphaID), u.Excluded)
	assert.Equal(t, uint16(1), u.DegradeMode)
	assert.Equal(t, uint16(4), u.LegCount)
	assert.Zero(t, u.Legs[0].Weight)
}
