package stress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/feed"
)

func baseObservation() feed.RawObservation {
	return feed.RawObservation{
		Symbol:       "EQ-CORE",
		Price:        100,
		VolRealized:  0.02,
		VolTrend:     0.0,
		Depth:        1.0,
		Spread:       0.001,
		ImpactCost:   0.001,
		Elasticity:   1.0,
		FlowPressure: 0.1,
		Drawdown:     0.05,
	}
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{ShockRate: 1.5, MinDuration: 1, MaxDuration: 1}.Validate())
	assert.Error(t, Config{MinDuration: 0}.Validate())
	assert.Error(t, Config{MinDuration: 5, MaxDuration: 2}.Validate())
	assert.NoError(t, Config{ShockRate: 0.1, MinDuration: 2, MaxDuration: 5}.Validate())
}

func TestNewInjectorRejectsBadRate(t *testing.T) {
	_, err := NewInjector(Config{ShockRate: 2})
	assert.Error(t, err)
}

func TestProcessWithoutShocksIsIdentity(t *testing.T) {
	injector, err := NewInjector(Config{})
	require.NoError(t, err)

	obs := baseObservation()
	assert.Equal(t, obs, injector.Process(obs))
}

func TestTriggerVolSpike(t *testing.T) {
	injector, err := NewInjector(Config{VolFactor: 4})
	require.NoError(t, err)
	injector.Trigger(ShockVolSpike, 2)

	out := injector.Process(baseObservation())

	assert.InDelta(t, 0.08, out.VolRealized, 1e-9)
	assert.Greater(t, out.VolTrend, 0.0)
	assert.Greater(t, out.TailRisk, baseObservation().TailRisk)
}

func TestTriggerLiquidityFreeze(t *testing.T) {
	injector, err := NewInjector(Config{DepthFactor: 0.05})
	require.NoError(t, err)
	injector.Trigger(ShockLiquidityFreeze, 1)

	out := injector.Process(baseObservation())

	assert.InDelta(t, 0.05, out.Depth, 1e-9)
	assert.InDelta(t, 0.006, out.Spread, 1e-9)
	assert.Less(t, out.Elasticity, 1.0)
}

func TestShockExpiresAfterDuration(t *testing.T) {
	injector, err := NewInjector(Config{})
	require.NoError(t, err)
	injector.Trigger(ShockDrawdown, 2)
	require.Contains(t, injector.Active(), ShockDrawdown)

	injector.Advance()
	assert.Contains(t, injector.Active(), ShockDrawdown)

	injector.Advance()
	assert.NotContains(t, injector.Active(), ShockDrawdown)
	assert.Equal(t, baseObservation(), injector.Process(baseObservation()))
}

func TestAdvanceRollsShocksAtFullRate(t *testing.T) {
	injector, err := NewInjector(Config{Seed: 42, ShockRate: 1.0, MinDuration: 3, MaxDuration: 3})
	require.NoError(t, err)

	injector.Advance()
	assert.NotEmpty(t, injector.Active())
}

func TestFlowRushClampsPressure(t *testing.T) {
	injector, err := NewInjector(Config{FlowPush: -0.8})
	require.NoError(t, err)
	injector.Trigger(ShockFlowRush, 1)

	obs := baseObservation()
	obs.FlowPressure = -0.6
	out := injector.Process(obs)

	assert.Equal(t, -1.0, out.FlowPressure)
	assert.Less(t, out.NetInflow, 0.0)
}

func TestShockKindString(t *testing.T) {
	assert.Equal(t, "vol_spike", ShockVolSpike.String())
	assert.Equal(t, "liquidity_freeze", ShockLiquidityFreeze.String())
	assert.Equal(t, "unknown", ShockKind(99).String())
}
