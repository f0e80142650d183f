package persona

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/regime"
	"main/internal/schema"
	"main/pkg/exception"
)

func trendView(steps int, slopes map[uint32]float64) View {
	symbols := []schema.Symbol{
		{ID: 1, Name: "EQ-CORE"},
		{ID: 2, Name: "EQ-GROWTH"},
		{ID: 3, Name: "RATES"},
	}
	history := make(map[uint32][]schema.MarketObservation, len(symbols))
	for _, symbol := range symbols {
		id := uint32(symbol.ID)
		slope := slopes[id]
		series := make([]schema.MarketObservation, steps)
		for i := range series {
			price := 1_000_000.0 + slope*float64(i)
			series[i] = schema.MarketObservation{
				SymbolID: id,
				Price:    schema.Price(price),
				Depth:    schema.RatioFromFloat(float64(id)),
			}
		}
		history[id] = series
	}
	return View{
		Symbols:   symbols,
		History:   history,
		Exposures: map[uint32]float64{},
		Equity:    1_000_000,
		Profile:   regime.ChooseProfile(0, 0.05),
	}
}

func TestAlphaShortHistoryError(t *testing.T) {
	alpha := NewAlpha(AlphaConfig{})
	view := trendView(10, map[uint32]float64{})

	_, err := alpha.Propose(view)

	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrPersonaShortHistory))
}

func TestAlphaFavorsMomentumLeader(t *testing.T) {
	alpha := NewAlpha(AlphaConfig{MomentumLookback: 20, ReversalLookback: 2, VolLookback: 10})
	view := trendView(40, map[uint32]float64{1: 2_000, 2: -2_000, 3: 0})

	signals, err := alpha.Propose(view)

	require.NoError(t, err)
	require.Len(t, signals, 3)
	assert.Greater(t, signals[1], signals[2])
	assert.Greater(t, signals[2], signals[3])
	sum := signals[1] + signals[2] + signals[3]
	assert.InDelta(t, 0, sum, 0.5)
}

func TestAlphaSmoothingUsesPreviousTick(t *testing.T) {
	alpha := NewAlpha(AlphaConfig{MomentumLookback: 20, ReversalLookback: 2, VolLookback: 10, EmaAlpha: 0.25})
	view := trendView(40, map[uint32]float64{1: 2_000, 2: -2_000, 3: 0})

	first, err := alpha.Propose(view)
	require.NoError(t, err)
	second, err := alpha.Propose(view)
	require.NoError(t, err)

	// identical input twice keeps the sign stable
	assert.Equal(t, math.Signbit(first[1]), math.Signbit(second[1]))
	assert.Equal(t, math.Signbit(first[2]), math.Signbit(second[2]))
}

func TestLiquidityTracksTopDepthOnly(t *testing.T) {
	liquidity := NewLiquidity(LiquidityConfig{TopN: 2, MALookback: 10})
	view := trendView(30, map[uint32]float64{1: 5_000, 2: 5_000, 3: 5_000})

	signals, err := liquidity.Propose(view)

	require.NoError(t, err)
	require.Len(t, signals, 3)
	// depth is set to the symbol ID, so 3 and 2 are the deepest
	assert.Zero(t, signals[1])
	assert.Equal(t, signals[2], signals[3])
	assert.Greater(t, signals[3], 0.0)
	assert.LessOrEqual(t, signals[3], 1.0)
}

func TestLiquidityShortHistoryError(t *testing.T) {
	liquidity := NewLiquidity(LiquidityConfig{MALookback: 20})
	view := trendView(5, map[uint32]float64{})

	_, err := liquidity.Propose(view)

	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrPersonaShortHistory))
}

func TestConvexityFlatWhenCalm(t *testing.T) {
	convexity := NewConvexity(ConvexityConfig{})
	view := trendView(5, map[uint32]float64{})

	signals, err := convexity.Propose(view)

	require.NoError(t, err)
	for id, v := range signals {
		assert.Zerof(t, v, "symbol %d", id)
	}
}

func TestConvexityHedgesDrawdown(t *testing.T) {
	convexity := NewConvexity(ConvexityConfig{})
	view := trendView(5, map[uint32]float64{})
	last := len(view.History[1]) - 1
	view.History[1][last].Drawdown = schema.RatioFromFloat(0.25)
	view.History[1][last].TailRisk = schema.RatioFromFloat(0.80)

	signals, err := convexity.Propose(view)

	require.NoError(t, err)
	assert.Less(t, signals[1], 0.0)
	assert.Zero(t, signals[2])
}

func TestConvexityHedgeGrowsWithDrawdown(t *testing.T) {
	convexity := NewConvexity(ConvexityConfig{})
	shallow := trendView(5, map[uint32]float64{})
	deep := trendView(5, map[uint32]float64{})
	lastIdx := len(shallow.History[1]) - 1
	shallow.History[1][lastIdx].Drawdown = schema.RatioFromFloat(0.10)
	deep.History[1][lastIdx].Drawdown = schema.RatioFromFloat(0.30)

	shallowSignals, err := convexity.Propose(shallow)
	require.NoError(t, err)
	deepSignals, err := convexity.Propose(deep)
	require.NoError(t, err)

	assert.Less(t, deepSignals[1], shallowSignals[1])
}

func TestGuardianWeightFullWhenUnderLeveraged(t *testing.T) {
	guardian := NewGuardian()
	view := trendView(1, map[uint32]float64{})
	view.Exposures = map[uint32]float64{1: 100_000}

	weight := guardian.Weight(view)

	assert.Equal(t, 1.0, weight)
}

func TestGuardianWeightShrinksWhenOverLeveraged(t *testing.T) {
	guardian := NewGuardian()
	view := trendView(1, map[uint32]float64{})
	view.Profile = regime.ChooseProfile(0.30, 0.70)
	view.Exposures = map[uint32]float64{1: 2_000_000, 2: -1_500_000}

	weight := guardian.Weight(view)

	// gross lev 3.5 against the defensive cap 0.7
	assert.InDelta(t, 0.2, weight, 1e-9)
	assert.Less(t, weight, 1.0)
}

func TestGuardianProposeUniformWeight(t *testing.T) {
	guardian := NewGuardian()
	view := trendView(1, map[uint32]float64{})

	signals, err := guardian.Propose(view)

	require.NoError(t, err)
	require.Len(t, signals, 3)
	assert.Equal(t, signals[1], signals[2])
	assert.Equal(t, signals[2], signals[3])
}

func TestCheckFiniteRejectsNaN(t *testing.T) {
	err := checkFinite("alpha", map[uint32]float64{1: math.NaN()})

	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrPersonaNotFinite))
}
