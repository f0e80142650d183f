package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/authority"
	"main/internal/bus"
	"main/internal/feed"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/schema"
	"main/internal/state"
)

func newTestEngine(t *testing.T, queueCap int) (*Engine, *bus.Queue, *feed.Generator) {
	t.Helper()

	loaded := ops.Default()
	queue := bus.NewQueue(queueCap)
	engine, err := NewEngine(loaded, queue, obs.NewMetrics(), obs.NewTraceGenerator(1))
	require.NoError(t, err)

	gen, err := feed.NewGenerator(loaded.Registry, feed.GeneratorConfig{Seed: 7})
	require.NoError(t, err)
	return engine, queue, gen
}

func runSteps(t *testing.T, engine *Engine, gen *feed.Generator, start time.Time, n int) (time.Time, []StepResult) {
	t.Helper()

	results := make([]StepResult, 0, n)
	now := start
	for i := 0; i < n; i++ {
		result, err := engine.Step(now, gen.Next(now))
		require.NoError(t, err)
		results = append(results, result)
		now = now.Add(time.Second)
	}
	return now, results
}

func crashPhase() feed.Phase {
	return feed.Phase{
		Name:            "crash",
		VolScale:        12,
		DriftShift:      -0.05,
		DepthScale:      0.1,
		FlowBias:        -0.8,
		LiquidityFreeze: true,
	}
}

func totalCommitted(results []StepResult) int {
	total := 0
	for _, r := range results {
		total += r.Committed
	}
	return total
}

func TestEngineCalmRunCommits(t *testing.T) {
	engine, _, gen := newTestEngine(t, 1<<16)
	start := time.Unix(1_700_000_000, 0)

	// momentum needs a full lookback of history before it proposes
	_, results := runSteps(t, engine, gen, start, 120)

	committed := totalCommitted(results)
	require.Positive(t, committed)
	assert.Positive(t, engine.Exposures().Count())
	assert.Positive(t, engine.Seq())

	records := engine.AuthorityRecords()
	require.Len(t, records, committed)
	require.NoError(t, authority.VerifyRecords(records))
	assert.NotEqual(t, authority.GenesisHash, engine.ChainTip())
	assert.Equal(t, engine.ChainTip(), records[len(records)-1].RecordHash)
}

func TestEngineCrashVetoesGrowth(t *testing.T) {
	engine, _, gen := newTestEngine(t, 1<<16)
	start := time.Unix(1_700_000_000, 0)

	now, _ := runSteps(t, engine, gen, start, 90)

	gen.SetPhase(crashPhase())
	_, results := runSteps(t, engine, gen, now, 40)

	last := results[len(results)-1]
	assert.Equal(t, schema.RegimeCrash, last.Guardian.Regime)
	assert.GreaterOrEqual(t, last.Guardian.Severity, 0.95)

	blocked := 0
	for _, r := range results {
		for _, d := range r.Decisions {
			if d.Action == schema.OverlayActionVeto || d.Action == schema.OverlayActionFlatten {
				blocked++
			}
		}
	}
	assert.Positive(t, blocked)
	require.NoError(t, authority.VerifyRecords(engine.AuthorityRecords()))
}

func TestEngineKillSwitchBlocksCommits(t *testing.T) {
	engine, _, gen := newTestEngine(t, 1<<16)
	start := time.Unix(1_700_000_000, 0)

	now, warmup := runSteps(t, engine, gen, start, 90)
	require.Positive(t, totalCommitted(warmup))

	engine.SetKillSwitch(true)
	_, halted := runSteps(t, engine, gen, now, 10)

	assert.Zero(t, totalCommitted(halted))
	for _, r := range halted {
		for _, d := range r.Decisions {
			assert.Equal(t, schema.OverlayActionVeto, d.Action)
			assert.Equal(t, schema.OverlayReasonKillSwitch, d.Reason)
		}
	}
}

func TestEngineRestoreAnchorsChain(t *testing.T) {
	first, _, gen := newTestEngine(t, 1<<16)
	start := time.Unix(1_700_000_000, 0)

	now, results := runSteps(t, first, gen, start, 120)
	require.Positive(t, totalCommitted(results))
	tip := first.ChainTip()
	require.NotEqual(t, authority.GenesisHash, tip)

	second, _, resumeGen := newTestEngine(t, 1<<16)
	second.Restore(state.RecoverResult{
		Exposures:   first.Exposures(),
		LastSeq:     first.Seq(),
		LastEventTs: first.LastEventTs(),
		ChainTip:    tip,
	})
	assert.Equal(t, first.Seq(), second.Seq())
	assert.Equal(t, first.LastEventTs(), second.LastEventTs())
	require.Equal(t, tip, second.ChainTip())

	_, resumed := runSteps(t, second, resumeGen, now, 120)
	require.Positive(t, totalCommitted(resumed))

	records := second.AuthorityRecords()
	require.NotEmpty(t, records)
	assert.Equal(t, tip, records[0].PrevHash)
	require.NoError(t, second.gate.Log().VerifyChain())
}

func TestReplayerRebuildsFromPublishedEvents(t *testing.T) {
	engine, queue, gen := newTestEngine(t, 1<<16)
	start := time.Unix(1_700_000_000, 0)

	_, results := runSteps(t, engine, gen, start, 120)
	committed := totalCommitted(results)
	require.Positive(t, committed)

	queue.Close()
	replayer := NewReplayer()
	var applyErr error
	queue.Run(context.Background(), func(e bus.Event) {
		if applyErr == nil {
			applyErr = replayer.Apply(e)
		}
	})
	require.NoError(t, applyErr)

	assert.Equal(t, int(engine.Seq()), replayer.Total())
	assert.Equal(t, committed, replayer.Counts()[schema.EventCommitRecord])

	require.NoError(t, state.CompareSnapshots(engine.Exposures().Snapshot(), replayer.Exposures().Snapshot()))
	assert.Equal(t, engine.Exposures().Gross(), replayer.Exposures().Gross())
}

func TestReplayerRejectsBrokenChain(t *testing.T) {
	engine, queue, gen := newTestEngine(t, 1<<16)
	start := time.Unix(1_700_000_000, 0)

	_, results := runSteps(t, engine, gen, start, 120)
	require.Positive(t, totalCommitted(results))

	queue.Close()
	var events []bus.Event
	queue.Run(context.Background(), func(e bus.Event) {
		events = append(events, e)
	})

	// drop the first commit so the chain no longer starts at genesis
	dropped := false
	replayer := NewReplayer()
	var applyErr error
	for _, e := range events {
		if e.Header.Type == schema.EventCommitRecord && !dropped {
			dropped = true
			continue
		}
		if err := replayer.Apply(e); err != nil {
			applyErr = err
			break
		}
	}
	require.True(t, dropped)
	require.Error(t, applyErr)
	assert.Contains(t, applyErr.Error(), "commit chain broken")
}
