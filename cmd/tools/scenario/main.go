package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"main/internal/feed"
	"main/internal/ops"
	"main/internal/regime"
	"main/internal/schema"
)

const template = `{
  "name": "calm-crash-recovery",
  "phases": [
    {"name": "calm", "steps": 60, "vol_scale": "1", "depth_scale": "1"},
    {"name": "buildup", "steps": 30, "vol_scale": "1.8", "drift_shift": "-0.002", "flow_bias": "-0.3"},
    {"name": "crash", "steps": 20, "vol_scale": "4", "drift_shift": "-0.02", "depth_scale": "0.2", "flow_bias": "-0.9"},
    {"name": "freeze", "steps": 10, "vol_scale": "3", "depth_scale": "0.1", "liquidity_freeze": true},
    {"name": "recovery", "steps": 80, "vol_scale": "1.5", "drift_shift": "0.004", "depth_scale": "0.8", "flow_bias": "0.4"}
  ]
}
`

func main() {
	validate := flag.String("validate", "", "Validate a scenario file and print its phases")
	write := flag.String("write", "", "Write a template scenario file")
	render := flag.String("render", "", "Run a scenario through the pipeline and print per-phase assessments")
	seed := flag.Int64("seed", 1, "Generator seed for -render")
	flag.Parse()

	switch {
	case *write != "":
		if err := os.WriteFile(*write, []byte(template), 0o644); err != nil {
			log.Fatalf("write failed: %v", err)
		}
		scenario, err := feed.LoadScenario(*write)
		if err != nil {
			log.Fatalf("template invalid: %v", err)
		}
		fmt.Printf("wrote %s: %s, %d phases, %d steps\n", *write, scenario.Name, len(scenario.Phases), scenario.TotalSteps())
	case *validate != "":
		scenario, err := feed.LoadScenario(*validate)
		if err != nil {
			log.Fatalf("scenario invalid: %v", err)
		}
		fmt.Printf("scenario: %s, %d phases, %d steps\n", scenario.Name, len(scenario.Phases), scenario.TotalSteps())
		step := 0
		for _, raw := range scenario.Phases {
			phase, _ := scenario.PhaseAt(step)
			fmt.Printf("  %-12s steps=%-4d vol=%.2f drift=%+.4f depth=%.2f flow=%+.2f freeze=%v\n",
				phase.Name, raw.Steps, phase.VolScale, phase.DriftShift, phase.DepthScale, phase.FlowBias, phase.LiquidityFreeze)
			step += raw.Steps
		}
	case *render != "":
		scenario, err := feed.LoadScenario(*render)
		if err != nil {
			log.Fatalf("scenario invalid: %v", err)
		}
		if err := renderScenario(scenario, *seed); err != nil {
			log.Fatalf("render failed: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// phaseStats accumulates assessments over one scenario phase.
type phaseStats struct {
	name        string
	steps       int
	scoreSum    float64
	maxSeverity float64
	lastBand    schema.RegimeBand
	lastRegime  schema.GuardianRegime
}

func (s phaseStats) print() {
	fmt.Printf("  %-12s steps=%-4d avg_score=%.2f max_severity=%.2f band=%s regime=%s\n",
		s.name, s.steps, s.scoreSum/float64(s.steps), s.maxSeverity,
		bandName(s.lastBand), regimeName(s.lastRegime))
}

// renderScenario drives the synthetic generator through every phase and
// prints the regime assessments the pipeline would see.
func renderScenario(scenario feed.Scenario, seed int64) error {
	loaded := ops.Default()
	gen, err := feed.NewGenerator(loaded.Registry, feed.GeneratorConfig{Seed: seed})
	if err != nil {
		return err
	}
	normalizer := feed.NewNormalizer(loaded.Registry)
	engine := regime.NewEngine(loaded.Regime)
	guardian := regime.NewGuardian(loaded.Guardian)

	fmt.Printf("scenario: %s, %d phases, %d steps, seed=%d\n",
		scenario.Name, len(scenario.Phases), scenario.TotalSteps(), seed)

	now := time.Now()
	var seq uint64
	var stats *phaseStats
	for step := 0; step < scenario.TotalSteps(); step++ {
		phase, _ := scenario.PhaseAt(step)
		if stats == nil || stats.name != phase.Name {
			if stats != nil {
				stats.print()
			}
			stats = &phaseStats{name: phase.Name}
		}
		gen.SetPhase(phase)

		observations := make([]schema.MarketObservation, 0, loaded.Registry.SymbolCount())
		for _, raw := range gen.Next(now) {
			seq++
			_, obs, err := normalizer.Normalize(seq, raw)
			if err != nil {
				return err
			}
			observations = append(observations, obs)
		}

		marketState := regime.StateFromObservations(observations)
		assessment := engine.Evaluate(marketState)
		view := guardian.Assess(marketState)

		stats.steps++
		stats.scoreSum += assessment.Score
		if view.Severity > stats.maxSeverity {
			stats.maxSeverity = view.Severity
		}
		stats.lastBand = assessment.Band
		stats.lastRegime = view.Regime

		now = now.Add(time.Second)
	}
	if stats != nil {
		stats.print()
	}
	return nil
}

func bandName(b schema.RegimeBand) string {
	switch b {
	case schema.BandCalm:
		return "calm"
	case schema.BandTense:
		return "tense"
	case schema.BandFragile:
		return "fragile"
	case schema.BandCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func regimeName(r schema.GuardianRegime) string {
	switch r {
	case schema.RegimeNormal:
		return "normal"
	case schema.RegimeStressed:
		return "stressed"
	case schema.RegimeCrash:
		return "crash"
	default:
		return "unknown"
	}
}
