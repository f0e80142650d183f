package stress

import (
	"fmt"
	"math/rand"
	"time"

	"main/internal/feed"
)

// ShockKind identifies a class of injected market shock.
type ShockKind uint8

const (
	ShockVolSpike ShockKind = iota
	ShockLiquidityFreeze
	ShockDrawdown
	ShockFlowRush
	shockKindCount
)

// String returns a stable name for logs.
func (k ShockKind) String() string {
	switch k {
	case ShockVolSpike:
		return "vol_spike"
	case ShockLiquidityFreeze:
		return "liquidity_freeze"
	case ShockDrawdown:
		return "drawdown"
	case ShockFlowRush:
		return "flow_rush"
	default:
		return "unknown"
	}
}

// Config controls shock injection behavior.
type Config struct {
	Seed         int64
	ShockRate    float64
	MinDuration  int
	MaxDuration  int
	VolFactor    float64
	DepthFactor  float64
	DrawdownJump float64
	FlowPush     float64
}

// Injector overlays scripted market shocks on raw observations.
type Injector struct {
	cfg    Config
	rng    *rand.Rand
	active map[ShockKind]int
}

// NewInjector creates an injector with validation.
func NewInjector(cfg Config) (*Injector, error) {
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = 5
	}
	if cfg.MaxDuration < cfg.MinDuration {
		cfg.MaxDuration = cfg.MinDuration
	}
	if cfg.VolFactor <= 0 {
		cfg.VolFactor = 4.0
	}
	if cfg.DepthFactor <= 0 {
		cfg.DepthFactor = 0.05
	}
	if cfg.DrawdownJump <= 0 {
		cfg.DrawdownJump = 0.12
	}
	if cfg.FlowPush == 0 {
		cfg.FlowPush = -0.8
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Injector{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		active: make(map[ShockKind]int),
	}, nil
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.ShockRate < 0 || c.ShockRate > 1 {
		return fmt.Errorf("shockRate must be between 0 and 1")
	}
	if c.MinDuration <= 0 {
		return fmt.Errorf("minDuration must be >= 1")
	}
	if c.MaxDuration < c.MinDuration {
		return fmt.Errorf("maxDuration must be >= minDuration")
	}
	return nil
}

// Advance moves the injector one step: expires running shocks and
// rolls for a new one.
func (i *Injector) Advance() {
	if i == nil {
		return
	}
	for kind, remaining := range i.active {
		if remaining <= 1 {
			delete(i.active, kind)
			continue
		}
		i.active[kind] = remaining - 1
	}
	if i.cfg.ShockRate <= 0 || i.rng.Float64() >= i.cfg.ShockRate {
		return
	}
	kind := ShockKind(i.rng.Intn(int(shockKindCount)))
	if _, running := i.active[kind]; running {
		return
	}
	span := i.cfg.MinDuration
	if i.cfg.MaxDuration > i.cfg.MinDuration {
		span += i.rng.Intn(i.cfg.MaxDuration - i.cfg.MinDuration + 1)
	}
	i.active[kind] = span
}

// Trigger force-starts a shock for a fixed number of steps.
func (i *Injector) Trigger(kind ShockKind, steps int) {
	if i == nil || steps <= 0 {
		return
	}
	i.active[kind] = steps
}

// Active reports the currently running shocks.
func (i *Injector) Active() []ShockKind {
	if i == nil || len(i.active) == 0 {
		return nil
	}
	out := make([]ShockKind, 0, len(i.active))
	for kind := range i.active {
		out = append(out, kind)
	}
	return out
}

// Process applies the running shocks to one observation.
func (i *Injector) Process(obs feed.RawObservation) feed.RawObservation {
	if i == nil || len(i.active) == 0 {
		return obs
	}
	if _, ok := i.active[ShockVolSpike]; ok {
		obs.VolRealized *= i.cfg.VolFactor
		obs.VolTrend += obs.VolRealized * 0.5
		obs.TailRisk = clamp01(obs.TailRisk + 0.3)
	}
	if _, ok := i.active[ShockLiquidityFreeze]; ok {
		obs.Depth *= i.cfg.DepthFactor
		obs.Spread *= 6
		obs.ImpactCost *= 10
		obs.Elasticity *= 0.2
	}
	if _, ok := i.active[ShockDrawdown]; ok {
		obs.Drawdown = clamp01(obs.Drawdown + i.cfg.DrawdownJump)
		obs.RecoverySpeed = clamp01(obs.RecoverySpeed - 0.5)
		obs.TailRisk = clamp01(obs.TailRisk + 0.2)
	}
	if _, ok := i.active[ShockFlowRush]; ok {
		obs.FlowPressure = clampSigned(obs.FlowPressure + i.cfg.FlowPush)
		obs.NetInflow += i.cfg.FlowPush * obs.Depth
		obs.Crowding = clamp01(obs.Crowding + 0.25)
	}
	return obs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampSigned(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
