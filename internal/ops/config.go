package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/internal/authority"
	"main/internal/feed"
	"main/internal/overlay"
	"main/internal/regime"
	"main/internal/router"
	"main/internal/schema"
	"main/internal/stress"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Registry  RegistryConfig            `json:"registry"`
	Regime    regime.Config             `json:"regime"`
	Guardian  regime.GuardianThresholds `json:"guardian"`
	Router    router.Config             `json:"router"`
	Overlay   OverlayConfig             `json:"overlay"`
	Authority AuthorityConfig           `json:"authority"`
	Feed      feed.GeneratorConfig      `json:"feed"`
	Stress    stress.Config             `json:"stress"`
	Account   AccountConfig             `json:"account"`
	Store     StoreConfig               `json:"store"`
	Features  FeatureFlagsConfig        `json:"features"`
}

// RegistryConfig defines symbol and persona mappings.
type RegistryConfig struct {
	Symbols  []SymbolConfig  `json:"symbols"`
	Personas []PersonaConfig `json:"personas"`
}

// SymbolConfig describes a symbol entry.
type SymbolConfig struct {
	Name string `json:"name"`
}

// PersonaConfig describes a persona entry and its base routing weight.
type PersonaConfig struct {
	Name       string  `json:"name"`
	BaseWeight float64 `json:"baseWeight"`
}

// OverlayConfig mirrors the overlay settings with a portable lock window.
type OverlayConfig struct {
	RiskSoft           float64 `json:"riskSoft"`
	RiskMedium         float64 `json:"riskMedium"`
	RiskHard           float64 `json:"riskHard"`
	CutLow             float64 `json:"cutLow"`
	CutMid             float64 `json:"cutMid"`
	CutHigh            float64 `json:"cutHigh"`
	SanctionFlatten    *bool   `json:"sanctionFlatten"`
	LockWindowMs       int64   `json:"lockWindowMs"`
	ViolationDecayRate float64 `json:"violationDecayRate"`
	ViolationMedium    float64 `json:"violationMedium"`
	ViolationHard      float64 `json:"violationHard"`
	KillSwitch         bool    `json:"killSwitch"`
}

// AuthorityConfig describes the commit authority. SecretEnv names an
// environment variable holding the signing secret; the inline Secret is
// a development fallback only.
type AuthorityConfig struct {
	SecretEnv     string `json:"secretEnv"`
	Secret        string `json:"secret"`
	ActorID       string `json:"actorId"`
	PubKey        string `json:"pubKey"`
	KeyID         string `json:"keyId"`
	PolicyVersion string `json:"policyVersion"`
}

// AccountConfig describes the simulated account.
type AccountConfig struct {
	Equity float64 `json:"equity"`
}

// StoreConfig describes the optional decision-log database.
type StoreConfig struct {
	DSN string `json:"dsn"`
}

// FeatureFlagsConfig captures optional runtime flags.
type FeatureFlagsConfig struct {
	EnableStress  *bool `json:"enableStress"`
	EnableJournal *bool `json:"enableJournal"`
	EnableStore   *bool `json:"enableStore"`
}

// FeatureFlags are resolved runtime flags.
type FeatureFlags struct {
	EnableStress  bool
	EnableJournal bool
	EnableStore   bool
}

// IdentitySpec is the signing identity anchored in config.
type IdentitySpec struct {
	PubKey string
	KeyID  string
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Registry *schema.Registry
	Regime   regime.Config
	Guardian regime.GuardianThresholds
	Router   router.Config
	Overlay  overlay.Config
	Policy   authority.Policy
	Secret   []byte
	Identity IdentitySpec
	Feed     feed.GeneratorConfig
	Stress   stress.Config
	Equity   float64
	StoreDSN string
	Features FeatureFlags
}

// Load reads a JSON config file and resolves every component config.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return resolve(cfg)
}

// Default returns a runnable baseline configuration.
func Default() Loaded {
	loaded, err := resolve(FileConfig{})
	if err != nil {
		// resolve only fails on malformed registry entries, and the
		// empty config falls back to the built-in registry.
		panic(err)
	}
	return loaded
}

// LoadRegistry reads a JSON config file and only builds the registry.
func LoadRegistry(path string) (*schema.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return buildRegistry(cfg.Registry)
}

func resolve(cfg FileConfig) (Loaded, error) {
	registry, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	policy, secret, identity, err := resolveAuthority(cfg.Authority)
	if err != nil {
		return Loaded{}, err
	}
	equity := cfg.Account.Equity
	if equity <= 0 {
		equity = 1_000_000
	}
	return Loaded{
		Registry: registry,
		Regime:   cfg.Regime,
		Guardian: resolveGuardian(cfg.Guardian),
		Router:   cfg.Router,
		Overlay:  resolveOverlay(cfg.Overlay),
		Policy:   policy,
		Secret:   secret,
		Identity: identity,
		Feed:     cfg.Feed,
		Stress:   cfg.Stress,
		Equity:   equity,
		StoreDSN: cfg.Store.DSN,
		Features: resolveFeatures(cfg.Features),
	}, nil
}

func buildRegistry(cfg RegistryConfig) (*schema.Registry, error) {
	symbols := cfg.Symbols
	if len(symbols) == 0 {
		symbols = defaultSymbols()
	}
	personas := cfg.Personas
	if len(personas) == 0 {
		personas = defaultPersonas()
	}
	reg := schema.NewRegistry()
	for _, sym := range symbols {
		if _, err := reg.AddSymbol(sym.Name); err != nil {
			return nil, err
		}
	}
	for _, p := range personas {
		if p.BaseWeight <= 0 {
			return nil, fmt.Errorf("persona %s: baseWeight must be > 0", p.Name)
		}
		if _, err := reg.AddPersona(p.Name, schema.RatioFromFloat(p.BaseWeight)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func defaultSymbols() []SymbolConfig {
	return []SymbolConfig{
		{Name: "EQ-CORE"},
		{Name: "EQ-GROWTH"},
		{Name: "RATES"},
		{Name: "CMDTY"},
	}
}

func defaultPersonas() []PersonaConfig {
	return []PersonaConfig{
		{Name: "alpha", BaseWeight: 1.0},
		{Name: "guardian", BaseWeight: 2.0},
		{Name: "liquidity", BaseWeight: 1.4},
		{Name: "convexity", BaseWeight: 1.2},
	}
}

func resolveGuardian(cfg regime.GuardianThresholds) regime.GuardianThresholds {
	if cfg == (regime.GuardianThresholds{}) {
		return regime.DefaultGuardianThresholds()
	}
	return cfg
}

func resolveOverlay(cfg OverlayConfig) overlay.Config {
	out := overlay.DefaultConfig()
	if cfg.RiskSoft > 0 {
		out.RiskSoft = cfg.RiskSoft
	}
	if cfg.RiskMedium > 0 {
		out.RiskMedium = cfg.RiskMedium
	}
	if cfg.RiskHard > 0 {
		out.RiskHard = cfg.RiskHard
	}
	if cfg.CutLow > 0 {
		out.CutLow = cfg.CutLow
	}
	if cfg.CutMid > 0 {
		out.CutMid = cfg.CutMid
	}
	if cfg.CutHigh > 0 {
		out.CutHigh = cfg.CutHigh
	}
	if cfg.SanctionFlatten != nil {
		out.SanctionFlatten = *cfg.SanctionFlatten
	}
	if cfg.LockWindowMs > 0 {
		out.LockWindow = time.Duration(cfg.LockWindowMs) * time.Millisecond
	}
	if cfg.ViolationDecayRate > 0 {
		out.ViolationDecayRate = cfg.ViolationDecayRate
	}
	if cfg.ViolationMedium > 0 {
		out.ViolationMedium = cfg.ViolationMedium
	}
	if cfg.ViolationHard > 0 {
		out.ViolationHard = cfg.ViolationHard
	}
	out.KillSwitch = cfg.KillSwitch
	return out
}

func resolveAuthority(cfg AuthorityConfig) (authority.Policy, []byte, IdentitySpec, error) {
	policy := authority.DefaultPolicy()
	if cfg.ActorID != "" {
		policy.AlphaActorID = cfg.ActorID
	}
	if cfg.PolicyVersion != "" {
		policy.Version = cfg.PolicyVersion
	}
	secret := cfg.Secret
	if cfg.SecretEnv != "" {
		secret = os.Getenv(cfg.SecretEnv)
		if secret == "" {
			return authority.Policy{}, nil, IdentitySpec{}, fmt.Errorf("authority.secretEnv: environment variable %s is empty", cfg.SecretEnv)
		}
	}
	if secret == "" {
		secret = "fde-dev-secret"
	}
	identity := IdentitySpec{PubKey: cfg.PubKey, KeyID: cfg.KeyID}
	if identity.PubKey == "" && identity.KeyID == "" {
		identity.KeyID = "fde-dev-key"
	}
	return policy, []byte(secret), identity, nil
}

func resolveFeatures(cfg FeatureFlagsConfig) FeatureFlags {
	flags := FeatureFlags{
		EnableStress:  false,
		EnableJournal: true,
		EnableStore:   false,
	}
	if cfg.EnableStress != nil {
		flags.EnableStress = *cfg.EnableStress
	}
	if cfg.EnableJournal != nil {
		flags.EnableJournal = *cfg.EnableJournal
	}
	if cfg.EnableStore != nil {
		flags.EnableStore = *cfg.EnableStore
	}
	return flags
}
