package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsRunnable(t *testing.T) {
	loaded := Default()

	assert.Equal(t, 4, loaded.Registry.SymbolCount())
	assert.Equal(t, 4, loaded.Registry.PersonaCount())
	assert.Equal(t, "ALPHA", loaded.Policy.AlphaActorID)
	assert.Equal(t, []byte("fde-dev-secret"), loaded.Secret)
	assert.Equal(t, "fde-dev-key", loaded.Identity.KeyID)
	assert.Equal(t, 1_000_000.0, loaded.Equity)
	assert.True(t, loaded.Features.EnableJournal)
	assert.False(t, loaded.Features.EnableStress)
	assert.Equal(t, 0.2, loaded.Overlay.RiskSoft)
	assert.True(t, loaded.Overlay.SanctionFlatten)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `{
		"registry": {
			"symbols": [{"name": "BTC"}, {"name": "ETH"}],
			"personas": [
				{"name": "alpha", "baseWeight": 1.0},
				{"name": "guardian", "baseWeight": 3.0}
			]
		},
		"overlay": {"riskHard": 0.8, "lockWindowMs": 250, "sanctionFlatten": false, "killSwitch": true},
		"authority": {"secret": "prod-secret", "actorId": "SOVEREIGN", "pubKey": "pk-1"},
		"account": {"equity": 5000000},
		"store": {"dsn": "postgres://localhost/fde"},
		"features": {"enableStress": true, "enableJournal": false}
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, loaded.Registry.SymbolCount())
	_, ok := loaded.Registry.SymbolIDByName("BTC")
	assert.True(t, ok)
	assert.Equal(t, 2, loaded.Registry.PersonaCount())

	assert.Equal(t, 0.8, loaded.Overlay.RiskHard)
	assert.Equal(t, 250*time.Millisecond, loaded.Overlay.LockWindow)
	assert.False(t, loaded.Overlay.SanctionFlatten)
	assert.True(t, loaded.Overlay.KillSwitch)
	// untouched fields keep their defaults
	assert.Equal(t, 0.45, loaded.Overlay.RiskMedium)

	assert.Equal(t, "SOVEREIGN", loaded.Policy.AlphaActorID)
	assert.Equal(t, []byte("prod-secret"), loaded.Secret)
	assert.Equal(t, "pk-1", loaded.Identity.PubKey)
	assert.Empty(t, loaded.Identity.KeyID)

	assert.Equal(t, 5_000_000.0, loaded.Equity)
	assert.Equal(t, "postgres://localhost/fde", loaded.StoreDSN)
	assert.True(t, loaded.Features.EnableStress)
	assert.False(t, loaded.Features.EnableJournal)
}

func TestLoadRejectsBadPersonaWeight(t *testing.T) {
	path := writeConfigFile(t, `{
		"registry": {"personas": [{"name": "alpha", "baseWeight": 0}]}
	}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsDuplicateSymbol(t *testing.T) {
	path := writeConfigFile(t, `{
		"registry": {"symbols": [{"name": "BTC"}, {"name": "BTC"}]}
	}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeConfigFile(t, `{`)
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadRegistryOnly(t *testing.T) {
	path := writeConfigFile(t, `{
		"registry": {"symbols": [{"name": "FX"}]}
	}`)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.SymbolCount())
	// personas still fall back to the built-in set
	assert.Equal(t, 4, reg.PersonaCount())
}

func TestSecretResolvedFromEnv(t *testing.T) {
	t.Setenv("FDE_TEST_SECRET", "prod-secret-from-env")
	path := writeConfigFile(t, `{
		"authority": {"secretEnv": "FDE_TEST_SECRET", "secret": "inline-ignored"}
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)
	// the env ref wins over the inline development secret
	assert.Equal(t, []byte("prod-secret-from-env"), loaded.Secret)
}

func TestSecretEnvUnsetIsRejected(t *testing.T) {
	path := writeConfigFile(t, `{
		"authority": {"secretEnv": "FDE_TEST_SECRET_UNSET"}
	}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FDE_TEST_SECRET_UNSET")
}

func TestGuardianThresholdsPassThrough(t *testing.T) {
	path := writeConfigFile(t, `{
		"guardian": {"maxVolatilityBaseline": 0.05, "crashDrawdown": 0.5, "volatilityShockScale": 0.1,
			"maxDrawdown": 0.2, "maxFlowPressure": 2, "liquidityBaseline": 0.5,
			"liquidityShockScale": 0.3, "liquidityFreezeLevel": 0.1, "crashVolatility": 0.25}
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.05, loaded.Guardian.MaxVolatilityBaseline)
	assert.Equal(t, 0.5, loaded.Guardian.CrashDrawdown)
}
