package ruleset

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlab/warden/internal/wire"
)

const testConnector = "0x00000000000000000000000000000000000000c0"

func compile(t *testing.T, src string) (*Config, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileConfig(v.LookupPath(cue.ParsePath("warden")))
}

func TestCompileConfigBasic(t *testing.T) {
	cfg, err := compile(t, `
		warden: {
			connector: "0x00000000000000000000000000000000000000c0"

			rules: {
				rate_stability: {
					enabled:   true
					drift_bps: 250
				}
				resource_accounting: {
					enabled:   true
					tolerance: "1000000000000000000"
				}
			}
		}
	`)
	require.NoError(t, err)

	assert.Equal(t, wire.MustParseAddress(testConnector), cfg.Connector)
	assert.Equal(t, int64(250), cfg.RateStability.DriftBps)
	assert.Equal(t, big.NewInt(1_000_000_000_000_000_000), cfg.Accounting.Tolerance)

	// Rules not mentioned keep their defaults.
	assert.True(t, cfg.Solvency.Enabled)
	assert.True(t, cfg.StatusCheckOffload.Enabled)
	assert.True(t, cfg.TransferAccounting.Enabled)
}

func TestCompileConfigBoolShorthand(t *testing.T) {
	cfg, err := compile(t, `
		warden: {
			connector: "0x00000000000000000000000000000000000000c0"
			rules: {
				transfer_accounting: false
				account_solvency:    true
			}
		}
	`)
	require.NoError(t, err)

	assert.False(t, cfg.TransferAccounting.Enabled)
	assert.True(t, cfg.Solvency.Enabled)
}

func TestCompileConfigMissingConnector(t *testing.T) {
	_, err := compile(t, `
		warden: {
			rules: account_solvency: true
		}
	`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connector")
	assert.Contains(t, err.Error(), "required")
}

func TestCompileConfigBadConnector(t *testing.T) {
	_, err := compile(t, `
		warden: connector: "0x1234"
	`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connector")
}

func TestCompileConfigUnknownRule(t *testing.T) {
	_, err := compile(t, `
		warden: {
			connector: "0x00000000000000000000000000000000000000c0"
			rules: rate_stabillity: enabled: true
		}
	`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rule")
	assert.Contains(t, err.Error(), "rate_stabillity")
}

func TestCompileConfigNegativeDrift(t *testing.T) {
	_, err := compile(t, `
		warden: {
			connector: "0x00000000000000000000000000000000000000c0"
			rules: rate_stability: drift_bps: -1
		}
	`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "drift_bps")
}

func TestCompileConfigBadTolerance(t *testing.T) {
	_, err := compile(t, `
		warden: {
			connector: "0x00000000000000000000000000000000000000c0"
			rules: resource_accounting: tolerance: "not a number"
		}
	`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "tolerance")
}

func TestDefaultBuildsEveryRule(t *testing.T) {
	cfg := Default()
	cfg.Connector = wire.MustParseAddress(testConnector)

	set := cfg.Build()
	require.Len(t, set, 5)

	names := make([]string, len(set))
	for i, r := range set {
		names[i] = r.Name()
	}
	assert.Equal(t, []string{
		"account-solvency",
		"rate-stability",
		"resource-accounting",
		"status-check-offload",
		"transfer-accounting",
	}, names)
}

func TestBuildSkipsDisabledRules(t *testing.T) {
	cfg := Default()
	cfg.Connector = wire.MustParseAddress(testConnector)
	cfg.RateStability.Enabled = false
	cfg.TransferAccounting.Enabled = false

	set := cfg.Build()
	require.Len(t, set, 3)
	for _, r := range set {
		assert.NotEqual(t, "rate-stability", r.Name())
		assert.NotEqual(t, "transfer-accounting", r.Name())
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	src := `
warden: {
	connector: "0x00000000000000000000000000000000000000c0"
	rules: rate_stability: drift_bps: 100
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "warden.cue"), []byte(src), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(100), cfg.RateStability.DriftBps)
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadEmptyDirectory(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files")
}
