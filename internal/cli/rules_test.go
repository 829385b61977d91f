package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRulesCommandDefaults(t *testing.T) {
	out, err := runWarden(t, "rules", "--connector", connectorHex)
	require.NoError(t, err)

	assert.Contains(t, out, "connector: "+connectorHex)
	assert.Contains(t, out, "account-solvency")
	assert.Contains(t, out, "drift_bps=500")
	assert.Contains(t, out, "tolerance=0")
}

func TestRulesCommandFromConfig(t *testing.T) {
	dir := t.TempDir()
	config := `
warden: {
	connector: "0x00000000000000000000000000000000000000c0"
	rules: {
		rate_stability: drift_bps: 250
		transfer_accounting: false
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "warden.cue"), []byte(config), 0o644))

	out, err := runWarden(t, "rules", "--config", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "drift_bps=250")
	assert.Contains(t, out, "disabled")
}

func TestRulesCommandJSON(t *testing.T) {
	out, err := runWarden(t, "rules", "--connector", connectorHex, "--format", "json")
	require.NoError(t, err)

	assert.Contains(t, out, `"status": "ok"`)
	assert.Contains(t, out, `"rate-stability"`)
	assert.Contains(t, out, `"drift_bps=500"`)
}

func TestRulesCommandRequiresConnectorOrConfig(t *testing.T) {
	_, err := runWarden(t, "rules")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
