package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cleanScenario = `
name: deposit-clean
description: a clean deposit
connector: "0x00000000000000000000000000000000000000c0"
transaction:
  from: "0x00000000000000000000000000000000000000a1"
  calls:
    - op: deposit
      target: "0x0000000000000000000000000000000000000010"
      assets: 100
positions:
  - resource: "0x0000000000000000000000000000000000000010"
    principal: "0x00000000000000000000000000000000000000a1"
    snapshot: pre
    collateral: "100"
    liability: "0"
  - resource: "0x0000000000000000000000000000000000000010"
    principal: "0x00000000000000000000000000000000000000a1"
    snapshot: post
    collateral: "200"
    liability: "0"
`

func writeScenarioDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deposit-clean.yaml"), []byte(cleanScenario), 0o644))
	return dir
}

func TestTestCommandUpdateThenPass(t *testing.T) {
	dir := writeScenarioDir(t)

	out, err := runWarden(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")
	assert.FileExists(t, filepath.Join(dir, "golden", "deposit-clean.golden"))

	out, err = runWarden(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "ok deposit-clean")
	assert.Contains(t, out, "1 passed, 0 failed")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := writeScenarioDir(t)

	_, err := runWarden(t, "test", dir, "--update")
	require.NoError(t, err)

	goldenPath := filepath.Join(dir, "golden", "deposit-clean.golden")
	require.NoError(t, os.WriteFile(goldenPath, []byte("tampered"), 0o644))

	out, err := runWarden(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL deposit-clean")
	assert.Contains(t, out, "does not match golden")
}

func TestTestCommandNoGoldenIsInformational(t *testing.T) {
	dir := writeScenarioDir(t)

	out, err := runWarden(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "no golden file")
}

func TestTestCommandFilter(t *testing.T) {
	dir := writeScenarioDir(t)

	out, err := runWarden(t, "test", dir, "--filter", "no-such-*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandMissingDirectory(t *testing.T) {
	_, err := runWarden(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandBadScenarioFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0o644))

	out, err := runWarden(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "load error")
}
