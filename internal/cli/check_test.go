package cli

import (
	"bytes"
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/store"
	"github.com/wardenlab/warden/internal/wire"
)

const connectorHex = "0x00000000000000000000000000000000000000c0"

func testAddr(b byte) wire.Address {
	var a wire.Address
	a[19] = b
	return a
}

// seedViolatingTx records a borrow that pushes a healthy position
// underwater.
func seedViolatingTx(t *testing.T, dbPath, txID string) {
	t.Helper()
	vault := testAddr(0x10)
	alice := testAddr(0xA1)
	ctx := context.Background()

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.RecordTransaction(ctx, store.TransactionRecord{
		ID:   txID,
		From: alice,
		To:   vault,
		Data: wire.EncodeBorrow(40, alice),
	}))
	require.NoError(t, st.RecordCode(ctx, txID, vault, oracle.Post))
	for snap, liability := range map[oracle.Snapshot]int64{oracle.Pre: 70, oracle.Post: 110} {
		require.NoError(t, st.RecordPrincipalMetric(ctx, txID, vault, alice, snap, oracle.MetricCollateralValue, big.NewInt(100)))
		require.NoError(t, st.RecordPrincipalMetric(ctx, txID, vault, alice, snap, oracle.MetricLiabilityValue, big.NewInt(liability)))
	}
}

// seedCleanTx records a deposit that improves the depositor's
// position.
func seedCleanTx(t *testing.T, dbPath, txID string) {
	t.Helper()
	vault := testAddr(0x10)
	alice := testAddr(0xA1)
	ctx := context.Background()

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.RecordTransaction(ctx, store.TransactionRecord{
		ID:   txID,
		From: alice,
		To:   vault,
		Data: wire.EncodeDeposit(100, alice),
	}))
	require.NoError(t, st.RecordCode(ctx, txID, vault, oracle.Post))
	for snap, collateral := range map[oracle.Snapshot]int64{oracle.Pre: 100, oracle.Post: 200} {
		require.NoError(t, st.RecordPrincipalMetric(ctx, txID, vault, alice, snap, oracle.MetricCollateralValue, big.NewInt(collateral)))
		require.NoError(t, st.RecordPrincipalMetric(ctx, txID, vault, alice, snap, oracle.MetricLiabilityValue, big.NewInt(0)))
	}
}

func runWarden(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckViolatingTransaction(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "warden.db")
	seedViolatingTx(t, dbPath, "tx-1")

	out, err := runWarden(t, "check", "tx-1", "--db", dbPath, "--connector", connectorHex)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL tx-1")
	assert.Contains(t, out, "account-solvency")
}

func TestCheckCleanTransaction(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "warden.db")
	seedCleanTx(t, dbPath, "tx-1")

	out, err := runWarden(t, "check", "tx-1", "--db", dbPath, "--connector", connectorHex)

	require.NoError(t, err)
	assert.Contains(t, out, "ok tx-1")
	assert.Contains(t, out, "0 violation(s)")
}

func TestCheckAllTransactions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "warden.db")
	seedCleanTx(t, dbPath, "tx-a")
	seedViolatingTx(t, dbPath, "tx-b")

	out, err := runWarden(t, "check", "--db", dbPath, "--connector", connectorHex)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "ok tx-a")
	assert.Contains(t, out, "FAIL tx-b")
	assert.Contains(t, out, "Checked 2 transaction(s)")
}

func TestCheckJSONOutput(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "warden.db")
	seedViolatingTx(t, dbPath, "tx-1")

	out, err := runWarden(t, "check", "tx-1", "--db", dbPath, "--connector", connectorHex, "--format", "json")

	require.Error(t, err)
	assert.Contains(t, out, `"status": "error"`)
	assert.Contains(t, out, `"E_VIOLATION"`)
	assert.Contains(t, out, `"account-solvency"`)
}

func TestCheckMissingDatabase(t *testing.T) {
	_, err := runWarden(t, "check", "tx-1",
		"--db", filepath.Join(t.TempDir(), "nope.db"),
		"--connector", connectorHex)

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckUnknownTransaction(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "warden.db")
	seedCleanTx(t, dbPath, "tx-1")

	out, err := runWarden(t, "check", "tx-missing", "--db", dbPath, "--connector", connectorHex)

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "not recorded")
}

func TestCheckRequiresConnectorOrConfig(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "warden.db")
	seedCleanTx(t, dbPath, "tx-1")

	_, err := runWarden(t, "check", "tx-1", "--db", dbPath)

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--config or --connector")
}
