package runner

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/rules"
	"github.com/wardenlab/warden/internal/wire"
)

func testAddr(b byte) wire.Address {
	var a wire.Address
	a[19] = b
	return a
}

var (
	connector = testAddr(0xC0)
	vaultA    = testAddr(0x10)
	vaultB    = testAddr(0x11)
	alice     = testAddr(0xA1)
)

func allRules() []rules.Rule {
	return []rules.Rule{
		rules.NewSolvency(),
		rules.NewAccounting(nil),
		rules.NewRateStability(rules.DefaultRateDriftBps),
		rules.NewStatusCheckOffload(connector),
		rules.NewTransferAccounting(),
	}
}

func newRunner(fix *oracle.Fixture) *Runner {
	return New(fix, wire.DefaultRegistry(), connector, allRules(),
		WithTokenGenerator(FixedGenerator{Token: "run-fixed"}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func setPosition(fix *oracle.Fixture, resource, principal wire.Address, snap oracle.Snapshot, collateral, liability int64) {
	fix.SetPrincipalMetric(resource, principal, snap, oracle.MetricCollateralValue, collateral)
	fix.SetPrincipalMetric(resource, principal, snap, oracle.MetricLiabilityValue, liability)
}

func TestVerify_CleanTransaction(t *testing.T) {
	fix := oracle.NewFixture().SetCode(vaultA)
	setPosition(fix, vaultA, alice, oracle.Pre, 100, 0)
	setPosition(fix, vaultA, alice, oracle.Post, 200, 0)

	report, err := newRunner(fix).Verify(context.Background(), Transaction{
		From: alice,
		To:   vaultA,
		Data: wire.EncodeDeposit(100, alice),
	})

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, "run-fixed", report.RunID)
	assert.Equal(t, 1, report.Leaves)
	assert.Equal(t, 1, report.Entries)
}

func TestVerify_BorrowBeyondCollateral(t *testing.T) {
	fix := oracle.NewFixture().SetCode(vaultA)
	setPosition(fix, vaultA, alice, oracle.Pre, 100, 70)
	setPosition(fix, vaultA, alice, oracle.Post, 100, 110)

	report, err := newRunner(fix).Verify(context.Background(), Transaction{
		From: alice,
		To:   vaultA,
		Data: wire.EncodeBorrow(40, alice),
	})

	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "account-solvency", report.Violations[0].Rule)
	assert.False(t, report.OK())
}

// A batch touching only vaultA still validates alice's standing as
// seen from her controller vaultB.
func TestVerify_ControllerReach(t *testing.T) {
	fix := oracle.NewFixture().
		SetCode(vaultA).
		SetControllers(alice, oracle.Post, vaultB)
	setPosition(fix, vaultA, alice, oracle.Pre, 100, 0)
	setPosition(fix, vaultA, alice, oracle.Post, 100, 0)
	setPosition(fix, vaultB, alice, oracle.Pre, 100, 70)
	setPosition(fix, vaultB, alice, oracle.Post, 100, 120)

	payload := wire.EncodeBatch([]wire.BatchItem{
		{Target: vaultA, OnBehalf: alice, Data: wire.EncodeWithdraw(50, alice, alice)},
	})

	report, err := newRunner(fix).Verify(context.Background(), Transaction{
		From: alice,
		To:   connector,
		Data: payload,
	})

	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, vaultB, report.Violations[0].Resource)
}

// Violations from independent rules are all surfaced, sorted by rule
// name for determinism.
func TestVerify_MultipleRulesAllSurfaced(t *testing.T) {
	fix := oracle.NewFixture().SetCode(vaultA)
	setPosition(fix, vaultA, alice, oracle.Pre, 100, 70)
	setPosition(fix, vaultA, alice, oracle.Post, 100, 110)
	fix.SetMetric(connector, oracle.Post, oracle.MetricDeferredChecks, 1)

	report, err := newRunner(fix).Verify(context.Background(), Transaction{
		From: alice,
		To:   vaultA,
		Data: wire.EncodeBorrow(40, alice),
	})

	require.NoError(t, err)
	require.Len(t, report.Violations, 2)
	assert.Equal(t, "account-solvency", report.Violations[0].Rule)
	assert.Equal(t, "status-check-offload", report.Violations[1].Rule)
}

func TestVerify_DeterministicAcrossRuns(t *testing.T) {
	fix := oracle.NewFixture().SetCode(vaultA)
	setPosition(fix, vaultA, alice, oracle.Pre, 100, 70)
	setPosition(fix, vaultA, alice, oracle.Post, 100, 110)

	tx := Transaction{From: alice, To: vaultA, Data: wire.EncodeBorrow(40, alice)}

	first, err := newRunner(fix).Verify(context.Background(), tx)
	require.NoError(t, err)
	second, err := newRunner(fix).Verify(context.Background(), tx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestUUIDv7Generator(t *testing.T) {
	token := UUIDv7Generator{}.Generate()

	parsed, err := uuid.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}
