package rules

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlab/warden/internal/affect"
	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/wire"
)

func testAddr(b byte) wire.Address {
	var a wire.Address
	a[19] = b
	return a
}

var (
	vaultA = testAddr(0x10)
	vaultB = testAddr(0x11)
	alice  = testAddr(0xA1)
)

func newEnv(t *testing.T, fix *oracle.Fixture, entries []affect.Entry) *Env {
	t.Helper()
	log, err := fix.Events(context.Background())
	require.NoError(t, err)
	return &Env{
		Oracle:  fix,
		Log:     log,
		Entries: entries,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func entryFor(resource, principal wire.Address) []affect.Entry {
	return []affect.Entry{{Resource: resource, Principal: principal}}
}

// setPosition records collateral and liability at one snapshot via the
// metric fallback path (no direct health oracle).
func setPosition(fix *oracle.Fixture, resource, principal wire.Address, snap oracle.Snapshot, collateral, liability int64) {
	fix.SetPrincipalMetric(resource, principal, snap, oracle.MetricCollateralValue, collateral)
	fix.SetPrincipalMetric(resource, principal, snap, oracle.MetricLiabilityValue, liability)
}

// Healthy pre, borrow pushes liability past collateral: violation.
func TestSolvency_GoodToBadViolates(t *testing.T) {
	fix := oracle.NewFixture()
	setPosition(fix, vaultA, alice, oracle.Pre, 100, 70)
	setPosition(fix, vaultA, alice, oracle.Post, 100, 110)

	got := NewSolvency().Evaluate(context.Background(), newEnv(t, fix, entryFor(vaultA, alice)))

	require.Len(t, got, 1)
	assert.Equal(t, "account-solvency", got[0].Rule)
	assert.Equal(t, vaultA, got[0].Resource)
	assert.Equal(t, alice, got[0].Principal)
	assert.Contains(t, got[0].Reason, "healthy before")
}

// Same borrow, but liability stays under collateral: pass.
func TestSolvency_GoodToGoodPasses(t *testing.T) {
	fix := oracle.NewFixture()
	setPosition(fix, vaultA, alice, oracle.Pre, 100, 70)
	setPosition(fix, vaultA, alice, oracle.Post, 100, 90)

	got := NewSolvency().Evaluate(context.Background(), newEnv(t, fix, entryFor(vaultA, alice)))

	assert.Empty(t, got)
}

// Already-bad entries are never ratcheted: an unhealthy pre-state
// passes regardless of the post state.
func TestSolvency_AlreadyBadStaysAllowed(t *testing.T) {
	testCases := []struct {
		name                     string
		postCollateral, postLiab int64
	}{
		{"stays unhealthy", 50, 90},
		{"gets worse", 50, 500},
		{"recovers to healthy", 100, 80},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fix := oracle.NewFixture()
			setPosition(fix, vaultA, alice, oracle.Pre, 50, 80)
			setPosition(fix, vaultA, alice, oracle.Post, tc.postCollateral, tc.postLiab)

			got := NewSolvency().Evaluate(context.Background(), newEnv(t, fix, entryFor(vaultA, alice)))
			assert.Empty(t, got)
		})
	}
}

// A debt-socialization event emitted by the resource legitimizes the
// good-to-bad transition.
func TestSolvency_DebtSocializationException(t *testing.T) {
	fix := oracle.NewFixture()
	setPosition(fix, vaultA, alice, oracle.Pre, 100, 70)
	setPosition(fix, vaultA, alice, oracle.Post, 100, 110)
	fix.Emit(vaultA, SigDebtSocialized)

	got := NewSolvency().Evaluate(context.Background(), newEnv(t, fix, entryFor(vaultA, alice)))

	assert.Empty(t, got)
}

// The exception only counts when the affected resource emitted it.
func TestSolvency_ExceptionFromOtherEmitterIgnored(t *testing.T) {
	fix := oracle.NewFixture()
	setPosition(fix, vaultA, alice, oracle.Pre, 100, 70)
	setPosition(fix, vaultA, alice, oracle.Post, 100, 110)
	fix.Emit(vaultB, SigDebtSocialized)

	got := NewSolvency().Evaluate(context.Background(), newEnv(t, fix, entryFor(vaultA, alice)))

	require.Len(t, got, 1)
}

// Direct health oracle is preferred over the metric fallback.
func TestSolvency_DirectHealthOracle(t *testing.T) {
	fix := oracle.NewFixture().
		SetHealth(vaultA, alice, oracle.Pre, oracle.Healthy).
		SetHealth(vaultA, alice, oracle.Post, oracle.Unhealthy)

	got := NewSolvency().Evaluate(context.Background(), newEnv(t, fix, entryFor(vaultA, alice)))

	require.Len(t, got, 1)
}

// Zero collateral and zero liability is Healthy by convention, so an
// empty position that stays empty never violates.
func TestSolvency_EmptyPositionHealthyByConvention(t *testing.T) {
	fix := oracle.NewFixture()
	setPosition(fix, vaultA, alice, oracle.Pre, 0, 0)
	setPosition(fix, vaultA, alice, oracle.Post, 0, 0)

	got := NewSolvency().Evaluate(context.Background(), newEnv(t, fix, entryFor(vaultA, alice)))

	assert.Empty(t, got)
}

// An empty pre-position that ends up underwater does violate: the
// empty position counted as healthy.
func TestSolvency_EmptyToUnderwaterViolates(t *testing.T) {
	fix := oracle.NewFixture()
	setPosition(fix, vaultA, alice, oracle.Pre, 0, 0)
	setPosition(fix, vaultA, alice, oracle.Post, 100, 150)

	got := NewSolvency().Evaluate(context.Background(), newEnv(t, fix, entryFor(vaultA, alice)))

	require.Len(t, got, 1)
}

// A resource with no health support at all is inapplicable: pass.
func TestSolvency_InapplicableResourceSkipped(t *testing.T) {
	fix := oracle.NewFixture()

	got := NewSolvency().Evaluate(context.Background(), newEnv(t, fix, entryFor(vaultA, alice)))

	assert.Empty(t, got)
}

// A resource whose health query fails (rather than being
// inapplicable) is treated as unhealthy at post: failing loudly must
// not dodge validation.
func TestSolvency_FailedPostHealthQueryViolates(t *testing.T) {
	fix := oracle.NewFixture().
		SetHealth(vaultA, alice, oracle.Pre, oracle.Healthy).
		FailHealth(vaultA, alice, oracle.Post, errors.New("refused to answer"))

	got := NewSolvency().Evaluate(context.Background(), newEnv(t, fix, entryFor(vaultA, alice)))

	require.Len(t, got, 1)
}

// A failed PRE health query treats the pre state as unhealthy, which
// means already-bad: pass, never violate on ambiguity.
func TestSolvency_FailedPreHealthQueryPasses(t *testing.T) {
	fix := oracle.NewFixture().
		FailHealth(vaultA, alice, oracle.Pre, errors.New("refused to answer")).
		SetHealth(vaultA, alice, oracle.Post, oracle.Unhealthy)

	got := NewSolvency().Evaluate(context.Background(), newEnv(t, fix, entryFor(vaultA, alice)))

	assert.Empty(t, got)
}

// Each worklist entry is independent: one violating entry does not
// short-circuit the rest.
func TestSolvency_EntriesIndependent(t *testing.T) {
	bob := testAddr(0xB0)
	fix := oracle.NewFixture()
	setPosition(fix, vaultA, alice, oracle.Pre, 100, 70)
	setPosition(fix, vaultA, alice, oracle.Post, 100, 110)
	setPosition(fix, vaultA, bob, oracle.Pre, 100, 70)
	setPosition(fix, vaultA, bob, oracle.Post, 100, 120)

	entries := []affect.Entry{
		{Resource: vaultA, Principal: alice},
		{Resource: vaultA, Principal: bob},
	}
	got := NewSolvency().Evaluate(context.Background(), newEnv(t, fix, entries))

	assert.Len(t, got, 2)
}
