package rules

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlab/warden/internal/affect"
	"github.com/wardenlab/warden/internal/oracle"
)

func setBooks(fix *oracle.Fixture, snap oracle.Snapshot, balance, cash int64) {
	fix.SetMetric(vaultA, snap, oracle.MetricAssetBalance, balance)
	fix.SetMetric(vaultA, snap, oracle.MetricCashAccounting, cash)
}

func accountingEnv(t *testing.T, fix *oracle.Fixture) *Env {
	t.Helper()
	return newEnv(t, fix, []affect.Entry{{Resource: vaultA, Principal: alice}})
}

// Observable balance below the internal ledger at post violates
// unconditionally, even with no pre state recorded at all.
func TestAccounting_AbsoluteBound(t *testing.T) {
	fix := oracle.NewFixture()
	setBooks(fix, oracle.Post, 40, 50)

	got := NewAccounting(nil).Evaluate(context.Background(), accountingEnv(t, fix))

	require.Len(t, got, 1)
	assert.Equal(t, "resource-accounting", got[0].Rule)
	assert.Contains(t, got[0].Reason, "does not cover")
}

func TestAccounting_BalancedBooksPass(t *testing.T) {
	fix := oracle.NewFixture()
	setBooks(fix, oracle.Pre, 100, 100)
	setBooks(fix, oracle.Post, 130, 130)

	got := NewAccounting(nil).Evaluate(context.Background(), accountingEnv(t, fix))

	assert.Empty(t, got)
}

// Balance grew more than the ledger recorded: untracked surplus,
// violation with no exception path.
func TestAccounting_SurplusViolates(t *testing.T) {
	fix := oracle.NewFixture()
	setBooks(fix, oracle.Pre, 100, 100)
	setBooks(fix, oracle.Post, 150, 130)
	fix.Emit(vaultA, SigExcessClaimed) // skim excepts shortfalls, not surpluses

	got := NewAccounting(nil).Evaluate(context.Background(), accountingEnv(t, fix))

	require.Len(t, got, 1)
	assert.Contains(t, got[0].Reason, "divergence")
}

// Balance shrank more than the ledger recorded: legitimate only when
// an excess-asset skim was emitted.
func TestAccounting_ShortfallNeedsSkimException(t *testing.T) {
	t.Run("with skim event", func(t *testing.T) {
		fix := oracle.NewFixture()
		setBooks(fix, oracle.Pre, 150, 100)
		setBooks(fix, oracle.Post, 100, 100)
		fix.Emit(vaultA, SigExcessClaimed)

		got := NewAccounting(nil).Evaluate(context.Background(), accountingEnv(t, fix))
		assert.Empty(t, got)
	})

	t.Run("without skim event", func(t *testing.T) {
		fix := oracle.NewFixture()
		setBooks(fix, oracle.Pre, 150, 100)
		setBooks(fix, oracle.Post, 100, 100)

		got := NewAccounting(nil).Evaluate(context.Background(), accountingEnv(t, fix))
		require.Len(t, got, 1)
	})
}

func TestAccounting_ToleranceAbsorbsDust(t *testing.T) {
	fix := oracle.NewFixture()
	setBooks(fix, oracle.Pre, 100, 100)
	setBooks(fix, oracle.Post, 103, 100)

	got := NewAccounting(big.NewInt(5)).Evaluate(context.Background(), accountingEnv(t, fix))

	assert.Empty(t, got)
}

// A resource that exposes no accounting metrics is inapplicable.
func TestAccounting_InapplicableSkipped(t *testing.T) {
	fix := oracle.NewFixture().SetCode(vaultA)

	got := NewAccounting(nil).Evaluate(context.Background(), accountingEnv(t, fix))

	assert.Empty(t, got)
}
