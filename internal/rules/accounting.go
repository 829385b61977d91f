package rules

import (
	"context"
	"fmt"
	"math/big"

	"github.com/wardenlab/warden/internal/affect"
	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/wire"
)

// Accounting is the resource accounting-integrity rule, resource
// scoped, with two checks per resource:
//
//  1. Absolute bound, post state only: the observable raw-asset
//     balance must cover the internal cash ledger. Violation is
//     unconditional; there is no exception path and no pre/post delta
//     context.
//
//  2. Bounded delta: the movement of the observable balance across
//     the transaction must match the movement of the internal cash
//     ledger within the tolerance. A surplus (balance grew more than
//     the ledger recorded) violates unconditionally; a shortfall
//     (balance shrank more than the ledger recorded) is legitimate
//     only when an excess-asset skim event was emitted.
type Accounting struct {
	// Tolerance is the allowed absolute divergence between the two
	// movements, in asset units. Zero by default.
	Tolerance *big.Int
}

// NewAccounting returns the accounting-integrity rule. A nil
// tolerance means exact matching.
func NewAccounting(tolerance *big.Int) *Accounting {
	if tolerance == nil {
		tolerance = new(big.Int)
	}
	return &Accounting{Tolerance: tolerance}
}

// Name implements Rule.
func (*Accounting) Name() string { return "resource-accounting" }

// Evaluate implements Rule.
func (r *Accounting) Evaluate(ctx context.Context, env *Env) []Violation {
	var out []Violation
	for _, resource := range affect.Resources(env.Entries) {
		out = append(out, r.evaluateResource(ctx, env, resource)...)
	}
	return out
}

func (r *Accounting) evaluateResource(ctx context.Context, env *Env, resource wire.Address) []Violation {
	postBalance := resourceMetric(ctx, env, resource, oracle.Post, oracle.MetricAssetBalance)
	postCash := resourceMetric(ctx, env, resource, oracle.Post, oracle.MetricCashAccounting)
	if postBalance == nil || postCash == nil {
		return nil
	}

	var out []Violation

	// Absolute bound at post.
	if postBalance.Cmp(postCash) < 0 {
		out = append(out, Violation{
			Rule:     r.Name(),
			Resource: resource,
			Reason: fmt.Sprintf("observable balance %s does not cover internal cash accounting %s at post state",
				postBalance, postCash),
		})
	}

	preBalance := resourceMetric(ctx, env, resource, oracle.Pre, oracle.MetricAssetBalance)
	preCash := resourceMetric(ctx, env, resource, oracle.Pre, oracle.MetricCashAccounting)
	if preBalance == nil || preCash == nil {
		return out
	}

	// Bounded delta on the two movements.
	balanceMove := new(big.Int).Sub(postBalance, preBalance)
	cashMove := new(big.Int).Sub(postCash, preCash)
	divergence := new(big.Int).Sub(balanceMove, cashMove)

	if new(big.Int).Abs(divergence).Cmp(r.Tolerance) <= 0 {
		return out
	}

	if divergence.Sign() < 0 && HasException(env.Log, resource, SigExcessClaimed) {
		env.logger().Debug("balance shortfall excepted by excess-asset skim",
			"resource", resource.String(),
			"divergence", divergence.String(),
		)
		return out
	}

	out = append(out, Violation{
		Rule:     r.Name(),
		Resource: resource,
		Reason: fmt.Sprintf("observable balance moved %s while internal cash accounting moved %s (divergence %s, tolerance %s)",
			balanceMove, cashMove, divergence, r.Tolerance),
	})
	return out
}
