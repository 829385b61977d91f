package rules

import (
	"context"
	"fmt"
	"math/big"

	"github.com/wardenlab/warden/internal/affect"
	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/wire"
)

// DefaultRateDriftBps is the default tolerated conversion-rate drift
// across one transaction, in basis points.
const DefaultRateDriftBps = 500

// RateStability is the bounded-delta rule on the claim conversion
// rate, computed as totalAssets*1e18/totalSupply with truncating
// division at both snapshots.
//
// Drift is measured in basis points against the PRE value. An
// increase beyond the threshold violates unconditionally; a decrease
// beyond the threshold violates unless a fee-accrual or
// debt-socialization event legitimizes it. Drift exactly at the
// threshold passes.
type RateStability struct {
	DriftBps int64
}

// NewRateStability returns the rate-stability rule with the given
// threshold; non-positive thresholds fall back to the default.
func NewRateStability(driftBps int64) *RateStability {
	if driftBps <= 0 {
		driftBps = DefaultRateDriftBps
	}
	return &RateStability{DriftBps: driftBps}
}

// Name implements Rule.
func (*RateStability) Name() string { return "rate-stability" }

// Evaluate implements Rule. Resource-scoped: each distinct worklist
// resource is evaluated once.
func (r *RateStability) Evaluate(ctx context.Context, env *Env) []Violation {
	var out []Violation
	for _, resource := range affect.Resources(env.Entries) {
		if v := r.evaluateResource(ctx, env, resource); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func (r *RateStability) evaluateResource(ctx context.Context, env *Env, resource wire.Address) *Violation {
	preAssets := resourceMetric(ctx, env, resource, oracle.Pre, oracle.MetricTotalAssets)
	preSupply := resourceMetric(ctx, env, resource, oracle.Pre, oracle.MetricTotalSupply)
	postAssets := resourceMetric(ctx, env, resource, oracle.Post, oracle.MetricTotalAssets)
	postSupply := resourceMetric(ctx, env, resource, oracle.Post, oracle.MetricTotalSupply)
	if preAssets == nil || preSupply == nil || postAssets == nil || postSupply == nil {
		return nil
	}

	preRate := scaledRatio(preAssets, preSupply)
	postRate := scaledRatio(postAssets, postSupply)
	if preRate == nil || postRate == nil {
		// Empty supply on either side: no rate to compare.
		return nil
	}

	drift := driftBps(preRate, postRate)
	if drift == nil || drift.Cmp(big.NewInt(r.DriftBps)) <= 0 {
		return nil
	}

	decreased := postRate.Cmp(preRate) < 0
	if decreased && HasException(env.Log, resource, SigInterestAccrued, SigDebtSocialized) {
		env.logger().Debug("rate decrease excepted",
			"resource", resource.String(),
			"drift_bps", drift.String(),
		)
		return nil
	}

	return &Violation{
		Rule:     r.Name(),
		Resource: resource,
		Reason: fmt.Sprintf("conversion rate moved %s bps against a %d bps limit (pre=%s post=%s)",
			drift, r.DriftBps, preRate, postRate),
	}
}
