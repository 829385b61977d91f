package rules

import (
	"context"
	"math/big"

	"github.com/wardenlab/warden/internal/affect"
	"github.com/wardenlab/warden/internal/oracle"
)

// healthAt resolves a principal's health at one snapshot.
//
// The direct health oracle is preferred. A resource that does not
// support it reports HealthInapplicable and we fall back to computing
// health from the principal's aggregate collateral and liability
// metrics. A resource whose direct health query FAILS (as opposed to
// being inapplicable) is treated as Unhealthy: a malicious resource
// must not be able to dodge validation by failing loudly.
func healthAt(ctx context.Context, env *Env, entry affect.Entry, snap oracle.Snapshot) oracle.Health {
	h, err := env.Oracle.PrincipalHealth(ctx, entry.Resource, entry.Principal, snap)
	if err != nil {
		env.logger().Warn("health query failed, treating as unhealthy",
			"resource", entry.Resource.String(),
			"principal", entry.Principal.String(),
			"snapshot", snap.String(),
			"error", err,
		)
		return oracle.Unhealthy
	}
	if h != oracle.HealthInapplicable {
		return h
	}

	collateral, errC := principalMetric(ctx, env, entry.Resource, entry.Principal, snap, oracle.MetricCollateralValue)
	liability, errL := principalMetric(ctx, env, entry.Resource, entry.Principal, snap, oracle.MetricLiabilityValue)
	if errC != nil || errL != nil {
		return oracle.HealthInapplicable
	}
	return positionHealth(collateral, liability)
}

// positionHealth is the one place the empty-position policy lives.
//
// A principal with zero collateral and zero liability is Healthy by
// convention. Whether such principals should instead be excluded from
// validation entirely is unresolved upstream; keep the policy here so
// it can change without touching the pipeline.
func positionHealth(collateral, liability *big.Int) oracle.Health {
	if collateral.Sign() == 0 && liability.Sign() == 0 {
		return oracle.Healthy
	}
	if collateral.Cmp(liability) >= 0 {
		return oracle.Healthy
	}
	return oracle.Unhealthy
}
