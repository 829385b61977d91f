package rules

import (
	"context"
	"fmt"

	"github.com/wardenlab/warden/internal/oracle"
)

// Solvency is the monotonic-health rule: a principal that was healthy
// before the transaction must still be healthy after it, unless a
// debt-socialization event legitimizes the degradation.
//
// There is deliberately no ratchet on already-bad entries: a position
// that entered the transaction unhealthy may leave it unhealthy (or
// healthy) without a violation.
type Solvency struct{}

// NewSolvency returns the account-solvency rule.
func NewSolvency() *Solvency { return &Solvency{} }

// Name implements Rule.
func (*Solvency) Name() string { return "account-solvency" }

// Evaluate implements Rule. Every worklist entry is evaluated
// independently, including entries for secondary extracted principals:
// a transfer recipient is validated on its own, not only the
// authenticated actor.
func (r *Solvency) Evaluate(ctx context.Context, env *Env) []Violation {
	var out []Violation
	for _, entry := range env.Entries {
		pre := healthAt(ctx, env, entry, oracle.Pre)
		if pre != oracle.Healthy {
			// Inapplicable is an applicability failure, not a
			// violation; Unhealthy pre-state is already-bad.
			continue
		}

		post := healthAt(ctx, env, entry, oracle.Post)
		if post != oracle.Unhealthy {
			continue
		}

		if HasException(env.Log, entry.Resource, SigDebtSocialized) {
			env.logger().Debug("health degradation excepted by debt socialization",
				"resource", entry.Resource.String(),
				"principal", entry.Principal.String(),
			)
			continue
		}

		out = append(out, Violation{
			Rule:      r.Name(),
			Resource:  entry.Resource,
			Principal: entry.Principal,
			Reason: fmt.Sprintf("principal was healthy before the transaction and unhealthy after it (pre=%s post=%s) with no recognized exception",
				pre, post),
		})
	}
	return out
}
