package rules

import (
	"context"
	"fmt"

	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/wire"
)

// TransferAccounting is the asset-transfer accounting rule: a
// transaction containing claim transfers must not move the total
// claim supply of the transferred resource. Transfers redistribute
// claims, they never mint or burn them; the only legitimate supply
// movement alongside a transfer is a fee-accrual dilution evidenced
// in the event log.
//
// Bounded delta with a zero threshold, applied only to resources that
// are the target of a TransferFrom leaf.
type TransferAccounting struct{}

// NewTransferAccounting returns the transfer-accounting rule.
func NewTransferAccounting() *TransferAccounting { return &TransferAccounting{} }

// Name implements Rule.
func (*TransferAccounting) Name() string { return "transfer-accounting" }

// Evaluate implements Rule.
func (r *TransferAccounting) Evaluate(ctx context.Context, env *Env) []Violation {
	seen := make(map[wire.Address]struct{})
	var out []Violation
	for _, leaf := range env.Leaves {
		if leaf.Op.Kind != wire.KindTransferFrom {
			continue
		}
		if _, done := seen[leaf.Target]; done {
			continue
		}
		seen[leaf.Target] = struct{}{}

		if v := r.evaluateResource(ctx, env, leaf.Target); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func (r *TransferAccounting) evaluateResource(ctx context.Context, env *Env, resource wire.Address) *Violation {
	preSupply := resourceMetric(ctx, env, resource, oracle.Pre, oracle.MetricTotalSupply)
	postSupply := resourceMetric(ctx, env, resource, oracle.Post, oracle.MetricTotalSupply)
	if preSupply == nil || postSupply == nil {
		return nil
	}

	if preSupply.Cmp(postSupply) == 0 {
		return nil
	}

	if HasException(env.Log, resource, SigInterestAccrued) {
		env.logger().Debug("supply movement alongside transfer excepted by fee accrual",
			"resource", resource.String(),
		)
		return nil
	}

	return &Violation{
		Rule:     r.Name(),
		Resource: resource,
		Reason: fmt.Sprintf("total claim supply moved across a transfer (pre=%s post=%s) with no recognized exception",
			preSupply, postSupply),
	}
}
