package rules

import (
	"context"
	"fmt"

	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/wire"
)

// StatusCheckOffload verifies that every status check the connector
// deferred during the transaction was executed before it ended: the
// deferred-check queue length at the post snapshot must be zero.
//
// Absolute bound, post state only, no exception path. A connector
// that does not expose the metric is inapplicable and skipped.
type StatusCheckOffload struct {
	Connector wire.Address
}

// NewStatusCheckOffload returns the status-check-offload rule for one
// connector.
func NewStatusCheckOffload(connector wire.Address) *StatusCheckOffload {
	return &StatusCheckOffload{Connector: connector}
}

// Name implements Rule.
func (*StatusCheckOffload) Name() string { return "status-check-offload" }

// Evaluate implements Rule.
func (r *StatusCheckOffload) Evaluate(ctx context.Context, env *Env) []Violation {
	pending := resourceMetric(ctx, env, r.Connector, oracle.Post, oracle.MetricDeferredChecks)
	if pending == nil || pending.Sign() == 0 {
		return nil
	}
	return []Violation{{
		Rule:     r.Name(),
		Resource: r.Connector,
		Reason:   fmt.Sprintf("%s status checks remained deferred at post state", pending),
	}}
}
