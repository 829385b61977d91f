// Package rules implements the invariant evaluator: each rule walks
// the affected-entry worklist, queries the two frozen snapshots, and
// reports violations with a recognized-exception carve-out.
//
// Per entry the evaluation is a small state machine:
//
//	Start -> PreQueried -> PostQueried -> { Pass | ExceptionChecked -> {Pass|Violate} }
//
// Every layer below the evaluator absorbs its own errors and degrades
// to "no obligation": inapplicable queries pass, unavailable queries
// skip with a log line, and only genuine invariant breaches cross the
// boundary as Violations.
package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/wardenlab/warden/internal/affect"
	"github.com/wardenlab/warden/internal/call"
	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/wire"
)

// Violation is the one user-visible failure. It is terminal for its
// entry; evaluation of the remaining worklist continues because
// entries are independent, and the host rejects the transaction when
// any violation is present.
type Violation struct {
	Rule      string       `json:"rule"`
	Resource  wire.Address `json:"resource"`
	Principal wire.Address `json:"principal"` // zero for resource-scoped rules
	Reason    string       `json:"reason"`
}

// String renders the violation for logs and text reports.
func (v Violation) String() string {
	if v.Principal.IsZero() {
		return fmt.Sprintf("%s: resource %s: %s", v.Rule, v.Resource, v.Reason)
	}
	return fmt.Sprintf("%s: resource %s principal %s: %s", v.Rule, v.Resource, v.Principal, v.Reason)
}

// Env is the immutable evaluation environment for one transaction:
// the oracle, the event log, the unwrapped leaves, and the affected
// worklist. Rules share one Env and run concurrently against it.
type Env struct {
	Oracle  oracle.Oracle
	Log     []oracle.Event
	Leaves  []call.Leaf
	Entries []affect.Entry
	Logger  *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Rule is one invariant. Evaluate inspects the worklist and returns
// all violations it finds; it never returns an error because every
// query failure below it degrades to a skip.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, env *Env) []Violation
}

// resourceMetric queries a resource metric, absorbing both failure
// modes. A nil result means "no obligation" for the caller:
// inapplicable silently, unavailable with a log line.
func resourceMetric(ctx context.Context, env *Env, resource wire.Address, snap oracle.Snapshot, kind oracle.MetricKind) *big.Int {
	v, err := env.Oracle.ResourceMetric(ctx, resource, snap, kind)
	if err != nil {
		logMetricSkip(env, resource, snap, kind, err)
		return nil
	}
	return v
}

// principalMetric queries a principal-scoped metric with the same
// absorption policy as resourceMetric.
func principalMetric(ctx context.Context, env *Env, resource, principal wire.Address, snap oracle.Snapshot, kind oracle.MetricKind) (*big.Int, error) {
	v, err := env.Oracle.PrincipalMetric(ctx, resource, principal, snap, kind)
	if err != nil {
		logMetricSkip(env, resource, snap, kind, err)
		return nil, err
	}
	return v, nil
}

func logMetricSkip(env *Env, resource wire.Address, snap oracle.Snapshot, kind oracle.MetricKind, err error) {
	// Inapplicable is ordinary control flow; only resource-bounded
	// failures are worth a log line for observability.
	if err == nil || errors.Is(err, oracle.ErrInapplicable) {
		return
	}
	env.logger().Warn("metric query skipped",
		"resource", resource.String(),
		"snapshot", snap.String(),
		"metric", kind.String(),
		"error", err,
	)
}
