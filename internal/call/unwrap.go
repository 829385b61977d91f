package call

import (
	"context"
	"log/slog"

	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/wire"
)

// Leaf is one unwrapped operation paired with its effective principal
// and target.
//
// Principal is the envelope principal: the authenticated actor for the
// leaf's invocation. Principals extracted from the payload ride along
// inside Op.Principals; both are emitted to the affected-set builder.
type Leaf struct {
	Op        wire.Operation
	Target    wire.Address
	Principal wire.Address
}

// Unwrapper flattens a call tree into the leaf sequence. It is
// stateless between calls and safe for concurrent use.
type Unwrapper struct {
	Registry wire.Registry
	Oracle   oracle.Oracle
	Logger   *slog.Logger
}

// Unwrap performs a depth-first, pre-order walk of the tree and
// returns the leaf sequence in traversal order.
//
// Dropped along the way, in all cases silently ("no obligation"):
//   - Deferred nodes: a nested batch is validated by its own
//     top-level invocation, never expanded here.
//   - Leaves whose target holds no code: not a resource, nothing to
//     validate. An oracle failure on the code probe drops the leaf
//     the same way.
//   - Unrecognized leaves whose envelope principal is the null
//     identity: no operation and no actor means no obligation.
//
// Emission order equals pre-order traversal. Downstream deduplicates,
// so the order matters only for reproducible fixtures.
func (u *Unwrapper) Unwrap(ctx context.Context, root Node) []Leaf {
	var leaves []Leaf
	u.walk(ctx, root, &leaves)
	return leaves
}

func (u *Unwrapper) walk(ctx context.Context, n Node, out *[]Leaf) {
	switch node := n.(type) {
	case *Single:
		u.emit(ctx, node.Target, node.Principal, node.Data, out)

	case *Indirect:
		// The inner call is what actually executed: its target and
		// principal are effective, the outer envelope is discarded.
		u.emit(ctx, node.Inner.Target, node.Inner.Principal, node.Inner.Data, out)

	case *Batch:
		for _, item := range node.Items {
			u.walk(ctx, item, out)
		}

	case *Deferred:
		u.logger().Debug("skipping nested batch",
			"target", node.Target.String(),
			"principal", node.Principal.String(),
		)
	}
}

// emit decodes one leaf payload and appends it unless a drop rule
// applies.
func (u *Unwrapper) emit(ctx context.Context, target, principal wire.Address, data []byte, out *[]Leaf) {
	hasCode, err := u.Oracle.HasCode(ctx, target, oracle.Post)
	if err != nil {
		u.logger().Debug("code probe failed, dropping leaf",
			"target", target.String(),
			"error", err,
		)
		return
	}
	if !hasCode {
		return
	}

	op := u.Registry.Decode(data)
	op.Target = target

	if op.Kind == wire.KindUnrecognized && principal.IsZero() {
		return
	}

	*out = append(*out, Leaf{Op: op, Target: target, Principal: principal})
}

func (u *Unwrapper) logger() *slog.Logger {
	if u.Logger != nil {
		return u.Logger
	}
	return slog.Default()
}
