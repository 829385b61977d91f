// Package affect builds the validation worklist: the deduplicated set
// of (resource, principal) pairs plausibly affected by a transaction,
// including each principal's transitively related controller
// resources.
package affect

import (
	"context"
	"log/slog"
	"sort"

	"github.com/wardenlab/warden/internal/call"
	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/wire"
)

// Entry is one (resource, principal) worklist item, deduplicated by
// structural equality.
type Entry struct {
	Resource  wire.Address
	Principal wire.Address
}

// Builder expands leaf sequences into worklists. Stateless between
// calls and safe for concurrent use.
type Builder struct {
	Oracle oracle.Oracle
	Logger *slog.Logger
}

// Build produces the worklist for a leaf sequence.
//
// For each leaf it emits (target, envelope principal) and
// (target, each extracted principal). Pairs are skipped when the
// principal is the null identity, or when the principal is itself a
// resource: vaults are never validated as if they were accounts.
//
// Every surviving principal is then expanded through its controller
// set at the post-transaction snapshot, because controllership is a
// property of current enablement, not a historical fact. This is what
// gives rules cross-resource reach: an operation touching only
// resource A can invalidate a principal's standing as seen from
// resource B when B depends on A.
//
// Oracle failures during expansion degrade to "no obligation" for the
// affected pair and are logged, never raised.
//
// The returned slice is sorted by resource then principal so that
// reports and golden fixtures are deterministic; correctness does not
// depend on the order.
func (b *Builder) Build(ctx context.Context, leaves []call.Leaf) []Entry {
	set := make(map[Entry]struct{})
	principals := make(map[wire.Address]struct{})

	add := func(resource, principal wire.Address) {
		if principal.IsZero() {
			return
		}
		if b.isResource(ctx, principal) {
			return
		}
		set[Entry{Resource: resource, Principal: principal}] = struct{}{}
		principals[principal] = struct{}{}
	}

	for _, leaf := range leaves {
		add(leaf.Target, leaf.Principal)
		for _, extracted := range leaf.Op.Principals {
			add(leaf.Target, extracted)
		}
	}

	// Controller expansion against the post snapshot.
	for principal := range principals {
		controllers, err := b.Oracle.Controllers(ctx, principal, oracle.Post)
		if err != nil {
			b.logger().Warn("controller expansion failed, skipping principal",
				"principal", principal.String(),
				"error", err,
			)
			continue
		}
		for _, controller := range controllers {
			set[Entry{Resource: controller, Principal: principal}] = struct{}{}
		}
	}

	entries := make([]Entry, 0, len(set))
	for e := range set {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Resource != entries[j].Resource {
			return entries[i].Resource.Less(entries[j].Resource)
		}
		return entries[i].Principal.Less(entries[j].Principal)
	})
	return entries
}

// Resources returns the distinct resources of a worklist, in order of
// first appearance within the sorted entries. Resource-scoped rules
// evaluate each resource exactly once.
func Resources(entries []Entry) []wire.Address {
	seen := make(map[wire.Address]struct{}, len(entries))
	var out []wire.Address
	for _, e := range entries {
		if _, ok := seen[e.Resource]; ok {
			continue
		}
		seen[e.Resource] = struct{}{}
		out = append(out, e.Resource)
	}
	return out
}

// isResource reports whether an address holds code. Probe failures
// conservatively treat the address as an account so that a flaky
// probe cannot silence validation of a real principal.
func (b *Builder) isResource(ctx context.Context, addr wire.Address) bool {
	hasCode, err := b.Oracle.HasCode(ctx, addr, oracle.Post)
	if err != nil {
		b.logger().Debug("code probe failed during dedup",
			"address", addr.String(),
			"error", err,
		)
		return false
	}
	return hasCode
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
