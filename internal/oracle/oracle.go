// Package oracle defines the read-only state boundary consumed by the
// invariant rules: two frozen snapshots of resource state per
// transaction plus the transaction's emitted event log.
//
// Nothing behind this interface mutates. Every query is idempotent,
// and the two failure modes are normal control-flow values, not
// panics: ErrInapplicable means the target does not have the shape the
// query expects (treated as "no obligation" by every rule), while
// ErrUnavailable means a bounded-resource failure mid-query (treated
// as skip, logged, never retried).
package oracle

import (
	"context"
	"errors"
	"math/big"

	"github.com/wardenlab/warden/internal/wire"
)

// Snapshot selects one of the two frozen transaction-boundary states.
// It is a capability token: it owns no data and is only meaningful as
// an argument to oracle queries.
type Snapshot uint8

const (
	// Pre is the state immediately before the transaction executed.
	Pre Snapshot = iota
	// Post is the state immediately after the transaction executed.
	Post
)

// String returns "pre" or "post".
func (s Snapshot) String() string {
	if s == Pre {
		return "pre"
	}
	return "post"
}

// MetricKind names a resource-level or principal-level quantity.
type MetricKind uint8

const (
	// MetricTotalAssets is the total managed-asset value of a resource.
	MetricTotalAssets MetricKind = iota
	// MetricTotalSupply is the total claim (share) supply of a resource.
	MetricTotalSupply
	// MetricAssetBalance is the observable raw-asset balance held by
	// the resource, as seen from outside its own accounting.
	MetricAssetBalance
	// MetricCashAccounting is the resource's internal cash ledger.
	MetricCashAccounting
	// MetricTotalBorrowed is the resource's total borrowed accounting.
	MetricTotalBorrowed
	// MetricDeferredChecks is the number of status checks the resource
	// has deferred and not yet executed.
	MetricDeferredChecks

	// Principal-scoped kinds, valid only with PrincipalMetric.

	// MetricCollateralValue is a principal's aggregate collateral value
	// as seen by one resource.
	MetricCollateralValue
	// MetricLiabilityValue is a principal's aggregate liability value
	// as seen by one resource.
	MetricLiabilityValue
)

// String returns the metric name used in logs and reason strings.
func (k MetricKind) String() string {
	switch k {
	case MetricTotalAssets:
		return "totalAssets"
	case MetricTotalSupply:
		return "totalSupply"
	case MetricAssetBalance:
		return "assetBalance"
	case MetricCashAccounting:
		return "cashAccounting"
	case MetricTotalBorrowed:
		return "totalBorrowed"
	case MetricDeferredChecks:
		return "deferredChecks"
	case MetricCollateralValue:
		return "collateralValue"
	case MetricLiabilityValue:
		return "liabilityValue"
	default:
		return "unknown"
	}
}

// Health is the direct health oracle's verdict for one
// (resource, principal) pair.
type Health uint8

const (
	// HealthInapplicable means the resource does not support a direct
	// health query for this principal; callers fall back to computing
	// health from collateral and liability metrics.
	HealthInapplicable Health = iota
	Healthy
	Unhealthy
)

// String returns the lowercase verdict name.
func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Unhealthy:
		return "unhealthy"
	default:
		return "inapplicable"
	}
}

// Event is one entry of the transaction's emitted event log.
type Event struct {
	Emitter wire.Address
	Topics  []wire.Word
	Data    []byte
}

// Sentinel query outcomes. Callers check with errors.Is.
var (
	// ErrInapplicable: the query is valid but the target does not
	// implement the expected interface or holds no such position.
	ErrInapplicable = errors.New("oracle: query inapplicable to target")

	// ErrUnavailable: a bounded-resource failure interrupted the query.
	// Recovered locally as a skip; never retried.
	ErrUnavailable = errors.New("oracle: query unavailable")
)

// Oracle supplies immutable point-in-time views of resource state.
//
// Implementations must be safe for concurrent use: independent rule
// pipelines query the same oracle in parallel with no synchronization.
type Oracle interface {
	// ResourceMetric returns a resource-level quantity at a snapshot.
	ResourceMetric(ctx context.Context, resource wire.Address, snap Snapshot, kind MetricKind) (*big.Int, error)

	// PrincipalMetric returns a principal-scoped quantity as seen by
	// one resource at a snapshot.
	PrincipalMetric(ctx context.Context, resource, principal wire.Address, snap Snapshot, kind MetricKind) (*big.Int, error)

	// PrincipalHealth is the preferred direct health oracle. Resources
	// that do not support it report HealthInapplicable; an error means
	// the resource failed while trying to answer.
	PrincipalHealth(ctx context.Context, resource, principal wire.Address, snap Snapshot) (Health, error)

	// Controllers returns the resources whose accounting transitively
	// depends on the principal's state elsewhere.
	Controllers(ctx context.Context, principal wire.Address, snap Snapshot) ([]wire.Address, error)

	// HasCode reports whether the target holds executable code, i.e.
	// whether it is a resource at all.
	HasCode(ctx context.Context, target wire.Address, snap Snapshot) (bool, error)

	// Events returns the transaction's emitted event log in order.
	Events(ctx context.Context) ([]Event, error)
}
