package oracle

import (
	"context"
	"math/big"
	"sync"

	"github.com/wardenlab/warden/internal/wire"
)

// Fixture is an in-memory Oracle for tests and the scenario harness.
//
// All Set* methods must be called before the fixture is queried
// concurrently; queries themselves are read-only and safe in parallel,
// matching the frozen-snapshot contract of the production oracle.
type Fixture struct {
	mu sync.RWMutex

	metrics          map[metricKey]*big.Int
	principalMetrics map[principalMetricKey]*big.Int
	health           map[healthKey]Health
	healthErr        map[healthKey]error
	controllers      map[controllerKey][]wire.Address
	code             map[wire.Address]bool
	events           []Event
}

type metricKey struct {
	resource wire.Address
	snap     Snapshot
	kind     MetricKind
}

type principalMetricKey struct {
	resource  wire.Address
	principal wire.Address
	snap      Snapshot
	kind      MetricKind
}

type healthKey struct {
	resource  wire.Address
	principal wire.Address
	snap      Snapshot
}

type controllerKey struct {
	principal wire.Address
	snap      Snapshot
}

// NewFixture returns an empty fixture. Unset queries report
// ErrInapplicable, unset health reports HealthInapplicable, and unset
// targets report no code.
func NewFixture() *Fixture {
	return &Fixture{
		metrics:          make(map[metricKey]*big.Int),
		principalMetrics: make(map[principalMetricKey]*big.Int),
		health:           make(map[healthKey]Health),
		healthErr:        make(map[healthKey]error),
		controllers:      make(map[controllerKey][]wire.Address),
		code:             make(map[wire.Address]bool),
	}
}

// SetMetric records a resource-level metric at a snapshot.
func (f *Fixture) SetMetric(resource wire.Address, snap Snapshot, kind MetricKind, value int64) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics[metricKey{resource, snap, kind}] = big.NewInt(value)
	f.code[resource] = true
	return f
}

// SetBigMetric records a resource-level metric from a big.Int.
func (f *Fixture) SetBigMetric(resource wire.Address, snap Snapshot, kind MetricKind, value *big.Int) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics[metricKey{resource, snap, kind}] = new(big.Int).Set(value)
	f.code[resource] = true
	return f
}

// SetPrincipalMetric records a principal-scoped metric at a snapshot.
func (f *Fixture) SetPrincipalMetric(resource, principal wire.Address, snap Snapshot, kind MetricKind, value int64) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.principalMetrics[principalMetricKey{resource, principal, snap, kind}] = big.NewInt(value)
	f.code[resource] = true
	return f
}

// SetBigPrincipalMetric records a principal-scoped metric from a
// big.Int.
func (f *Fixture) SetBigPrincipalMetric(resource, principal wire.Address, snap Snapshot, kind MetricKind, value *big.Int) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.principalMetrics[principalMetricKey{resource, principal, snap, kind}] = new(big.Int).Set(value)
	f.code[resource] = true
	return f
}

// SetHealth records a direct health verdict.
func (f *Fixture) SetHealth(resource, principal wire.Address, snap Snapshot, h Health) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.health[healthKey{resource, principal, snap}] = h
	f.code[resource] = true
	return f
}

// FailHealth makes the direct health query return the given error,
// modelling a resource that fails while trying to answer.
func (f *Fixture) FailHealth(resource, principal wire.Address, snap Snapshot, err error) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthErr[healthKey{resource, principal, snap}] = err
	f.code[resource] = true
	return f
}

// SetControllers records a principal's controller set at a snapshot.
func (f *Fixture) SetControllers(principal wire.Address, snap Snapshot, resources ...wire.Address) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controllers[controllerKey{principal, snap}] = append([]wire.Address(nil), resources...)
	for _, r := range resources {
		f.code[r] = true
	}
	return f
}

// SetCode marks a target as holding executable code without recording
// any metrics for it.
func (f *Fixture) SetCode(target wire.Address) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.code[target] = true
	return f
}

// Emit appends an event to the log.
func (f *Fixture) Emit(emitter wire.Address, topics ...wire.Word) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, Event{Emitter: emitter, Topics: topics})
	return f
}

// ResourceMetric implements Oracle.
func (f *Fixture) ResourceMetric(_ context.Context, resource wire.Address, snap Snapshot, kind MetricKind) (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.metrics[metricKey{resource, snap, kind}]
	if !ok {
		return nil, ErrInapplicable
	}
	return new(big.Int).Set(v), nil
}

// PrincipalMetric implements Oracle.
func (f *Fixture) PrincipalMetric(_ context.Context, resource, principal wire.Address, snap Snapshot, kind MetricKind) (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.principalMetrics[principalMetricKey{resource, principal, snap, kind}]
	if !ok {
		return nil, ErrInapplicable
	}
	return new(big.Int).Set(v), nil
}

// PrincipalHealth implements Oracle.
func (f *Fixture) PrincipalHealth(_ context.Context, resource, principal wire.Address, snap Snapshot) (Health, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	key := healthKey{resource, principal, snap}
	if err, ok := f.healthErr[key]; ok {
		return HealthInapplicable, err
	}
	h, ok := f.health[key]
	if !ok {
		return HealthInapplicable, nil
	}
	return h, nil
}

// Controllers implements Oracle.
func (f *Fixture) Controllers(_ context.Context, principal wire.Address, snap Snapshot) ([]wire.Address, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]wire.Address(nil), f.controllers[controllerKey{principal, snap}]...), nil
}

// HasCode implements Oracle.
func (f *Fixture) HasCode(_ context.Context, target wire.Address, _ Snapshot) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.code[target], nil
}

// Events implements Oracle.
func (f *Fixture) Events(_ context.Context) ([]Event, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Event(nil), f.events...), nil
}
