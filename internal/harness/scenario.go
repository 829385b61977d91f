package harness

import (
	"bytes"
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wardenlab/warden/internal/wire"
)

// Scenario defines one verification test case: a transaction, the two
// recorded state snapshots, the event log, and the rule parameters.
// The expected outcome lives in the golden report, not here.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description"`

	// Connector is the batch entry point address.
	Connector string `yaml:"connector"`

	// Transaction is the call under verification.
	Transaction TransactionSpec `yaml:"transaction"`

	// Resources lists the addresses that hold code at the post state.
	Resources []string `yaml:"resources,omitempty"`

	// Metrics are resource-level observations.
	Metrics []MetricSpec `yaml:"metrics,omitempty"`

	// Positions are per-principal collateral and liability
	// observations.
	Positions []PositionSpec `yaml:"positions,omitempty"`

	// Health are direct health-oracle verdicts. Pairs without a
	// verdict fall back to position metrics.
	Health []HealthSpec `yaml:"health,omitempty"`

	// Controllers maps principals to the resources that track them.
	Controllers []ControllerSpec `yaml:"controllers,omitempty"`

	// Events is the transaction's emitted log, in order.
	Events []EventSpec `yaml:"events,omitempty"`

	// DriftBps overrides the rate-stability bound. Zero keeps the
	// default.
	DriftBps int64 `yaml:"drift_bps,omitempty"`

	// RunToken is the fixed run token. Defaults to
	// "test-run-default" for deterministic golden comparison.
	RunToken string `yaml:"run_token,omitempty"`
}

// TransactionSpec describes the transaction envelope and its payload.
// Exactly one of Calls or Data must be set. A single call with no
// explicit To goes directly to its target; multiple calls are encoded
// as a connector batch.
type TransactionSpec struct {
	From  string     `yaml:"from"`
	To    string     `yaml:"to,omitempty"`
	Calls []CallSpec `yaml:"calls,omitempty"`

	// Data is a raw hex payload for malformed-input scenarios.
	Data string `yaml:"data,omitempty"`
}

// CallSpec describes one encoded operation.
type CallSpec struct {
	// Op is one of: deposit, withdraw, borrow, repay, transfer_from,
	// liquidate.
	Op string `yaml:"op"`

	// Target is the resource the call is addressed to.
	Target string `yaml:"target"`

	// OnBehalf is the batch item's authorization principal. Defaults
	// to the transaction sender.
	OnBehalf string `yaml:"on_behalf,omitempty"`

	Assets   uint64 `yaml:"assets,omitempty"`
	Receiver string `yaml:"receiver,omitempty"`
	Owner    string `yaml:"owner,omitempty"`

	// transfer_from fields.
	From   string `yaml:"from,omitempty"`
	To     string `yaml:"to,omitempty"`
	Amount uint64 `yaml:"amount,omitempty"`

	// liquidate fields.
	Violator   string `yaml:"violator,omitempty"`
	Collateral string `yaml:"collateral,omitempty"`
	Repay      uint64 `yaml:"repay,omitempty"`
	MinYield   uint64 `yaml:"min_yield,omitempty"`
}

// MetricSpec is one resource-level observation. Values are decimal
// strings because base-unit amounts exceed 64 bits.
type MetricSpec struct {
	Resource string `yaml:"resource"`
	Snapshot string `yaml:"snapshot"`
	Metric   string `yaml:"metric"`
	Value    string `yaml:"value"`
}

// PositionSpec is one principal position observation.
type PositionSpec struct {
	Resource   string `yaml:"resource"`
	Principal  string `yaml:"principal"`
	Snapshot   string `yaml:"snapshot"`
	Collateral string `yaml:"collateral"`
	Liability  string `yaml:"liability"`
}

// HealthSpec is one direct health verdict.
type HealthSpec struct {
	Resource  string `yaml:"resource"`
	Principal string `yaml:"principal"`
	Snapshot  string `yaml:"snapshot"`
	Healthy   bool   `yaml:"healthy"`
}

// ControllerSpec lists the controllers of one principal at the post
// state.
type ControllerSpec struct {
	Principal string   `yaml:"principal"`
	Resources []string `yaml:"resources"`
}

// EventSpec is one emitted event.
type EventSpec struct {
	Emitter string   `yaml:"emitter"`
	Topics  []string `yaml:"topics"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so a typo cannot silently weaken a scenario.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Connector == "" {
		return fmt.Errorf("connector is required")
	}
	if _, err := wire.ParseAddress(s.Connector); err != nil {
		return fmt.Errorf("connector: %w", err)
	}

	tx := &s.Transaction
	if tx.From == "" {
		return fmt.Errorf("transaction.from is required")
	}
	if _, err := wire.ParseAddress(tx.From); err != nil {
		return fmt.Errorf("transaction.from: %w", err)
	}
	if len(tx.Calls) == 0 && tx.Data == "" {
		return fmt.Errorf("transaction needs calls or data")
	}
	if len(tx.Calls) > 0 && tx.Data != "" {
		return fmt.Errorf("transaction.calls and transaction.data are mutually exclusive")
	}
	for i, call := range tx.Calls {
		if call.Op == "" {
			return fmt.Errorf("transaction.calls[%d]: op is required", i)
		}
		if call.Target == "" {
			return fmt.Errorf("transaction.calls[%d]: target is required", i)
		}
	}

	for i, m := range s.Metrics {
		if err := validateSnapshot(m.Snapshot); err != nil {
			return fmt.Errorf("metrics[%d]: %w", i, err)
		}
		if err := validateAmount(m.Value); err != nil {
			return fmt.Errorf("metrics[%d]: value: %w", i, err)
		}
	}
	for i, p := range s.Positions {
		if err := validateSnapshot(p.Snapshot); err != nil {
			return fmt.Errorf("positions[%d]: %w", i, err)
		}
		if err := validateAmount(p.Collateral); err != nil {
			return fmt.Errorf("positions[%d]: collateral: %w", i, err)
		}
		if err := validateAmount(p.Liability); err != nil {
			return fmt.Errorf("positions[%d]: liability: %w", i, err)
		}
	}
	for i, h := range s.Health {
		if err := validateSnapshot(h.Snapshot); err != nil {
			return fmt.Errorf("health[%d]: %w", i, err)
		}
	}
	return nil
}

func validateSnapshot(s string) error {
	if s != "pre" && s != "post" {
		return fmt.Errorf("snapshot must be pre or post, got %q", s)
	}
	return nil
}

func validateAmount(s string) error {
	if _, ok := new(big.Int).SetString(s, 10); !ok {
		return fmt.Errorf("not a decimal amount: %q", s)
	}
	return nil
}
