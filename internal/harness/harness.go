// Package harness executes verification scenarios: YAML files that
// describe a transaction, the recorded pre and post state, and the
// event log. Scenarios run against a fixture oracle with a fixed run
// token, so their reports are deterministic and suitable for golden
// file comparison.
package harness

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"

	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/ruleset"
	"github.com/wardenlab/warden/internal/runner"
	"github.com/wardenlab/warden/internal/wire"
)

// DefaultRunToken is the fixed run token used when a scenario does not
// set one.
const DefaultRunToken = "test-run-default"

// Run executes a scenario and returns its verification report.
//
// Each scenario runs against a fresh fixture oracle for isolation. A
// report with violations is not an error; the error return covers only
// malformed scenarios.
func Run(ctx context.Context, scenario *Scenario) (*runner.Report, error) {
	connector, err := wire.ParseAddress(scenario.Connector)
	if err != nil {
		return nil, fmt.Errorf("connector: %w", err)
	}

	fix, err := buildFixture(scenario)
	if err != nil {
		return nil, err
	}

	tx, err := buildTransaction(scenario, connector)
	if err != nil {
		return nil, err
	}

	cfg := ruleset.Default()
	cfg.Connector = connector
	if scenario.DriftBps > 0 {
		cfg.RateStability.DriftBps = scenario.DriftBps
	}

	token := scenario.RunToken
	if token == "" {
		token = DefaultRunToken
	}

	r := runner.New(fix, wire.DefaultRegistry(), connector, cfg.Build(),
		runner.WithTokenGenerator(runner.FixedGenerator{Token: token}),
		runner.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return r.Verify(ctx, tx)
}

// buildFixture populates a fixture oracle from the scenario's state
// sections.
func buildFixture(s *Scenario) (*oracle.Fixture, error) {
	fix := oracle.NewFixture()

	for i, raw := range s.Resources {
		addr, err := wire.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("resources[%d]: %w", i, err)
		}
		fix.SetCode(addr)
	}

	for i, m := range s.Metrics {
		resource, err := wire.ParseAddress(m.Resource)
		if err != nil {
			return nil, fmt.Errorf("metrics[%d]: resource: %w", i, err)
		}
		snap, err := parseSnapshot(m.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("metrics[%d]: %w", i, err)
		}
		kind, err := parseMetricKind(m.Metric)
		if err != nil {
			return nil, fmt.Errorf("metrics[%d]: %w", i, err)
		}
		value, ok := new(big.Int).SetString(m.Value, 10)
		if !ok {
			return nil, fmt.Errorf("metrics[%d]: bad value %q", i, m.Value)
		}
		fix.SetBigMetric(resource, snap, kind, value)
	}

	for i, p := range s.Positions {
		resource, err := wire.ParseAddress(p.Resource)
		if err != nil {
			return nil, fmt.Errorf("positions[%d]: resource: %w", i, err)
		}
		principal, err := wire.ParseAddress(p.Principal)
		if err != nil {
			return nil, fmt.Errorf("positions[%d]: principal: %w", i, err)
		}
		snap, err := parseSnapshot(p.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("positions[%d]: %w", i, err)
		}
		collateral, ok := new(big.Int).SetString(p.Collateral, 10)
		if !ok {
			return nil, fmt.Errorf("positions[%d]: bad collateral %q", i, p.Collateral)
		}
		liability, ok := new(big.Int).SetString(p.Liability, 10)
		if !ok {
			return nil, fmt.Errorf("positions[%d]: bad liability %q", i, p.Liability)
		}
		fix.SetBigPrincipalMetric(resource, principal, snap, oracle.MetricCollateralValue, collateral)
		fix.SetBigPrincipalMetric(resource, principal, snap, oracle.MetricLiabilityValue, liability)
	}

	for i, h := range s.Health {
		resource, err := wire.ParseAddress(h.Resource)
		if err != nil {
			return nil, fmt.Errorf("health[%d]: resource: %w", i, err)
		}
		principal, err := wire.ParseAddress(h.Principal)
		if err != nil {
			return nil, fmt.Errorf("health[%d]: principal: %w", i, err)
		}
		snap, err := parseSnapshot(h.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("health[%d]: %w", i, err)
		}
		verdict := oracle.Unhealthy
		if h.Healthy {
			verdict = oracle.Healthy
		}
		fix.SetHealth(resource, principal, snap, verdict)
	}

	for i, c := range s.Controllers {
		principal, err := wire.ParseAddress(c.Principal)
		if err != nil {
			return nil, fmt.Errorf("controllers[%d]: principal: %w", i, err)
		}
		resources := make([]wire.Address, len(c.Resources))
		for j, raw := range c.Resources {
			if resources[j], err = wire.ParseAddress(raw); err != nil {
				return nil, fmt.Errorf("controllers[%d].resources[%d]: %w", i, j, err)
			}
		}
		fix.SetControllers(principal, oracle.Post, resources...)
	}

	for i, ev := range s.Events {
		emitter, err := wire.ParseAddress(ev.Emitter)
		if err != nil {
			return nil, fmt.Errorf("events[%d]: emitter: %w", i, err)
		}
		topics := make([]wire.Word, len(ev.Topics))
		for j, raw := range ev.Topics {
			if topics[j], err = wire.ParseWord(raw); err != nil {
				return nil, fmt.Errorf("events[%d].topics[%d]: %w", i, j, err)
			}
		}
		fix.Emit(emitter, topics...)
	}

	return fix, nil
}

// buildTransaction encodes the scenario's calls into a payload. A
// single call with no explicit To goes straight to its target;
// everything else becomes a connector batch.
func buildTransaction(s *Scenario, connector wire.Address) (runner.Transaction, error) {
	var tx runner.Transaction

	from, err := wire.ParseAddress(s.Transaction.From)
	if err != nil {
		return tx, fmt.Errorf("transaction.from: %w", err)
	}
	tx.From = from

	if s.Transaction.Data != "" {
		if s.Transaction.To == "" {
			return tx, fmt.Errorf("transaction.to is required with raw data")
		}
		if tx.To, err = wire.ParseAddress(s.Transaction.To); err != nil {
			return tx, fmt.Errorf("transaction.to: %w", err)
		}
		raw := strings.TrimPrefix(s.Transaction.Data, "0x")
		if tx.Data, err = hex.DecodeString(raw); err != nil {
			return tx, fmt.Errorf("transaction.data: %w", err)
		}
		return tx, nil
	}

	calls := s.Transaction.Calls
	if len(calls) == 1 && s.Transaction.To == "" {
		target, err := wire.ParseAddress(calls[0].Target)
		if err != nil {
			return tx, fmt.Errorf("transaction.calls[0].target: %w", err)
		}
		data, err := encodeCall(&calls[0], from)
		if err != nil {
			return tx, fmt.Errorf("transaction.calls[0]: %w", err)
		}
		tx.To = target
		tx.Data = data
		return tx, nil
	}

	items := make([]wire.BatchItem, len(calls))
	for i := range calls {
		target, err := wire.ParseAddress(calls[i].Target)
		if err != nil {
			return tx, fmt.Errorf("transaction.calls[%d].target: %w", i, err)
		}
		onBehalf := from
		if calls[i].OnBehalf != "" {
			if onBehalf, err = wire.ParseAddress(calls[i].OnBehalf); err != nil {
				return tx, fmt.Errorf("transaction.calls[%d].on_behalf: %w", i, err)
			}
		}
		data, err := encodeCall(&calls[i], from)
		if err != nil {
			return tx, fmt.Errorf("transaction.calls[%d]: %w", i, err)
		}
		items[i] = wire.BatchItem{Target: target, OnBehalf: onBehalf, Data: data}
	}
	tx.To = connector
	tx.Data = wire.EncodeBatch(items)
	return tx, nil
}

func encodeCall(c *CallSpec, sender wire.Address) ([]byte, error) {
	addr := func(raw string, fallback wire.Address) (wire.Address, error) {
		if raw == "" {
			return fallback, nil
		}
		return wire.ParseAddress(raw)
	}

	switch c.Op {
	case "deposit":
		receiver, err := addr(c.Receiver, sender)
		if err != nil {
			return nil, fmt.Errorf("receiver: %w", err)
		}
		return wire.EncodeDeposit(c.Assets, receiver), nil
	case "withdraw":
		receiver, err := addr(c.Receiver, sender)
		if err != nil {
			return nil, fmt.Errorf("receiver: %w", err)
		}
		owner, err := addr(c.Owner, sender)
		if err != nil {
			return nil, fmt.Errorf("owner: %w", err)
		}
		return wire.EncodeWithdraw(c.Assets, receiver, owner), nil
	case "borrow":
		receiver, err := addr(c.Receiver, sender)
		if err != nil {
			return nil, fmt.Errorf("receiver: %w", err)
		}
		return wire.EncodeBorrow(c.Assets, receiver), nil
	case "repay":
		receiver, err := addr(c.Receiver, sender)
		if err != nil {
			return nil, fmt.Errorf("receiver: %w", err)
		}
		return wire.EncodeRepay(c.Assets, receiver), nil
	case "transfer_from":
		fromAddr, err := addr(c.From, sender)
		if err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
		toAddr, err := addr(c.To, wire.ZeroAddress)
		if err != nil {
			return nil, fmt.Errorf("to: %w", err)
		}
		return wire.EncodeTransferFrom(fromAddr, toAddr, c.Amount), nil
	case "liquidate":
		violator, err := addr(c.Violator, wire.ZeroAddress)
		if err != nil {
			return nil, fmt.Errorf("violator: %w", err)
		}
		collateral, err := addr(c.Collateral, wire.ZeroAddress)
		if err != nil {
			return nil, fmt.Errorf("collateral: %w", err)
		}
		return wire.EncodeLiquidate(violator, collateral, c.Repay, c.MinYield), nil
	default:
		return nil, fmt.Errorf("unknown op %q", c.Op)
	}
}

func parseSnapshot(s string) (oracle.Snapshot, error) {
	switch s {
	case "pre":
		return oracle.Pre, nil
	case "post":
		return oracle.Post, nil
	default:
		return oracle.Pre, fmt.Errorf("snapshot must be pre or post, got %q", s)
	}
}

func parseMetricKind(s string) (oracle.MetricKind, error) {
	kinds := []oracle.MetricKind{
		oracle.MetricTotalAssets,
		oracle.MetricTotalSupply,
		oracle.MetricAssetBalance,
		oracle.MetricCashAccounting,
		oracle.MetricTotalBorrowed,
		oracle.MetricDeferredChecks,
		oracle.MetricCollateralValue,
		oracle.MetricLiabilityValue,
	}
	for _, k := range kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", s)
}
