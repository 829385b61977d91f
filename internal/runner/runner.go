// Package runner wires the verification pipeline: call-tree parsing,
// batch unwrapping, affected-set construction, and parallel rule
// evaluation over one transaction's two frozen snapshots.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/wardenlab/warden/internal/affect"
	"github.com/wardenlab/warden/internal/call"
	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/rules"
	"github.com/wardenlab/warden/internal/wire"
)

// Transaction is the externally-executed transaction under
// verification: its envelope sender, its target, and its raw payload.
// The runner only observes it; execution happened elsewhere.
type Transaction struct {
	From wire.Address
	To   wire.Address
	Data []byte
}

// Report is the outcome of one verification run. Violations are
// sorted by rule, resource, principal so reports are deterministic
// regardless of rule scheduling.
type Report struct {
	RunID      string            `json:"run_id"`
	Leaves     int               `json:"leaves"`
	Entries    int               `json:"entries"`
	Violations []rules.Violation `json:"violations,omitempty"`
}

// OK reports whether the transaction passed every rule. The host is
// expected to reject the transaction when OK is false.
func (r *Report) OK() bool {
	return len(r.Violations) == 0
}

// Runner executes every registered rule against one transaction.
// Immutable after construction and safe for concurrent use: all reads
// go against frozen snapshots, so rules need no synchronization.
type Runner struct {
	oracle    oracle.Oracle
	registry  wire.Registry
	connector wire.Address
	rules     []rules.Rule
	tokens    RunTokenGenerator
	logger    *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTokenGenerator overrides the run-token generator. Tests use
// FixedGenerator for deterministic reports.
func WithTokenGenerator(g RunTokenGenerator) Option {
	return func(r *Runner) {
		r.tokens = g
	}
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// New creates a Runner. The rules slice is copied; its order is
// irrelevant to correctness but preserved for log readability.
func New(o oracle.Oracle, registry wire.Registry, connector wire.Address, ruleSet []rules.Rule, opts ...Option) *Runner {
	r := &Runner{
		oracle:    o,
		registry:  registry,
		connector: connector,
		rules:     append([]rules.Rule(nil), ruleSet...),
		tokens:    UUIDv7Generator{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Verify runs the full pipeline for one transaction.
//
// The error return covers only environmental failures (an event log
// that cannot be read at all); invariant breaches are reported inside
// the Report, never as an error, and evaluation of every rule and
// every entry runs to completion regardless of earlier violations.
func (r *Runner) Verify(ctx context.Context, tx Transaction) (*Report, error) {
	runID := r.tokens.Generate()
	log := r.logger.With("run_id", runID)

	parser := &call.Parser{Registry: r.registry, Connector: r.connector}
	root := parser.Parse(tx.To, tx.From, tx.Data)

	unwrapper := &call.Unwrapper{Registry: r.registry, Oracle: r.oracle, Logger: log}
	leaves := unwrapper.Unwrap(ctx, root)

	builder := &affect.Builder{Oracle: r.oracle, Logger: log}
	entries := builder.Build(ctx, leaves)

	events, err := r.oracle.Events(ctx)
	if err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}

	env := &rules.Env{
		Oracle:  r.oracle,
		Log:     events,
		Leaves:  leaves,
		Entries: entries,
		Logger:  log,
	}

	log.Debug("worklist built",
		"leaves", len(leaves),
		"entries", len(entries),
		"rules", len(r.rules),
	)

	// One goroutine per rule. Rules share the immutable Env and the
	// frozen snapshots, so the wall-clock cost is bounded by the
	// slowest single rule, not the sum of all rules.
	results := make([][]rules.Violation, len(r.rules))
	g, gctx := errgroup.WithContext(ctx)
	for i, rule := range r.rules {
		g.Go(func() error {
			results[i] = rule.Evaluate(gctx, env)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:   runID,
		Leaves:  len(leaves),
		Entries: len(entries),
	}
	for _, violations := range results {
		report.Violations = append(report.Violations, violations...)
	}
	for i := range report.Violations {
		report.Violations[i].Reason = norm.NFC.String(report.Violations[i].Reason)
	}
	sortViolations(report.Violations)

	for _, v := range report.Violations {
		log.Error("invariant violated",
			"rule", v.Rule,
			"resource", v.Resource.String(),
			"principal", v.Principal.String(),
			"reason", v.Reason,
		)
	}
	if report.OK() {
		log.Info("transaction verified",
			"leaves", report.Leaves,
			"entries", report.Entries,
		)
	}
	return report, nil
}

// sortViolations orders violations by rule name, then resource, then
// principal.
func sortViolations(vs []rules.Violation) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].Rule != vs[j].Rule {
			return vs[i].Rule < vs[j].Rule
		}
		if vs[i].Resource != vs[j].Resource {
			return vs[i].Resource.Less(vs[j].Resource)
		}
		return vs[i].Principal.Less(vs[j].Principal)
	})
}
