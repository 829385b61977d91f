// Package ruleset turns a CUE configuration into the set of rules the
// runner evaluates. Configuration is declarative: each rule is toggled
// and parameterized under its own field, and the compiler rejects
// malformed values with source positions before anything runs.
package ruleset

import (
	"fmt"
	"math/big"

	"cuelang.org/go/cue"

	"github.com/wardenlab/warden/internal/rules"
	"github.com/wardenlab/warden/internal/wire"
)

// Config is the compiled verification configuration.
type Config struct {
	// Connector is the batch/indirection entry point. Required:
	// without it the parser cannot distinguish wrapped calls from
	// direct ones.
	Connector wire.Address

	Solvency           RuleToggle
	RateStability      RateStabilityConfig
	Accounting         AccountingConfig
	StatusCheckOffload RuleToggle
	TransferAccounting RuleToggle
}

// RuleToggle enables or disables a parameterless rule.
type RuleToggle struct {
	Enabled bool
}

// RateStabilityConfig parameterizes the conversion-rate drift bound.
type RateStabilityConfig struct {
	Enabled  bool
	DriftBps int64
}

// AccountingConfig parameterizes the balance-versus-cash divergence
// tolerance. Tolerance is an absolute amount in base units; nil means
// exact.
type AccountingConfig struct {
	Enabled   bool
	Tolerance *big.Int
}

// Default returns the configuration used when no CUE files are given:
// every rule enabled with its standard parameters. The connector is
// left zero and must be set by the caller.
func Default() *Config {
	return &Config{
		Solvency:           RuleToggle{Enabled: true},
		RateStability:      RateStabilityConfig{Enabled: true, DriftBps: rules.DefaultRateDriftBps},
		Accounting:         AccountingConfig{Enabled: true},
		StatusCheckOffload: RuleToggle{Enabled: true},
		TransferAccounting: RuleToggle{Enabled: true},
	}
}

// Build constructs the enabled rules in a fixed order. Order does not
// affect results, only log readability.
func (c *Config) Build() []rules.Rule {
	var set []rules.Rule
	if c.Solvency.Enabled {
		set = append(set, rules.NewSolvency())
	}
	if c.RateStability.Enabled {
		set = append(set, rules.NewRateStability(c.RateStability.DriftBps))
	}
	if c.Accounting.Enabled {
		set = append(set, rules.NewAccounting(c.Accounting.Tolerance))
	}
	if c.StatusCheckOffload.Enabled {
		set = append(set, rules.NewStatusCheckOffload(c.Connector))
	}
	if c.TransferAccounting.Enabled {
		set = append(set, rules.NewTransferAccounting())
	}
	return set
}

// CompileConfig parses a CUE value into a Config. The value should be
// the warden struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`warden: { connector: "0x..." }`)
//	cfg, err := CompileConfig(v.LookupPath(cue.ParsePath("warden")))
//
// Unknown rule names are rejected so that a typoed rule cannot be
// silently skipped.
func CompileConfig(v cue.Value) (*Config, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := Default()

	connVal := v.LookupPath(cue.ParsePath("connector"))
	if !connVal.Exists() {
		return nil, &CompileError{
			Field:   "connector",
			Message: "connector address is required",
			Pos:     v.Pos(),
		}
	}
	connStr, err := connVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	conn, err := wire.ParseAddress(connStr)
	if err != nil {
		return nil, &CompileError{
			Field:   "connector",
			Message: err.Error(),
			Pos:     connVal.Pos(),
		}
	}
	cfg.Connector = conn

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return cfg, nil
	}

	iter, err := rulesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		rv := iter.Value()

		enabled, err := parseEnabled(rv)
		if err != nil {
			return nil, err
		}

		switch name {
		case "account_solvency":
			cfg.Solvency.Enabled = enabled
		case "rate_stability":
			cfg.RateStability.Enabled = enabled
			drift, err := parseDriftBps(rv)
			if err != nil {
				return nil, err
			}
			if drift > 0 {
				cfg.RateStability.DriftBps = drift
			}
		case "resource_accounting":
			cfg.Accounting.Enabled = enabled
			tol, err := parseTolerance(rv)
			if err != nil {
				return nil, err
			}
			cfg.Accounting.Tolerance = tol
		case "status_check_offload":
			cfg.StatusCheckOffload.Enabled = enabled
		case "transfer_accounting":
			cfg.TransferAccounting.Enabled = enabled
		default:
			return nil, &CompileError{
				Field:   "rules." + name,
				Message: "unknown rule",
				Pos:     rv.Pos(),
			}
		}
	}

	return cfg, nil
}

// parseEnabled reads the enabled flag of a rule block. A bare bool is
// accepted as shorthand for {enabled: bool}; a missing flag means
// enabled.
func parseEnabled(v cue.Value) (bool, error) {
	if b, err := v.Bool(); err == nil {
		return b, nil
	}
	enabledVal := v.LookupPath(cue.ParsePath("enabled"))
	if !enabledVal.Exists() {
		return true, nil
	}
	b, err := enabledVal.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func parseDriftBps(v cue.Value) (int64, error) {
	driftVal := v.LookupPath(cue.ParsePath("drift_bps"))
	if !driftVal.Exists() {
		return 0, nil
	}
	drift, err := driftVal.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if drift <= 0 {
		return 0, &CompileError{
			Field:   "rules.rate_stability.drift_bps",
			Message: fmt.Sprintf("must be a positive integer, got %d", drift),
			Pos:     driftVal.Pos(),
		}
	}
	return drift, nil
}

// parseTolerance reads the accounting tolerance. Tolerances are
// decimal strings because base-unit amounts overflow int64.
func parseTolerance(v cue.Value) (*big.Int, error) {
	tolVal := v.LookupPath(cue.ParsePath("tolerance"))
	if !tolVal.Exists() {
		return nil, nil
	}
	tolStr, err := tolVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	tol, ok := new(big.Int).SetString(tolStr, 10)
	if !ok || tol.Sign() < 0 {
		return nil, &CompileError{
			Field:   "rules.resource_accounting.tolerance",
			Message: fmt.Sprintf("must be a non-negative decimal string, got %q", tolStr),
			Pos:     tolVal.Pos(),
		}
	}
	return tol, nil
}
