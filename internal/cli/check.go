package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wardenlab/warden/internal/ruleset"
	"github.com/wardenlab/warden/internal/runner"
	"github.com/wardenlab/warden/internal/store"
	"github.com/wardenlab/warden/internal/wire"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	DBPath    string
	ConfigDir string
	Connector string
}

// CheckResult holds the verification outcome for one transaction.
type CheckResult struct {
	Transaction string         `json:"transaction"`
	Report      *runner.Report `json:"report,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// CheckSummary aggregates the outcome over all checked transactions.
type CheckSummary struct {
	Results    []CheckResult `json:"results"`
	Checked    int           `json:"checked"`
	Violations int           `json:"violations"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check [tx-id...]",
		Short: "Verify recorded transactions",
		Long: `Verify recorded transactions against the configured rules.

Reads transactions and their snapshot observations from the database
and evaluates every rule. With no arguments, checks every recorded
transaction.

Exit codes:
  0 - All transactions passed
  1 - One or more invariant violations
  2 - Command error (missing database, bad config)

Examples:
  warden check --db warden.db --config ./config
  warden check tx-42 --db warden.db --connector 0xc0...
  warden check --db warden.db --config ./config --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the recorded-transaction database (required)")
	cmd.Flags().StringVar(&opts.ConfigDir, "config", "", "directory of CUE rule configuration")
	cmd.Flags().StringVar(&opts.Connector, "connector", "", "connector address (when no config is given)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runCheck(opts *CheckOptions, args []string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.ConfigDir, opts.Connector)
	if err != nil {
		return err
	}

	if _, err := os.Stat(opts.DBPath); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.DBPath))
	}
	st, err := store.Open(opts.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	txIDs := args
	if len(txIDs) == 0 {
		if txIDs, err = st.Transactions(ctx); err != nil {
			return WrapExitError(ExitCommandError, "list transactions", err)
		}
		if len(txIDs) == 0 {
			return NewExitError(ExitCommandError, "no recorded transactions in database")
		}
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	summary := CheckSummary{Checked: len(txIDs)}
	for _, txID := range txIDs {
		result := checkTransaction(ctx, st, cfg, txID, formatter)
		summary.Results = append(summary.Results, result)
		if result.Report != nil {
			summary.Violations += len(result.Report.Violations)
		}
	}

	if opts.Format == "json" {
		return outputCheckJSON(formatter, summary)
	}
	return outputCheckText(formatter, summary)
}

// loadConfig resolves the rule configuration: a CUE directory when
// given, otherwise defaults with an explicit connector flag.
func loadConfig(configDir, connector string) (*ruleset.Config, error) {
	if configDir != "" {
		cfg, err := ruleset.Load(configDir)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "load config", err)
		}
		return cfg, nil
	}

	if connector == "" {
		return nil, NewExitError(ExitCommandError, "either --config or --connector is required")
	}
	addr, err := wire.ParseAddress(connector)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "parse connector", err)
	}
	cfg := ruleset.Default()
	cfg.Connector = addr
	return cfg, nil
}

// checkTransaction verifies one recorded transaction against the
// replay oracle. Failures to load or verify are captured in the
// result, not fatal: remaining transactions still get checked.
func checkTransaction(ctx context.Context, st *store.Store, cfg *ruleset.Config, txID string, formatter *OutputFormatter) CheckResult {
	result := CheckResult{Transaction: txID}

	rec, err := st.ReadTransaction(ctx, txID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result.Error = "transaction not recorded"
		} else {
			result.Error = err.Error()
		}
		return result
	}

	formatter.VerboseLog("checking %s: %s -> %s (%d bytes)", txID, rec.From, rec.To, len(rec.Data))

	r := runner.New(st.Oracle(txID), wire.DefaultRegistry(), cfg.Connector, cfg.Build())
	report, err := r.Verify(ctx, runner.Transaction{From: rec.From, To: rec.To, Data: rec.Data})
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Report = report
	return result
}

func outputCheckJSON(formatter *OutputFormatter, summary CheckSummary) error {
	status := "ok"
	var cliErr *CLIError
	if summary.Violations > 0 {
		status = "error"
		cliErr = &CLIError{
			Code:    "E_VIOLATION",
			Message: fmt.Sprintf("%d invariant violation(s)", summary.Violations),
		}
	}
	if err := formatter.JSON(CLIResponse{Status: status, Data: summary, Error: cliErr}); err != nil {
		return err
	}
	return checkExit(summary)
}

func outputCheckText(formatter *OutputFormatter, summary CheckSummary) error {
	w := formatter.Writer
	for _, result := range summary.Results {
		switch {
		case result.Error != "":
			fmt.Fprintf(w, "? %s: %s\n", result.Transaction, result.Error)
		case result.Report.OK():
			fmt.Fprintf(w, "ok %s (leaves=%d entries=%d)\n",
				result.Transaction, result.Report.Leaves, result.Report.Entries)
		default:
			fmt.Fprintf(w, "FAIL %s\n", result.Transaction)
			for _, v := range result.Report.Violations {
				fmt.Fprintf(w, "  %s\n", v)
			}
		}
	}

	fmt.Fprintf(w, "\nChecked %d transaction(s), %d violation(s)\n", summary.Checked, summary.Violations)
	return checkExit(summary)
}

func checkExit(summary CheckSummary) error {
	if summary.Violations > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invariant violation(s)", summary.Violations))
	}
	for _, result := range summary.Results {
		if result.Error != "" {
			return NewExitError(ExitCommandError, fmt.Sprintf("transaction %s: %s", result.Transaction, result.Error))
		}
	}
	return nil
}
