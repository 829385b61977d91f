package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardenlab/warden/internal/ruleset"
)

// RulesOptions holds flags for the rules command.
type RulesOptions struct {
	*RootOptions
	ConfigDir string
	Connector string
}

// RuleInfo describes one configured rule for output.
type RuleInfo struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Params  string `json:"params,omitempty"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show the configured rule set",
		Long: `Show which rules are enabled and their parameters.

Examples:
  warden rules --config ./config
  warden rules --connector 0xc0... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigDir, "config", "", "directory of CUE rule configuration")
	cmd.Flags().StringVar(&opts.Connector, "connector", "", "connector address (when no config is given)")

	return cmd
}

func runRules(opts *RulesOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.ConfigDir, opts.Connector)
	if err != nil {
		return err
	}

	infos := []RuleInfo{
		{Name: "account-solvency", Enabled: cfg.Solvency.Enabled},
		{
			Name:    "rate-stability",
			Enabled: cfg.RateStability.Enabled,
			Params:  fmt.Sprintf("drift_bps=%d", cfg.RateStability.DriftBps),
		},
		{
			Name:    "resource-accounting",
			Enabled: cfg.Accounting.Enabled,
			Params:  accountingParams(cfg),
		},
		{Name: "status-check-offload", Enabled: cfg.StatusCheckOffload.Enabled},
		{Name: "transfer-accounting", Enabled: cfg.TransferAccounting.Enabled},
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: infos})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "connector: %s\n\n", cfg.Connector)
	for _, info := range infos {
		state := "enabled"
		if !info.Enabled {
			state = "disabled"
		}
		if info.Params != "" {
			fmt.Fprintf(w, "%-22s %-9s %s\n", info.Name, state, info.Params)
		} else {
			fmt.Fprintf(w, "%-22s %s\n", info.Name, state)
		}
	}
	return nil
}

func accountingParams(cfg *ruleset.Config) string {
	if cfg.Accounting.Tolerance == nil {
		return "tolerance=0"
	}
	return "tolerance=" + cfg.Accounting.Tolerance.String()
}
