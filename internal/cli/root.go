// Package cli defines the cobra commands of interviewctl.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"interviewer/pkg/logx"
	"interviewer/pkg/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath   string
	dbPath       string
	envFile      string
	debug        bool
	debugDomains string
	pretty       bool
}

// defaultDBPath is where results are stored unless --db is given.
const defaultDBPath = ".interviewer/sessions.db"

// NewRootCommand builds the interviewctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "interviewctl",
		Short: "Run and inspect multi-phase interview sessions",
		Long: `interviewctl drives interview sessions against a foundry inference
service: it validates session definitions, runs them phase by phase,
stores the results and serves the session API.`,
		Version:       version.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Foundry connection config (JSON); FOUNDRY_* env vars override it")
	flags.StringVar(&opts.dbPath, "db", defaultDBPath, "SQLite database for session results")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before anything else (missing file is ignored)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&opts.debugDomains, "debug-domains", "", "Comma-separated debug domains (foundry,orchestrator,agent)")
	flags.BoolVar(&opts.pretty, "pretty", false, "Indent JSON output even when stdout is not a terminal")

	root.AddCommand(
		newValidateCommand(opts),
		newRunCommand(opts),
		newHistoryCommand(opts),
		newCostCommand(opts),
		newServeCommand(opts),
		newSecretsCommand(opts),
	)
	return root
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (o *globalOptions) setup(_ *cobra.Command) error {
	if o.envFile != "" {
		if _, err := os.Stat(o.envFile); err == nil {
			if err := godotenv.Load(o.envFile); err != nil {
				return fmt.Errorf("failed to load %s: %w", o.envFile, err)
			}
		}
	}

	if o.debug || o.debugDomains != "" {
		var domains []string
		if o.debugDomains != "" {
			domains = strings.Split(o.debugDomains, ",")
		}
		logx.SetDebug(true, domains...)
	}
	return nil
}
