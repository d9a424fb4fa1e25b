package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gitgood-project/gitgood/pkg/color"
	"github.com/gitgood-project/gitgood/pkg/config"
	"github.com/gitgood-project/gitgood/pkg/errclass"
	"github.com/gitgood-project/gitgood/pkg/logging"
	"github.com/gitgood-project/gitgood/pkg/metrics"
)

var (
	jsonOutput bool
	noColor    bool
	configPath string

	cfg    *config.Config
	logger *logging.Logger
	runID  string

	rootCmd = newRootCmd()
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gitgood",
		Short: "gitgood - anchor git commits on the Cardano ledger",
		Long: `gitgood records the latest commit of a git repository on the Cardano
ledger. Each new commit is stored locally and published as transaction
metadata under a per-project label, then checked against the chain indexer.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
	pf := cmd.PersistentFlags()
	pf.BoolVar(&jsonOutput, "json", false, "output in JSON format")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.StringVar(&configPath, "config", "", "config file (default ~/.gitgood/config.yaml)")
	pf.String("store", "", "path of the local commit store")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-file", "", "write logs to a rotated file instead of stderr")
	pf.String("metrics-file", "", "write Prometheus metrics to this textfile after the run")
	return cmd
}

// setup loads configuration and wires logging and metrics for the command.
func setup(cmd *cobra.Command, _ []string) error {
	color.Init(noColor)

	var opts []config.LoadOption
	if cmd == configInitCmd {
		opts = append(opts, config.AllowMissing())
	}
	loaded, err := config.Load(configPath, cmd.Flags(), opts...)
	if err != nil {
		return err
	}
	cfg = loaded

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	if cfg.Logging.File != "" {
		logger = logging.NewFileLogger(level, cfg.Logging.File)
	} else {
		logger = logging.NewLogger(level)
	}
	runID = uuid.NewString()
	logger = logger.WithFields(map[string]any{"run_id": runID, "command": cmd.Name()})
	logging.SetGlobal(logger)

	if cfg.Metrics.File != "" {
		metrics.Init()
	}
	return nil
}

// teardown runs after every command, including failed ones: it writes the
// metrics textfile and closes the logger opened by setup.
func teardown() {
	if cfg != nil && cfg.Metrics.File != "" && metrics.Enabled() {
		if err := metrics.Default().WriteTextfile(cfg.Metrics.File); err != nil {
			logger.ErrorErr("write metrics textfile", err, map[string]any{"path": cfg.Metrics.File})
		}
	}
	if logger != nil {
		if err := logger.Close(); err != nil {
			fmtErr("close log: %v", err)
		}
		logger = nil
	}
	cfg = nil
}

func init() {
	cobra.OnFinalize(teardown)
}

// Execute runs the root command and exits with the code of the error class.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmtErr("%v", err)
		if hint := suggestFix(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(errclass.ExitCode(err))
	}
}

// outputJSON prints v as JSON if --json flag is set, otherwise does nothing.
func outputJSON(v any) error {
	if !jsonOutput {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
