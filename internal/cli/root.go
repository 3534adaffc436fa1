package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/classload/internal/db"
	"github.com/vvka-141/classload/internal/logging"
	"github.com/vvka-141/classload/internal/services"
	"github.com/vvka-141/classload/pkg/classload"
)

// newConnector is swapped out by tests to keep them off the network.
var newConnector classload.ConnectorFactory = db.NewConnector

type loadFlagValues struct {
	timeout     time.Duration
	batchSize   int
	splitCommit bool
	dryRun      bool
	configDir   string
	version     bool
}

// NewRootCommand builds the classload command with its own flag state.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *loadFlagValues) {
	flags := &loadFlagValues{}

	cmd := &cobra.Command{
		Use:   "classload " + argsUsage,
		Short: "Replace the classifications table with the contents of a CSV file",
		Long: `classload reads a CSV file with label and cluster_id columns, splits each
label URL into scheme, host and path, and replaces the contents of the
PostgreSQL table classifications with the result.

By default the table is cleared and repopulated in a single transaction, so
a failed run leaves the previous contents in place. --split-commit commits
the clear on its own first; a failure after that leaves the table empty or
partially populated.

Arguments:
  database_connection_string  PostgreSQL URI, keyword/value string or ADO.NET
                              string. Use "-" to read it from
                              CLASSLOAD_CONNECTION_STRING, DATABASE_URL,
                              classload.yaml or the PG* variables, in that order.
  input_csv                   CSV file with a header row containing label and
                              cluster_id

Examples:
  classload postgresql://loader@db.internal/cartograph export.csv
  classload - export.csv --batch-size 1000 -v
  classload - export.csv --dry-run

Exit Codes:
  0  - Success
  1  - Usage error or unclassified failure
  3  - Panic or unexpected system error
  10 - Invalid configuration
  11 - Input file missing or malformed
  12 - Database connection failed
  13 - SQL statement failed`,
		Args:         RequireConnectionAndInput,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, args, flags)
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Bound the whole run (e.g. 30s, 5m); 0 means no limit")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", classload.DefaultBatchSize, "Number of upserts sent per round trip")
	cmd.Flags().BoolVar(&flags.splitCommit, "split-commit", false, "Commit the table clear before uploading (non-atomic)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Read and derive rows without touching the database")
	cmd.Flags().StringVar(&flags.configDir, "config", ".", "Directory containing "+classload.ConfigFileName)
	cmd.Flags().BoolVar(&flags.version, "version", false, "Print version information and exit")

	return cmd, flags
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

func runLoad(cmd *cobra.Command, args []string, flags *loadFlagValues) error {
	if flags.version {
		printVersionInfo(cmd.OutOrStdout(), cmd.ErrOrStderr())
		return nil
	}

	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLoggerTo(cmd.OutOrStdout(), cmd.ErrOrStderr(), verbose)

	config, err := buildLoadConfig(cmd, args, flags, logger)
	if err != nil {
		return err
	}

	loader := services.NewClassificationLoader(newConnector, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.ErrOrStderr(), "\n[INTERRUPT] Received interrupt signal, cancelling load...")
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := loader.Load(ctx, config)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	logger.Verbose("Run %s: read %d rows (%d repeated keys), deleted %d, upserted %d in %s",
		result.RunID, result.RowsRead, result.DuplicateKeys,
		result.RowsDeleted, result.RowsUpserted, result.Duration.Round(time.Millisecond))
	return nil
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
