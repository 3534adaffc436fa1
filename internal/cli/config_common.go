package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vvka-141/classload/internal/config"
	"github.com/vvka-141/classload/internal/db"
	"github.com/vvka-141/classload/pkg/classload"
)

// buildLoadConfig merges flags, classload.yaml and the environment into a
// LoadConfig. Explicitly set flags win over the file.
func buildLoadConfig(
	cmd *cobra.Command,
	args []string,
	flags *loadFlagValues,
	logger classload.Logger,
) (classload.LoadConfig, error) {
	projectCfg, err := loadProjectConfig(flags.configDir)
	if err != nil {
		return classload.LoadConfig{}, err
	}

	connString, source, err := db.ResolveConnectionString(args[0], db.LoadFromEnvironment(), projectCfg)
	if err != nil && !flags.dryRun {
		return classload.LoadConfig{}, err
	}
	if err == nil {
		logger.Verbose("Connection string taken from %s", source)
	}

	timeout, err := resolveEffectiveTimeout(cmd, projectCfg, flags.timeout)
	if err != nil {
		return classload.LoadConfig{}, err
	}

	batchSize := flags.batchSize
	splitCommit := flags.splitCommit
	if projectCfg != nil {
		if projectCfg.BatchSize != 0 && !cmd.Flags().Changed("batch-size") {
			batchSize = projectCfg.BatchSize
		}
		if projectCfg.SplitCommit && !cmd.Flags().Changed("split-commit") {
			splitCommit = true
		}
	}

	return classload.LoadConfig{
		InputPath:        args[1],
		ConnectionString: connString,
		Timeout:          timeout,
		BatchSize:        batchSize,
		SplitCommit:      splitCommit,
		DryRun:           flags.dryRun,
		Verbose:          getVerboseFlag(cmd),
	}, nil
}

// resolveEffectiveTimeout returns the effective timeout, preferring
// classload.yaml if the flag wasn't set.
func resolveEffectiveTimeout(
	cmd *cobra.Command,
	projectCfg *config.ProjectConfig,
	flagTimeout time.Duration,
) (time.Duration, error) {
	if projectCfg != nil && projectCfg.Timeout != "" && !cmd.Flags().Changed("timeout") {
		parsed, err := projectCfg.TimeoutDuration()
		if err != nil {
			return 0, fmt.Errorf("%w: %w", classload.ErrInvalidConfig, err)
		}
		return parsed, nil
	}
	return flagTimeout, nil
}

// loadProjectConfig loads .env and classload.yaml.
// Returns nil config if classload.yaml does not exist (not an error).
func loadProjectConfig(dir string) (*config.ProjectConfig, error) {
	_ = godotenv.Load()

	projectCfg, err := config.Load(dir)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w: %w", classload.ConfigFileName, classload.ErrInvalidConfig, err)
	}
	return projectCfg, nil
}
