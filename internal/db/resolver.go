package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/classload/internal/config"
	"github.com/vvka-141/classload/pkg/classload"
)

// EnvVars represents the environment variables consulted when the
// connection argument is "-".
// See: https://www.postgresql.org/docs/current/libpq-envars.html
type EnvVars struct {
	CLASSLOAD_CONNECTION_STRING string // Full connection string for this tool
	DATABASE_URL                string // Full connection string (Heroku/Rails convention)
	PGHOST                      string // PostgreSQL server host
	PGPORT                      string // PostgreSQL server port
	PGUSER                      string // PostgreSQL username
	PGPASSWORD                  string // PostgreSQL password (discouraged, use .pgpass instead)
	PGDATABASE                  string // Default database name
	PGSSLMODE                   string // SSL mode
}

// LoadFromEnvironment loads connection-related environment variables.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		CLASSLOAD_CONNECTION_STRING: os.Getenv("CLASSLOAD_CONNECTION_STRING"),
		DATABASE_URL:                os.Getenv("DATABASE_URL"),
		PGHOST:                      os.Getenv("PGHOST"),
		PGPORT:                      os.Getenv("PGPORT"),
		PGUSER:                      os.Getenv("PGUSER"),
		PGPASSWORD:                  os.Getenv("PGPASSWORD"),
		PGDATABASE:                  os.Getenv("PGDATABASE"),
		PGSSLMODE:                   os.Getenv("PGSSLMODE"),
	}
}

// hasGranular reports whether any libpq PG* variable is set.
func (e *EnvVars) hasGranular() bool {
	return e.PGHOST != "" || e.PGPORT != "" || e.PGUSER != "" ||
		e.PGPASSWORD != "" || e.PGDATABASE != "" || e.PGSSLMODE != ""
}

// Connection sources reported by ResolveConnectionString.
const (
	SourceArgument     = "argument"
	SourceClassloadEnv = "CLASSLOAD_CONNECTION_STRING"
	SourceDatabaseURL  = "DATABASE_URL"
	SourceConfigFile   = classload.ConfigFileName
	SourcePGEnv        = "PG* environment variables"
)

// ResolveConnectionString turns the connection argument into a connection
// string and reports where it came from.
//
// Any value other than "-" is used as given. For "-" the precedence is:
//
// 1. CLASSLOAD_CONNECTION_STRING
// 2. DATABASE_URL
// 3. connection in classload.yaml
// 4. PGHOST, PGPORT, PGUSER, PGPASSWORD, PGDATABASE, PGSSLMODE
//
// If none of these is set the error wraps classload.ErrInvalidConfig.
func ResolveConnectionString(
	arg string,
	envVars *EnvVars,
	projectConfig *config.ProjectConfig,
) (string, string, error) {
	if arg != classload.ConnectionFromEnvironment {
		if arg == "" {
			return "", "", fmt.Errorf("connection string is empty: %w", classload.ErrInvalidConfig)
		}
		return arg, SourceArgument, nil
	}

	if envVars == nil {
		envVars = &EnvVars{}
	}

	switch {
	case envVars.CLASSLOAD_CONNECTION_STRING != "":
		return envVars.CLASSLOAD_CONNECTION_STRING, SourceClassloadEnv, nil
	case envVars.DATABASE_URL != "":
		return envVars.DATABASE_URL, SourceDatabaseURL, nil
	case projectConfig != nil && projectConfig.Connection != "":
		return projectConfig.Connection, SourceConfigFile, nil
	case envVars.hasGranular():
		cfg, err := resolveFromGranularParams(envVars)
		if err != nil {
			return "", "", err
		}
		return BuildConnectionString(cfg), SourcePGEnv, nil
	}

	return "", "", fmt.Errorf(
		"no connection configured for %q\n"+
			"Provide one of:\n"+
			"  1. CLASSLOAD_CONNECTION_STRING or DATABASE_URL\n"+
			"  2. connection: in %s\n"+
			"  3. PGHOST/PGPORT/PGUSER/PGDATABASE environment variables: %w",
		classload.ConnectionFromEnvironment, classload.ConfigFileName, classload.ErrInvalidConfig)
}

// resolveFromGranularParams builds a ConnectionConfig from the PG*
// environment variables, falling back to libpq defaults.
func resolveFromGranularParams(envVars *EnvVars) (*classload.ConnectionConfig, error) {
	cfg := &classload.ConnectionConfig{
		AdditionalParams: make(map[string]string),
	}

	cfg.Host = envVars.PGHOST
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}

	cfg.Port = 5432
	if envVars.PGPORT != "" {
		port, err := strconv.Atoi(envVars.PGPORT)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid $PGPORT value '%s': must be an integer between 1 and 65535: %w",
				envVars.PGPORT, classload.ErrInvalidConfig)
		}
		cfg.Port = port
	}

	// Username: PGUSER > current OS user
	cfg.Username = envVars.PGUSER
	if cfg.Username == "" {
		if currentUser := os.Getenv("USER"); currentUser != "" {
			cfg.Username = currentUser
		} else if currentUser := os.Getenv("USERNAME"); currentUser != "" {
			cfg.Username = currentUser
		}
	}

	cfg.Password = envVars.PGPASSWORD

	// Database defaults to the user name, as libpq does
	cfg.Database = envVars.PGDATABASE
	if cfg.Database == "" {
		cfg.Database = cfg.Username
	}

	cfg.SSLMode = envVars.PGSSLMODE
	if cfg.SSLMode == "" {
		cfg.SSLMode = "prefer"
	}

	return cfg, nil
}
