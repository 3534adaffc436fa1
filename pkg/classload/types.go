package classload

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InputRow is one data row of the input CSV.
type InputRow struct {
	// Line is the 1-based record number in the file (the header is line 1).
	Line int

	// Label is the raw URL string identifying the classified resource.
	Label string

	// ClusterID is the opaque classification identifier, copied verbatim.
	ClusterID string
}

// ClassificationRow is the decomposed form of an InputRow, one row of
// the classifications table.
type ClassificationRow struct {
	URLScheme string

	// URLHost is nil when the URL has no authority host.
	URLHost *string

	URLPath string

	// Class is nil when the input cluster_id cell was empty.
	Class *string

	// Line is the input line the row was derived from (for error reporting).
	Line int

	// Label is the original URL (for error reporting).
	Label string
}

// Key returns the conflict key of the row.
func (r ClassificationRow) Key() RowKey {
	k := RowKey{Scheme: r.URLScheme, Path: r.URLPath}
	if r.URLHost != nil {
		k.HasHost = true
		k.Host = *r.URLHost
	}
	return k
}

// RowKey identifies a row by (url_scheme, url_host, url_path).
// A missing host compares equal to another missing host.
type RowKey struct {
	Scheme  string
	HasHost bool
	Host    string
	Path    string
}

// String renders the key for logs.
func (k RowKey) String() string {
	host := "NULL"
	if k.HasHost {
		host = k.Host
	}
	return fmt.Sprintf("(%q, %s, %q)", k.Scheme, host, k.Path)
}

// LoadConfig contains all parameters needed for a load run.
type LoadConfig struct {
	// InputPath is the CSV file with label and cluster_id columns
	InputPath string

	// ConnectionString is the PostgreSQL connection string
	// (URI, keyword/value DSN, or ADO.NET format)
	ConnectionString string

	// Timeout bounds the whole run; zero means no deadline
	Timeout time.Duration

	// BatchSize is the number of upserts queued per round trip;
	// zero means DefaultBatchSize
	BatchSize int

	// SplitCommit commits the table clear separately from the upserts,
	// reproducing the original two-commit behavior. A failed upsert then
	// leaves the table empty or partially populated.
	SplitCommit bool

	// DryRun reads and derives rows without connecting to the database
	DryRun bool

	// Verbose enables detailed logging
	Verbose bool
}

// Validate checks if the LoadConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c *LoadConfig) Validate() error {
	var errs []error

	if c.InputPath == "" {
		errs = append(errs, fmt.Errorf("InputPath is required: %w", ErrInvalidConfig))
	}

	if c.ConnectionString == "" && !c.DryRun {
		errs = append(errs, fmt.Errorf("ConnectionString is required: %w", ErrInvalidConfig))
	}

	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", ErrInvalidConfig))
	}

	if c.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("batch size cannot be negative: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// LoadResult summarizes a completed load run.
type LoadResult struct {
	RunID uuid.UUID

	// RowsRead is the number of data rows in the input
	RowsRead int

	// DuplicateKeys is the number of input rows whose key was already seen;
	// their class overwrote the earlier value
	DuplicateKeys int

	// RowsDeleted is the number of rows removed by the table clear
	RowsDeleted int64

	// RowsUpserted is the number of distinct rows written
	RowsUpserted int64

	Duration time.Duration

	DryRun bool
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
	AppName  string

	// ConnectTimeout is sent as connect_timeout when positive
	ConnectTimeout time.Duration

	// AdditionalParams are passed through as query parameters
	AdditionalParams map[string]string
}

// Redacted renders the target without the password, for logs.
func (c *ConnectionConfig) Redacted() string {
	user := c.Username
	if user == "" {
		user = "(default user)"
	}
	return fmt.Sprintf("%s@%s:%d/%s (sslmode=%s)", user, c.Host, c.Port, c.Database, c.SSLMode)
}
