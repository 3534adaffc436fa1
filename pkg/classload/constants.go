package classload

// Exit codes for semantic error classification.
//   - 0: Success
//   - 1: Usage error or unclassified failure
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Load completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 1  // Wrong argument count or invalid flags
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration
	ExitInputError      = 11 // Input CSV missing or malformed
	ExitConnectionError = 12 // Failed to connect to database
	ExitStatementFailed = 13 // SQL execution failed
)

// Destination table contract. The upsert relies on the named constraint,
// so these must match the deployed schema exactly.
const (
	TableName      = "classifications"
	ConstraintName = "classifications_pk"
)

// Required input columns.
const (
	LabelColumn     = "label"
	ClusterIDColumn = "cluster_id"
)

const (
	// DefaultBatchSize is the number of upserts queued per round trip.
	DefaultBatchSize = 500

	// DefaultApplicationName is reported to the server unless the
	// connection string sets its own application_name.
	DefaultApplicationName = "classload"

	// ConfigFileName is the optional project configuration file.
	ConfigFileName = "classload.yaml"

	// ConnectionFromEnvironment as the connection argument asks the CLI
	// to resolve the target from the environment and classload.yaml.
	ConnectionFromEnvironment = "-"
)
