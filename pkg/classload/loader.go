package classload

import "context"

// Loader replaces the contents of the classifications table with the
// rows derived from an input CSV.
type Loader interface {
	// Load runs the full pipeline: read, derive, connect, clear, upsert,
	// commit, close. The returned result is nil on error.
	Load(ctx context.Context, config LoadConfig) (*LoadResult, error)
}
