package classload

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Connector establishes the single database connection used by a load run.
type Connector interface {
	// Connect opens a connection. The caller must Close it when done.
	Connect(ctx context.Context) (DBConn, error)
}

// ConnectorFactory builds a Connector for a connection string.
type ConnectorFactory func(connString string, logger Logger) (Connector, error)

// DBConn is the subset of *pgx.Conn the loader needs. It keeps the
// loader testable without a live server.
type DBConn interface {
	// Exec executes a statement outside any explicit transaction
	// (autocommit).
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Begin starts a transaction.
	Begin(ctx context.Context) (pgx.Tx, error)

	// Close closes the connection.
	Close(ctx context.Context) error
}

// Verify *pgx.Conn satisfies DBConn at compile time
var _ DBConn = (*pgx.Conn)(nil)
