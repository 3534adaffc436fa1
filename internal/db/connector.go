package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/classload/pkg/classload"
)

// StandardConnector opens a single pgx connection using the credentials
// carried by the connection string.
type StandardConnector struct {
	connConfig *pgx.ConnConfig
	target     *classload.ConnectionConfig
	logger     classload.Logger
}

// NewStandardConnector parses connString and prepares a connector for it.
// Parse failures wrap classload.ErrInvalidConfig; nothing is dialed here.
func NewStandardConnector(connString string, logger classload.Logger) (*StandardConnector, error) {
	normalized, err := NormalizeConnectionString(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w: %w", classload.ErrInvalidConfig, err)
	}

	connConfig, err := pgx.ParseConfig(normalized)
	if err != nil {
		// pgx echoes the input in some parse errors; keep secrets out of logs
		return nil, fmt.Errorf("invalid connection string: %w: %s", classload.ErrInvalidConfig, redactParseError(err, connString))
	}

	if _, ok := connConfig.RuntimeParams["application_name"]; !ok {
		connConfig.RuntimeParams["application_name"] = classload.DefaultApplicationName
	}

	if logger != nil {
		connConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
			logger.Verbose("server %s: %s", notice.Severity, notice.Message)
		}
	}

	return &StandardConnector{
		connConfig: connConfig,
		target:     describeTarget(normalized, connConfig),
		logger:     logger,
	}, nil
}

// NewConnector builds the Connector for a connection string. It has the
// classload.ConnectorFactory signature.
func NewConnector(connString string, logger classload.Logger) (classload.Connector, error) {
	return NewStandardConnector(connString, logger)
}

// Target returns the connection target with the password removed.
func (c *StandardConnector) Target() string {
	return c.target.Redacted()
}

// Connect dials the server and completes the startup handshake.
// Failures wrap classload.ErrConnectionFailed.
func (c *StandardConnector) Connect(ctx context.Context) (classload.DBConn, error) {
	if c.logger != nil {
		c.logger.Verbose("Connecting to %s", c.Target())
	}

	conn, err := pgx.ConnectConfig(ctx, c.connConfig.Copy())
	if err != nil {
		return nil, wrapConnectionError(err, c.target.Host, c.target.Port, c.target.Database)
	}
	return conn, nil
}

// describeTarget prefers the values pgx resolved (it applies PG* defaults)
// and takes sslmode from the string itself since pgx turns it into a TLS config.
func describeTarget(connString string, cc *pgx.ConnConfig) *classload.ConnectionConfig {
	target := &classload.ConnectionConfig{
		Host:     cc.Host,
		Port:     int(cc.Port),
		Database: cc.Database,
		Username: cc.User,
	}
	if parsed, err := ParseConnectionString(connString); err == nil {
		target.SSLMode = parsed.SSLMode
	}
	if target.SSLMode == "" {
		target.SSLMode = "prefer"
	}
	return target
}

func redactParseError(err error, connString string) string {
	msg := err.Error()
	if parsed, perr := ParseConnectionString(connString); perr == nil && parsed.Password != "" {
		msg = strings.ReplaceAll(msg, parsed.Password, "xxxxx")
	}
	return msg
}

// wrapConnectionError wraps raw pgx connection errors with actionable guidance.
// The result always chains classload.ErrConnectionFailed and the original error.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		return fmt.Errorf(`%w: connection refused to %s

Possible causes:
  - PostgreSQL is not running (check: pg_isready -h %s -p %d)
  - Wrong host or port
  - Firewall blocking the connection

Original error: %w`, classload.ErrConnectionFailed, addr, host, port, err)

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		return fmt.Errorf(`%w: cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not configured or reachable
  - Network connection issue

Original error: %w`, classload.ErrConnectionFailed, host, err)

	case strings.Contains(errStr, "password authentication failed"):
		return fmt.Errorf(`%w: password authentication failed for database "%s"

Possible causes:
  - Wrong password (check the connection string, $PGPASSWORD or ~/.pgpass)
  - Wrong username
  - User does not have access to the database

Original error: %w`, classload.ErrConnectionFailed, database, err)

	case strings.Contains(errStr, "does not exist"):
		return fmt.Errorf(`%w: database "%s" does not exist

The classifications table must already exist in the target database.

Original error: %w`, classload.ErrConnectionFailed, database, err)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return fmt.Errorf(`%w: connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Network latency or packet loss
  - Firewall silently dropping packets
  - Wrong host/port (server not listening)

Original error: %w`, classload.ErrConnectionFailed, addr, err)

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		return fmt.Errorf(`%w: SSL/TLS connection error

Possible causes:
  - Server requires SSL but sslmode in the connection string is wrong
  - Certificate verification failed (try sslmode=require)
  - Client certificates missing (check sslcert, sslkey)

Original error: %w`, classload.ErrConnectionFailed, err)

	case strings.Contains(errStr, "too many connections"):
		return fmt.Errorf(`%w: too many connections to database "%s"

Possible causes:
  - max_connections limit reached in postgresql.conf
  - Stale sessions from earlier runs

Try: SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = '%s';

Original error: %w`, classload.ErrConnectionFailed, database, database, err)

	default:
		return fmt.Errorf("%w: failed to connect to database: %w", classload.ErrConnectionFailed, err)
	}
}
