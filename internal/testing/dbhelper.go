package testing

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/classload/internal/db"
	"github.com/vvka-141/classload/internal/logging"
	"github.com/vvka-141/classload/internal/services"
	"github.com/vvka-141/classload/internal/testinfra"
	"github.com/vvka-141/classload/pkg/classload"
)

// ClassificationsDDL matches the deployed schema: the upsert targets the
// classifications_pk constraint by name.
const ClassificationsDDL = `
CREATE TABLE classifications (
    url_scheme text    NOT NULL,
    url_host   text,
    url_path   text    NOT NULL,
    class      integer,
    CONSTRAINT classifications_pk UNIQUE (url_scheme, url_host, url_path)
)`

var (
	testContainerOnce sync.Once
	testContainerConn string
	testContainerErr  error
)

func getOrStartTestContainer() (string, error) {
	testContainerOnce.Do(func() {
		ctx := context.Background()
		container, err := testinfra.StartSimplePostgres(ctx)
		if err != nil {
			testContainerErr = err
			return
		}
		testContainerConn = container.ConnString
	})
	return testContainerConn, testContainerErr
}

// GetTestConnectionString returns the test server connection string.
// Priority: CLASSLOAD_TEST_CONN env var > auto-started testcontainer > skip test.
func GetTestConnectionString(t *testing.T) string {
	t.Helper()

	if connString := os.Getenv("CLASSLOAD_TEST_CONN"); connString != "" {
		return connString
	}

	connString, err := getOrStartTestContainer()
	if err != nil {
		t.Skipf("CLASSLOAD_TEST_CONN not set and Docker unavailable: %v", err)
	}
	return connString
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireDatabase combines SkipIfShort and GetTestConnectionString for convenience.
func RequireDatabase(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	return GetTestConnectionString(t)
}

// NewTestLoader creates a Loader wired to the real pgx connector and a
// silent logger.
func NewTestLoader(t *testing.T) classload.Loader {
	t.Helper()
	return services.NewClassificationLoader(db.NewConnector, logging.NewNullLogger())
}

// CreateClassificationsDB creates a fresh database holding an empty
// classifications table and returns its connection string. The database
// is dropped when the test completes.
func CreateClassificationsDB(t *testing.T, serverConnString string) string {
	t.Helper()

	dbName := "classload_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	t.Cleanup(CreateTestDB(t, serverConnString, dbName))

	connString := targetConnString(t, serverConnString, dbName)
	pool := GetTestPool(t, connString)
	if _, err := pool.Exec(context.Background(), ClassificationsDDL); err != nil {
		t.Fatalf("Failed to create classifications table: %v", err)
	}
	return connString
}

// CreateTestDB creates a test database with the given name.
// Returns a cleanup function that should be called with t.Cleanup().
func CreateTestDB(t *testing.T, connString, dbName string) func() {
	t.Helper()

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect for test DB creation: %v", err)
	}

	_, err = pool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName))
	pool.Close()
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}

	return func() {
		CleanupTestDB(t, connString, dbName)
	}
}

// CleanupTestDB drops the test database.
// Safe to call multiple times (uses DROP DATABASE IF EXISTS).
func CleanupTestDB(t *testing.T, connString, dbName string) {
	t.Helper()

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Logf("Warning: Failed to connect for cleanup: %v", err)
		return
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()
	`, dbName)
	if err != nil {
		t.Logf("Warning: Failed to terminate connections to %s: %v", dbName, err)
	}

	if _, err = pool.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName)); err != nil {
		t.Logf("Warning: Failed to drop database %s: %v", dbName, err)
	}
}

// GetTestPool creates a connection pool for the given connection string.
// The pool is automatically closed when the test completes.
func GetTestPool(t *testing.T, connString string) *pgxpool.Pool {
	t.Helper()

	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// ClassificationRecord is one row read back from the classifications table.
type ClassificationRecord struct {
	Scheme string
	Host   *string
	Path   string
	Class  *int32
}

// ReadClassifications returns the table contents ordered by key.
func ReadClassifications(t *testing.T, pool *pgxpool.Pool) []ClassificationRecord {
	t.Helper()

	rows, err := pool.Query(context.Background(), `
		SELECT url_scheme, url_host, url_path, class
		FROM classifications
		ORDER BY url_scheme, url_host NULLS FIRST, url_path`)
	if err != nil {
		t.Fatalf("Failed to read classifications: %v", err)
	}
	defer rows.Close()

	var out []ClassificationRecord
	for rows.Next() {
		var r ClassificationRecord
		if err := rows.Scan(&r.Scheme, &r.Host, &r.Path, &r.Class); err != nil {
			t.Fatalf("Failed to scan classification: %v", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("Failed to iterate classifications: %v", err)
	}
	return out
}

func targetConnString(t *testing.T, serverConnString, dbName string) string {
	t.Helper()

	config, err := db.ParseConnectionString(serverConnString)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	config.Database = dbName
	return db.BuildConnectionString(config)
}
