package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/classload/internal/logging"
	"github.com/vvka-141/classload/pkg/classload"
)

const testConnString = "postgresql://mapper@localhost:5432/cartograph"

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "classifications.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestLoader(db *fakeDB) (*ClassificationLoader, *int) {
	factory, calls := recordingFactory(&fakeConnector{db: db})
	return NewClassificationLoader(factory, logging.NewNullLogger()), calls
}

func TestLoad_ReplacesTableContents(t *testing.T) {
	db := newFakeDB(map[classload.RowKey]*string{
		key("http", strPtr("stale.example"), "/old"): strPtr("1"),
	})
	loader, _ := newTestLoader(db)

	path := writeCSV(t, "label,cluster_id\nhttps://example.com/foo,3\n/just/a/path,7\n")
	result, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath:        path,
		ConnectionString: testConnString,
	})
	require.NoError(t, err)

	assert.Equal(t, map[classload.RowKey]*string{
		key("https", strPtr("example.com"), "/foo"): strPtr("3"),
		key("", nil, "/just/a/path"):                 strPtr("7"),
	}, db.table)

	assert.Equal(t, []string{"begin", "delete", "batch", "commit", "close"}, db.log)
	assert.Equal(t, 2, result.RowsRead)
	assert.Equal(t, int64(1), result.RowsDeleted)
	assert.Equal(t, int64(2), result.RowsUpserted)
	assert.Equal(t, 0, result.DuplicateKeys)
	assert.False(t, result.DryRun)
	assert.NotEqual(t, uuid.Nil, result.RunID)
}

func TestLoad_IsIdempotent(t *testing.T) {
	db := newFakeDB(nil)
	loader, _ := newTestLoader(db)
	path := writeCSV(t, "label,cluster_id\nhttps://example.com/a,1\nhttps://example.com/b,2\n")
	cfg := classload.LoadConfig{InputPath: path, ConnectionString: testConnString}

	_, err := loader.Load(context.Background(), cfg)
	require.NoError(t, err)
	first := db.table

	_, err = loader.Load(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, first, db.table)
}

func TestLoad_LastClassWinsForRepeatedKeys(t *testing.T) {
	db := newFakeDB(nil)
	loader, _ := newTestLoader(db)

	path := writeCSV(t, strings.Join([]string{
		"label,cluster_id",
		"https://example.com/foo,1",
		"/no/host,5",
		"https://EXAMPLE.com/foo?utm=1,2",
		"/no/host,6",
		"",
	}, "\n"))

	result, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath:        path,
		ConnectionString: testConnString,
	})
	require.NoError(t, err)

	assert.Equal(t, map[classload.RowKey]*string{
		key("https", strPtr("example.com"), "/foo"): strPtr("2"),
		key("", nil, "/no/host"):                     strPtr("6"),
	}, db.table)
	assert.Equal(t, 4, result.RowsRead)
	assert.Equal(t, 2, result.DuplicateKeys)
	assert.Equal(t, int64(2), result.RowsUpserted)
}

func TestLoad_BatchesInInputOrder(t *testing.T) {
	db := newFakeDB(nil)
	loader, _ := newTestLoader(db)

	var b strings.Builder
	b.WriteString("label,cluster_id\n")
	var want []string
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "https://example.com/p%d,%d\n", i, i)
		want = append(want, fmt.Sprintf("/p%d", i))
	}

	_, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath:        writeCSV(t, b.String()),
		ConnectionString: testConnString,
		BatchSize:        2,
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, db.batchSizes)
	assert.Equal(t, want, db.upserts)
}

func TestLoad_ZeroBatchSizeUsesDefault(t *testing.T) {
	db := newFakeDB(nil)
	loader, _ := newTestLoader(db)

	var b strings.Builder
	b.WriteString("label,cluster_id\n")
	n := classload.DefaultBatchSize + 1
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "https://example.com/p%d,1\n", i)
	}

	_, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath:        writeCSV(t, b.String()),
		ConnectionString: testConnString,
	})
	require.NoError(t, err)

	assert.Equal(t, []int{classload.DefaultBatchSize, 1}, db.batchSizes)
}

func TestLoad_EmptyClusterIDIsNull(t *testing.T) {
	db := newFakeDB(nil)
	loader, _ := newTestLoader(db)

	_, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath:        writeCSV(t, "label,cluster_id\nhttps://example.com/unclassified,\n"),
		ConnectionString: testConnString,
	})
	require.NoError(t, err)

	class, ok := db.table[key("https", strPtr("example.com"), "/unclassified")]
	require.True(t, ok)
	assert.Nil(t, class)
}

func TestLoad_EmptyInputClearsTable(t *testing.T) {
	db := newFakeDB(map[classload.RowKey]*string{
		key("https", strPtr("example.com"), "/old"): strPtr("1"),
	})
	loader, _ := newTestLoader(db)

	result, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath:        writeCSV(t, "label,cluster_id\n"),
		ConnectionString: testConnString,
	})
	require.NoError(t, err)

	assert.Empty(t, db.table)
	assert.Empty(t, db.batchSizes)
	assert.Equal(t, int64(1), result.RowsDeleted)
	assert.Equal(t, int64(0), result.RowsUpserted)
}

func TestLoad_AtomicFailureKeepsPreviousContents(t *testing.T) {
	previous := map[classload.RowKey]*string{
		key("https", strPtr("example.com"), "/keep"): strPtr("9"),
	}
	db := newFakeDB(previous)
	db.failPath = "/bad"
	loader, _ := newTestLoader(db)

	path := writeCSV(t, "label,cluster_id\nhttps://example.com/ok,1\nhttps://example.com/bad,x\nhttps://example.com/never,3\n")
	result, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath:        path,
		ConnectionString: testConnString,
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, classload.ErrStatementFailed), "got %v", err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "https://example.com/bad")
	assert.Contains(t, err.Error(), "SQLSTATE 22P02")

	assert.Equal(t, previous, db.table)
	assert.Equal(t, []string{"begin", "delete", "batch", "rollback", "close"}, db.log)
	assert.Equal(t, classload.ExitStatementFailed, classload.ExitCodeForError(err))
}

func TestLoad_SplitCommitFailureLeavesTableEmpty(t *testing.T) {
	db := newFakeDB(map[classload.RowKey]*string{
		key("https", strPtr("example.com"), "/keep"): strPtr("9"),
	})
	db.failPath = "/bad"
	loader, _ := newTestLoader(db)

	path := writeCSV(t, "label,cluster_id\nhttps://example.com/ok,1\nhttps://example.com/bad,x\n")
	_, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath:        path,
		ConnectionString: testConnString,
		SplitCommit:      true,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, classload.ErrStatementFailed))
	assert.Empty(t, db.table)
	assert.Equal(t, []string{"begin", "delete", "commit", "begin", "batch", "rollback", "close"}, db.log)
}

func TestLoad_SplitCommitSuccess(t *testing.T) {
	db := newFakeDB(nil)
	loader, _ := newTestLoader(db)

	_, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath:        writeCSV(t, "label,cluster_id\nhttps://example.com/foo,3\n"),
		ConnectionString: testConnString,
		SplitCommit:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, map[classload.RowKey]*string{
		key("https", strPtr("example.com"), "/foo"): strPtr("3"),
	}, db.table)
	assert.Equal(t, []string{"begin", "delete", "commit", "begin", "batch", "commit", "close"}, db.log)
}

func TestLoad_ClearFailure(t *testing.T) {
	db := newFakeDB(nil)
	db.failClear = true
	loader, _ := newTestLoader(db)

	_, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath:        writeCSV(t, "label,cluster_id\nhttps://example.com/foo,3\n"),
		ConnectionString: testConnString,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, classload.ErrStatementFailed))
	assert.Contains(t, err.Error(), "42P01")
	assert.Empty(t, db.upserts)
	assert.True(t, db.closed)
}

func TestLoad_CommitFailure(t *testing.T) {
	db := newFakeDB(nil)
	db.failCommit = true
	loader, _ := newTestLoader(db)

	_, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath:        writeCSV(t, "label,cluster_id\nhttps://example.com/foo,3\n"),
		ConnectionString: testConnString,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, classload.ErrStatementFailed))
	assert.Empty(t, db.table)
	assert.True(t, db.closed)
}

func TestLoad_ConnectFailureTouchesNothing(t *testing.T) {
	db := newFakeDB(nil)
	connErr := fmt.Errorf("%w: connection refused", classload.ErrConnectionFailed)
	factory, _ := recordingFactory(&fakeConnector{db: db, err: connErr})
	loader := NewClassificationLoader(factory, logging.NewNullLogger())

	_, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath:        writeCSV(t, "label,cluster_id\nhttps://example.com/foo,3\n"),
		ConnectionString: testConnString,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, classload.ErrConnectionFailed))
	assert.Empty(t, db.log)
}

func TestLoad_ConnectorFactoryError(t *testing.T) {
	factory := func(string, classload.Logger) (classload.Connector, error) {
		return nil, fmt.Errorf("invalid connection string: %w", classload.ErrInvalidConfig)
	}
	loader := NewClassificationLoader(factory, logging.NewNullLogger())

	_, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath:        writeCSV(t, "label,cluster_id\nhttps://example.com/foo,3\n"),
		ConnectionString: "nonsense",
	})
	assert.True(t, errors.Is(err, classload.ErrInvalidConfig))
}

func TestLoad_InputFailuresNeverConnect(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.csv") },
		},
		{
			name: "missing cluster_id column",
			path: func(t *testing.T) string { return writeCSV(t, "label,cluster\nhttps://example.com/foo,3\n") },
		},
		{
			name: "missing label column",
			path: func(t *testing.T) string { return writeCSV(t, "url,cluster_id\nhttps://example.com/foo,3\n") },
		},
		{
			name: "malformed quoting",
			path: func(t *testing.T) string { return writeCSV(t, "label,cluster_id\n\"https://example.com/foo,3\n") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newFakeDB(nil)
			loader, calls := newTestLoader(db)

			_, err := loader.Load(context.Background(), classload.LoadConfig{
				InputPath:        tt.path(t),
				ConnectionString: testConnString,
			})

			require.Error(t, err)
			assert.True(t, errors.Is(err, classload.ErrInvalidInput), "got %v", err)
			assert.Equal(t, 0, *calls, "connector must not be created")
			assert.Empty(t, db.log)
		})
	}
}

func TestLoad_DryRunNeverConnects(t *testing.T) {
	db := newFakeDB(nil)
	loader, calls := newTestLoader(db)

	result, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath: writeCSV(t, "label,cluster_id\nhttps://example.com/foo,3\nhttps://example.com/foo,4\n"),
		DryRun:    true,
	})
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.RowsRead)
	assert.Equal(t, 1, result.DuplicateKeys)
	assert.Equal(t, 0, *calls)
	assert.Empty(t, db.log)
}

func TestLoad_InvalidConfig(t *testing.T) {
	loader, calls := newTestLoader(newFakeDB(nil))

	_, err := loader.Load(context.Background(), classload.LoadConfig{BatchSize: -1})

	require.Error(t, err)
	assert.True(t, errors.Is(err, classload.ErrInvalidConfig))
	assert.Equal(t, 0, *calls)
}

func TestLoad_ProgressMessages(t *testing.T) {
	db := newFakeDB(nil)
	factory, _ := recordingFactory(&fakeConnector{db: db})
	logger := &recordingLogger{}
	loader := NewClassificationLoader(factory, logger)

	path := writeCSV(t, "label,cluster_id\nhttps://example.com/foo,3\n")
	_, err := loader.Load(context.Background(), classload.LoadConfig{
		InputPath:        path,
		ConnectionString: testConnString,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Reading " + path + "...",
		"Connecting to the database...",
		"Clearing classifications table...",
		"Uploading new classifications to the database...",
		"Done.",
	}, logger.infos)
}

func TestNewClassificationLoader_PanicsOnNilDependencies(t *testing.T) {
	factory, _ := recordingFactory(&fakeConnector{})

	assert.Panics(t, func() { NewClassificationLoader(nil, logging.NewNullLogger()) })
	assert.Panics(t, func() { NewClassificationLoader(factory, nil) })
}
