package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/classload/pkg/classload"
)

// fakeDB simulates the classifications table with transaction visibility:
// changes made in a transaction become visible only on commit.
type fakeDB struct {
	table map[classload.RowKey]*string

	failPath   string // upsert of this url_path fails
	failClear  bool
	failCommit bool

	log        []string
	upserts    []string // url_path of each upsert, in send order
	batchSizes []int
	closed     bool
}

func newFakeDB(seed map[classload.RowKey]*string) *fakeDB {
	if seed == nil {
		seed = map[classload.RowKey]*string{}
	}
	return &fakeDB{table: seed}
}

func (d *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, fmt.Errorf("unexpected autocommit statement: %s", sql)
}

func (d *fakeDB) Begin(_ context.Context) (pgx.Tx, error) {
	d.log = append(d.log, "begin")
	return &fakeTx{db: d, work: maps.Clone(d.table)}, nil
}

func (d *fakeDB) Close(_ context.Context) error {
	d.closed = true
	d.log = append(d.log, "close")
	return nil
}

type fakeTx struct {
	pgx.Tx
	db   *fakeDB
	work map[classload.RowKey]*string
	done bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	if !strings.HasPrefix(sql, "DELETE") {
		return pgconn.CommandTag{}, fmt.Errorf("unexpected statement: %s", sql)
	}
	if t.db.failClear {
		return pgconn.CommandTag{}, &pgconn.PgError{Code: "42P01", Message: `relation "classifications" does not exist`}
	}
	n := len(t.work)
	clear(t.work)
	t.db.log = append(t.db.log, "delete")
	return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
}

func (t *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	t.db.batchSizes = append(t.db.batchSizes, b.Len())
	return &fakeBatchResults{tx: t, queued: b.QueuedQueries}
}

func (t *fakeTx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	if t.db.failCommit {
		t.db.log = append(t.db.log, "commit-failed")
		return errors.New("connection reset by peer")
	}
	t.db.table = t.work
	t.db.log = append(t.db.log, "commit")
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.log = append(t.db.log, "rollback")
	return nil
}

type fakeBatchResults struct {
	pgx.BatchResults
	tx     *fakeTx
	queued []*pgx.QueuedQuery
	pos    int
	failed bool
}

func (b *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	q := b.queued[b.pos]
	b.pos++
	if b.failed {
		return pgconn.CommandTag{}, errors.New("ERROR: current transaction is aborted")
	}

	scheme := q.Arguments[0].(string)
	host := q.Arguments[1].(*string)
	path := q.Arguments[2].(string)
	class := q.Arguments[3].(*string)

	if path == b.tx.db.failPath {
		b.failed = true
		return pgconn.CommandTag{}, &pgconn.PgError{
			Code:    "22P02",
			Message: fmt.Sprintf("invalid input syntax for type integer: %q", deref(class)),
		}
	}

	key := classload.RowKey{Scheme: scheme, Path: path}
	if host != nil {
		key.HasHost = true
		key.Host = *host
	}
	b.tx.work[key] = class
	b.tx.db.upserts = append(b.tx.db.upserts, path)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (b *fakeBatchResults) Close() error {
	b.tx.db.log = append(b.tx.db.log, "batch")
	return nil
}

type fakeConnector struct {
	db  *fakeDB
	err error
}

func (c *fakeConnector) Connect(_ context.Context) (classload.DBConn, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.db, nil
}

// recordingFactory returns a ConnectorFactory and a pointer to the number
// of times it was invoked.
func recordingFactory(conn *fakeConnector) (classload.ConnectorFactory, *int) {
	calls := 0
	return func(_ string, _ classload.Logger) (classload.Connector, error) {
		calls++
		return conn, nil
	}, &calls
}

// recordingLogger captures Info messages.
type recordingLogger struct {
	infos []string
}

func (l *recordingLogger) Verbose(string, ...interface{}) {}

func (l *recordingLogger) Info(format string, args ...interface{}) {
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Error(string, ...interface{}) {}

func deref(s *string) string {
	if s == nil {
		return "NULL"
	}
	return *s
}

func strPtr(s string) *string { return &s }

func key(scheme string, host *string, path string) classload.RowKey {
	k := classload.RowKey{Scheme: scheme, Path: path}
	if host != nil {
		k.HasHost = true
		k.Host = *host
	}
	return k
}
