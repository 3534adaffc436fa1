package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/classload/internal/input"
	"github.com/vvka-141/classload/pkg/classload"
)

// ClassificationLoader implements the Loader interface.
// Thread-Safety: NOT safe for concurrent Load() calls against the same table;
// the full-replace semantics assume a single writer.
type ClassificationLoader struct {
	connectorFactory classload.ConnectorFactory
	logger           classload.Logger
}

// NewClassificationLoader creates a loader with its dependencies injected.
// It panics on nil dependencies since those are wiring mistakes.
func NewClassificationLoader(connectorFactory classload.ConnectorFactory, logger classload.Logger) *ClassificationLoader {
	if connectorFactory == nil {
		panic("connectorFactory cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &ClassificationLoader{
		connectorFactory: connectorFactory,
		logger:           logger,
	}
}

var _ classload.Loader = (*ClassificationLoader)(nil)

// Load replaces the contents of the classifications table with the rows
// derived from the input CSV.
func (l *ClassificationLoader) Load(ctx context.Context, config classload.LoadConfig) (*classload.LoadResult, error) {
	start := time.Now()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	result := &classload.LoadResult{
		RunID:  uuid.New(),
		DryRun: config.DryRun,
	}
	l.logger.Verbose("Run %s", result.RunID)

	l.logger.Info("Reading %s...", config.InputPath)
	inputs, err := input.ReadFile(config.InputPath)
	if err != nil {
		return nil, err
	}

	rows, duplicates := DeriveRows(inputs)
	result.RowsRead = len(inputs)
	result.DuplicateKeys = duplicates
	l.logger.Verbose("Read %d rows, %d distinct keys", len(inputs), len(rows))
	if duplicates > 0 {
		l.logger.Verbose("%d rows repeat an earlier key; the last class wins", duplicates)
	}

	if config.DryRun {
		l.logger.Info("Dry run: %d rows would replace the %s table; database not contacted.", len(rows), classload.TableName)
		result.Duration = time.Since(start)
		l.logger.Info("Done.")
		return result, nil
	}

	connector, err := l.connectorFactory(config.ConnectionString, l.logger)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Connecting to the database...")
	conn, err := connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := conn.Close(context.WithoutCancel(ctx)); cerr != nil {
			l.logger.Verbose("closing connection: %v", cerr)
		}
	}()

	batchSize := config.BatchSize
	if batchSize == 0 {
		batchSize = classload.DefaultBatchSize
	}

	if config.SplitCommit {
		err = l.replaceSplit(ctx, conn, rows, batchSize, result)
	} else {
		err = l.replaceAtomic(ctx, conn, rows, batchSize, result)
	}
	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	l.logger.Verbose("Deleted %d rows, upserted %d rows in %s",
		result.RowsDeleted, result.RowsUpserted, result.Duration.Round(time.Millisecond))
	l.logger.Info("Done.")
	return result, nil
}

// replaceAtomic clears and repopulates the table in one transaction, so a
// failure leaves the previous contents in place.
func (l *ClassificationLoader) replaceAtomic(
	ctx context.Context,
	conn classload.DBConn,
	rows []classload.ClassificationRow,
	batchSize int,
	result *classload.LoadResult,
) error {
	return l.inTransaction(ctx, conn, func(tx pgx.Tx) error {
		deleted, err := l.clear(ctx, tx)
		if err != nil {
			return err
		}
		result.RowsDeleted = deleted

		upserted, err := l.upsert(ctx, tx, rows, batchSize)
		if err != nil {
			return err
		}
		result.RowsUpserted = upserted
		return nil
	})
}

// replaceSplit commits the clear before inserting anything. A failed
// upsert leaves the table empty.
func (l *ClassificationLoader) replaceSplit(
	ctx context.Context,
	conn classload.DBConn,
	rows []classload.ClassificationRow,
	batchSize int,
	result *classload.LoadResult,
) error {
	err := l.inTransaction(ctx, conn, func(tx pgx.Tx) error {
		deleted, err := l.clear(ctx, tx)
		result.RowsDeleted = deleted
		return err
	})
	if err != nil {
		return err
	}
	l.logger.Verbose("Clear committed")

	return l.inTransaction(ctx, conn, func(tx pgx.Tx) error {
		upserted, err := l.upsert(ctx, tx, rows, batchSize)
		if err != nil {
			return err
		}
		result.RowsUpserted = upserted
		return nil
	})
}

// inTransaction runs fn in a transaction and commits it. The deferred
// rollback is a no-op once the commit succeeded.
func (l *ClassificationLoader) inTransaction(ctx context.Context, conn classload.DBConn, fn func(pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", classload.ErrStatementFailed, err)
	}
	defer func() {
		if rerr := tx.Rollback(context.WithoutCancel(ctx)); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
			l.logger.Verbose("rollback: %v", rerr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %w", classload.ErrStatementFailed, err)
	}
	return nil
}

func (l *ClassificationLoader) clear(ctx context.Context, tx pgx.Tx) (int64, error) {
	l.logger.Info("Clearing %s table...", classload.TableName)
	tag, err := tx.Exec(ctx, queryClearClassifications)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to clear %s: %w", classload.ErrStatementFailed, classload.TableName, describePgError(err))
	}
	l.logger.Verbose("Deleted %d existing rows", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// upsert sends the rows in input order, batchSize statements per round trip.
func (l *ClassificationLoader) upsert(ctx context.Context, tx pgx.Tx, rows []classload.ClassificationRow, batchSize int) (int64, error) {
	l.logger.Info("Uploading new %s to the database...", classload.TableName)

	var total int64
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		chunk := rows[start:end]

		batch := &pgx.Batch{}
		for _, row := range chunk {
			batch.Queue(queryUpsertClassification, row.URLScheme, row.URLHost, row.URLPath, row.Class)
		}

		n, err := l.sendBatch(ctx, tx, batch, chunk)
		if err != nil {
			return total, err
		}
		total += n
		l.logger.Verbose("Flushed rows %d-%d of %d", start+1, end, len(rows))
	}
	return total, nil
}

func (l *ClassificationLoader) sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, chunk []classload.ClassificationRow) (int64, error) {
	br := tx.SendBatch(ctx, batch)

	var n int64
	for _, row := range chunk {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return n, rowError(row, err)
		}
		n += tag.RowsAffected()
	}

	if err := br.Close(); err != nil {
		return n, fmt.Errorf("%w: failed to finish batch: %w", classload.ErrStatementFailed, err)
	}
	return n, nil
}

func rowError(row classload.ClassificationRow, err error) error {
	return fmt.Errorf("%w: upsert of line %d (%q) as %s: %w",
		classload.ErrStatementFailed, row.Line, row.Label, row.Key(), describePgError(err))
}

// describePgError appends the SQLSTATE and detail of a server error.
func describePgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.Detail != "" {
		return fmt.Errorf("%w (SQLSTATE %s, %s)", err, pgErr.Code, pgErr.Detail)
	}
	return fmt.Errorf("%w (SQLSTATE %s)", err, pgErr.Code)
}
