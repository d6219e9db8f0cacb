package database

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/akyairhashvil/sprintledger/internal/storage"
	"github.com/cenkalti/backoff/v4"
)

const busyRetryMaxElapsed = 10 * time.Second

var _ storage.Store = (*Database)(nil)

// txStore implements storage.Tx on top of one *sql.Tx.
type txStore struct {
	q querier
}

var _ storage.Tx = (*txStore)(nil)

// WithTx runs fn inside a transaction, committing on success and rolling back
// on error or panic. SQLITE_BUSY during begin, fn or commit retries the whole
// unit with exponential backoff.
func (d *Database) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return withBusyRetry(ctx, func() error {
		return d.runTx(ctx, fn)
	})
}

// RunInTransaction implements storage.Store.
func (d *Database) RunInTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	return d.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&txStore{q: tx})
	})
}

func (d *Database) runTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		return rollbackWithLog(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func rollbackWithLog(tx *sql.Tx, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
		slog.Warn("rollback failed", "err", rbErr, "cause", err)
	}
	return err
}

func withBusyRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxElapsedTime = busyRetryMaxElapsed
	return backoff.Retry(func() error {
		err := op()
		if err != nil && isBusy(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}
