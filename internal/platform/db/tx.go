package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtvts/mtvts/internal/shared"
)

// TxOptions tunes a transaction opened by WithTxOptions.
type TxOptions struct {
	IsoLevel    pgx.TxIsoLevel
	LockTimeout time.Duration
}

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return WithTxOptions(ctx, pool, TxOptions{IsoLevel: pgx.RepeatableRead}, fn)
}

// WithTxOptions executes fn within a transaction. A positive LockTimeout is applied
// with SET LOCAL so row locks waiting longer fail with a classified conflict.
func WithTxOptions(ctx context.Context, pool *pgxpool.Pool, opts TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: opts.IsoLevel})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", Classify(err))
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if opts.LockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", opts.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("platform/db: set lock_timeout: %w", Classify(err))
		}
	}

	if err := fn(tx); err != nil {
		return Classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", Classify(err))
	}

	return nil
}

// Postgres error codes treated as retryable conflicts.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// ConflictError wraps a retryable storage error. It matches shared.ErrConflict.
type ConflictError struct {
	Code       string
	Constraint string
	Err        error
}

func (e *ConflictError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%s (%s on %s): %v", shared.ErrConflict, e.Code, e.Constraint, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", shared.ErrConflict, e.Code, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// Is reports shared.ErrConflict equivalence.
func (e *ConflictError) Is(target error) bool { return target == shared.ErrConflict }

// Classify converts retryable Postgres failures into ConflictError. Other errors,
// including ones already classified, are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, shared.ErrConflict) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return &ConflictError{Code: pgErr.Code, Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}

// NoRows reports whether err is pgx.ErrNoRows.
func NoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
