// Package pgxutil reaches the pgx connection behind a database/sql pool so the
// job and locality repositories can use pgx rows, transactions and LISTEN/NOTIFY.
package pgxutil

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// ReserveTxOptions is used by the pending-job reservation. SKIP LOCKED needs
// read committed to see rows released by concurrent workers.
var ReserveTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// ErrNotStdlibConn is returned when the pool was not opened with the pgx stdlib driver.
var ErrNotStdlibConn = errors.New("pgxutil: driver connection is not *stdlib.Conn")

// TxConfig carries the options and body for WithTx.
type TxConfig struct {
	Opts pgx.TxOptions
	Fn   func(pgx.Tx) error
}

// WithConn runs fn on the pgx connection behind one pooled database/sql connection.
func WithConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(dc any) error {
		std, ok := dc.(*stdlib.Conn)
		if !ok {
			return ErrNotStdlibConn
		}
		return fn(std.Conn())
	})
}

// WithTx runs cfg.Fn in a pgx transaction. The transaction commits only when
// Fn returns nil; NOTIFY issued inside it reaches listeners after commit.
func WithTx(ctx context.Context, db *sql.DB, cfg TxConfig) error {
	return WithConn(ctx, db, func(conn *pgx.Conn) (err error) {
		tx, err := conn.BeginTx(ctx, cfg.Opts)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			if rerr := tx.Rollback(ctx); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rerr))
			}
		}()
		if err = cfg.Fn(tx); err != nil {
			return err
		}
		if err = tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}

// WithSQLTx runs fn in a database/sql transaction, for callers that work with sql.Result.
func WithSQLTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Notify sends payload on channel as part of tx.
func Notify(ctx context.Context, tx pgx.Tx, channel, payload string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, channel, payload); err != nil {
		return fmt.Errorf("notify %s: %w", channel, err)
	}
	return nil
}

// JSONB encodes v as text for a $n::jsonb parameter.
func JSONB(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode jsonb: %w", err)
	}
	return string(b), nil
}

// GuardedUpdate runs an UPDATE whose WHERE clause restricts it to rows in an
// expected state. When no row matches it reads the current state of key with
// stateQuery in the same transaction and returns it; matched reports whether
// the update applied. A missing row yields pgx.ErrNoRows.
type GuardedUpdate struct {
	Update     string
	Args       []any
	StateQuery string
	Key        any
}

// Run executes the update inside tx.
func (g GuardedUpdate) Run(ctx context.Context, tx pgx.Tx) (matched bool, state string, err error) {
	tag, err := tx.Exec(ctx, g.Update, g.Args...)
	if err != nil {
		return false, "", err
	}
	if tag.RowsAffected() > 0 {
		return true, "", nil
	}
	if err := tx.QueryRow(ctx, g.StateQuery, g.Key).Scan(&state); err != nil {
		return false, "", err
	}
	return false, state, nil
}
