// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrecord

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
)

// M is the row type used throughout sqlrecord: column names mapped to the
// values returned by the driver.
type M map[string]any

// Executor runs statements. Both [DB] and [TX] implement it, so builders,
// repositories and relation helpers work the same inside and outside a
// transaction. Statements use "?" placeholders whatever the dialect.
type Executor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Dialect() Dialect
}

// DB holds the single shared database handle. The handle is opened on
// first use.
type DB struct {
	cfg     Config
	dialect Dialect

	mutex sync.Mutex
	sqldb *sql.DB
	// wrapped handles are owned by the caller and never closed.
	wrapped *sql.DB
	connErr error
}

var _ Executor = (*DB)(nil)

// NewDB creates a [DB] for cfg. No connection is made until it is needed.
func NewDB(cfg Config) *DB {
	return &DB{cfg: cfg, dialect: DialectFor(cfg.Driver)}
}

// NewDBFromEnv creates a [DB] configured by [ConfigFromEnv].
func NewDBFromEnv(path string) (*DB, error) {
	cfg, err := ConfigFromEnv(path)
	if err != nil {
		return nil, err
	}
	return NewDB(cfg), nil
}

// WrapDB creates a [DB] over an existing handle. driver selects the
// dialect. The caller keeps ownership of sqldb. A nil sqldb yields a DB
// whose every use fails with a *ConnectionError.
func WrapDB(sqldb *sql.DB, driver string) *DB {
	db := &DB{
		cfg:     Config{Driver: driver},
		dialect: DialectFor(driver),
		wrapped: sqldb,
	}
	if sqldb == nil {
		db.connErr = errNilHandle
	}
	return db
}

// SetLogger replaces the logger given in the configuration.
func (db *DB) SetLogger(l Logger) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.cfg.Logger = l
}

// Config returns the configuration the handle is opened with.
func (db *DB) Config() Config {
	return db.cfg
}

// Dialect returns the dialect of the configured driver.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Conn returns the shared handle, opening it and checking connectivity on
// the first call. Failures are reported as a *ConnectionError.
func (db *DB) Conn(ctx context.Context) (*sql.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if db.connErr != nil {
		return nil, &ConnectionError{Driver: db.cfg.Driver, Err: db.connErr}
	}
	if db.sqldb != nil {
		return db.sqldb, nil
	}
	if db.wrapped != nil {
		db.sqldb = db.wrapped
		return db.sqldb, nil
	}

	sqldb, err := open(ctx, db.cfg)
	if err != nil {
		return nil, &ConnectionError{Driver: db.cfg.Driver, Err: err}
	}
	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, &ConnectionError{Driver: db.cfg.Driver, Err: err}
	}
	db.logf("connected to %s database %q", db.cfg.Driver, db.cfg.Database)
	db.sqldb = sqldb
	return sqldb, nil
}

// Reset closes and discards the shared handle. The next call to [DB.Conn]
// opens a new one. Wrapped handles are discarded but not closed.
func (db *DB) Reset() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if db.sqldb == nil {
		return nil
	}
	sqldb := db.sqldb
	db.sqldb = nil
	db.logf("connection to %s database reset", db.cfg.Driver)
	if sqldb == db.wrapped {
		return nil
	}
	return sqldb.Close()
}

// Close is an alias of [DB.Reset].
func (db *DB) Close() error {
	return db.Reset()
}

// QueryContext runs a statement that returns rows on the shared handle.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sqldb, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	query, err = db.prepare(query, args)
	if err != nil {
		return nil, err
	}
	return sqldb.QueryContext(ctx, query, args...)
}

// ExecContext runs a statement that does not return rows on the shared
// handle.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sqldb, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	query, err = db.prepare(query, args)
	if err != nil {
		return nil, err
	}
	return sqldb.ExecContext(ctx, query, args...)
}

// Table starts a query builder on table.
func (db *DB) Table(table string) *Builder {
	return NewBuilder(db).Table(table)
}

// prepare logs the statement and rebinds its placeholders.
func (db *DB) prepare(query string, args []any) (string, error) {
	db.logf("query: %s %v", query, args)
	return db.dialect.Rebind(query)
}

func (db *DB) logf(format string, v ...any) {
	if db.cfg.Logger != nil {
		db.cfg.Logger.Printf(format, v...)
	}
}

// TX represents a transaction on the database.
type TX struct {
	sqltx *sql.Tx
	db    *DB
	done  int32
}

var _ Executor = (*TX)(nil)

func (tx *TX) isDone() bool {
	return atomic.LoadInt32(&tx.done) == 1
}

func (tx *TX) setDone() error {
	if !atomic.CompareAndSwapInt32(&tx.done, 0, 1) {
		return ErrTXDone
	}
	return nil
}

// Begin starts a transaction. A transaction must be ended
// with a [TX.Commit] or [TX.Rollback].
func (db *DB) Begin(ctx context.Context, opts *TXOptions) (*TX, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sqldb, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	sqltx, err := sqldb.BeginTx(ctx, opts.plainTXOptions())
	if err != nil {
		return nil, err
	}
	db.logf("transaction started")
	return &TX{sqltx: sqltx, db: db}, nil
}

// Commit commits the transaction.
func (tx *TX) Commit() error {
	if err := tx.setDone(); err != nil {
		return err
	}
	if err := tx.sqltx.Commit(); err != nil {
		return err
	}
	tx.db.logf("transaction committed")
	return nil
}

// Rollback aborts the transaction.
func (tx *TX) Rollback() error {
	if err := tx.setDone(); err != nil {
		return err
	}
	if err := tx.sqltx.Rollback(); err != nil {
		return err
	}
	tx.db.logf("transaction rolled back")
	return nil
}

// TXOptions holds the transaction options to be used in [DB.Begin].
type TXOptions struct {
	// Isolation is the transaction isolation level.
	// If zero, the driver or database's default level is used.
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

func (txopts *TXOptions) plainTXOptions() *sql.TxOptions {
	if txopts == nil {
		return nil
	}
	return &sql.TxOptions{Isolation: txopts.Isolation, ReadOnly: txopts.ReadOnly}
}

// Dialect returns the dialect of the database the transaction runs on.
func (tx *TX) Dialect() Dialect {
	return tx.db.dialect
}

// QueryContext runs a statement that returns rows inside the transaction.
func (tx *TX) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tx.isDone() {
		return nil, ErrTXDone
	}
	query, err := tx.db.prepare(query, args)
	if err != nil {
		return nil, err
	}
	return tx.sqltx.QueryContext(ctx, query, args...)
}

// ExecContext runs a statement that does not return rows inside the
// transaction.
func (tx *TX) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tx.isDone() {
		return nil, ErrTXDone
	}
	query, err := tx.db.prepare(query, args)
	if err != nil {
		return nil, err
	}
	return tx.sqltx.ExecContext(ctx, query, args...)
}

// Table starts a query builder on table inside the transaction.
func (tx *TX) Table(table string) *Builder {
	return NewBuilder(tx).Table(table)
}
