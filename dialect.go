// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrecord

import (
	"context"
	"database/sql"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/canonical/go-dqlite/client"
	dqlitedriver "github.com/canonical/go-dqlite/driver"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Dialect describes how statements are adapted to a database engine.
// Statements are always written with "?" placeholders.
type Dialect struct {
	Name string
	// Returning is set for engines that report generated keys through a
	// RETURNING clause instead of LastInsertId.
	Returning bool

	placeholders sq.PlaceholderFormat
}

// DialectFor returns the dialect of the named driver. Unknown drivers get
// the "?" placeholder dialect.
func DialectFor(driver string) Dialect {
	switch driver {
	case "postgres", "pgx":
		return Dialect{Name: driver, Returning: true, placeholders: sq.Dollar}
	}
	return Dialect{Name: driver, placeholders: sq.Question}
}

// Rebind rewrites the "?" placeholders of query into the dialect's format.
func (d Dialect) Rebind(query string) (string, error) {
	if d.placeholders == nil {
		return query, nil
	}
	return d.placeholders.ReplacePlaceholders(query)
}

// singleConn reports whether handles for the driver must be limited to one
// open connection.
func singleConn(driver string) bool {
	return driver == "sqlite3" || driver == "sqlite"
}

var dqliteMutex sync.Mutex
var dqliteDrivers = map[string]string{}

// dqliteDriverName registers a dqlite client driver for the node at
// address and returns its database/sql name. Each address is registered
// once per process.
func dqliteDriverName(ctx context.Context, address string) (string, error) {
	dqliteMutex.Lock()
	defer dqliteMutex.Unlock()
	if name, ok := dqliteDrivers[address]; ok {
		return name, nil
	}

	store := client.NewInmemNodeStore()
	if err := store.Set(ctx, []client.NodeInfo{{Address: address}}); err != nil {
		return "", errors.Wrap(err, "cannot set dqlite node store")
	}
	drv, err := dqlitedriver.New(store)
	if err != nil {
		return "", errors.Wrap(err, "cannot create dqlite driver")
	}
	name := "dqlite-" + address
	sql.Register(name, drv)
	dqliteDrivers[address] = name
	return name, nil
}

// open opens the handle described by cfg. It does not check connectivity.
func open(ctx context.Context, cfg Config) (*sql.DB, error) {
	dsn, err := cfg.dsn()
	if err != nil {
		return nil, err
	}
	driverName := cfg.Driver
	if cfg.Driver == "dqlite" {
		driverName, err = dqliteDriverName(ctx, cfg.address())
		if err != nil {
			return nil, err
		}
	}
	sqldb, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if singleConn(cfg.Driver) {
		sqldb.SetMaxOpenConns(1)
	}
	return sqldb, nil
}
