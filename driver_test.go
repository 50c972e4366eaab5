// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrecord

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// This file contains a wrapper sql.Driver over the SQLite driver which
// records the statements run on each connection. Tests use it to check
// which statements an operation issued, or that it issued none.

// recordedStmts stores the statements run, indexed by test case. The
// recordedMutex must be held when accessing it.
var recordedStmts = map[string][]string{}
var recordedMutex sync.Mutex

type recordingDriver struct {
	driver.Driver
}

type recordingConn struct {
	testName string
	*sqlite3.SQLiteConn
}

func (c *recordingConn) record(query string) {
	recordedMutex.Lock()
	defer recordedMutex.Unlock()
	recordedStmts[c.testName] = append(recordedStmts[c.testName], query)
}

func (c *recordingConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	rows, err := c.SQLiteConn.QueryContext(ctx, query, args)
	if err == nil {
		c.record(query)
	}
	return rows, err
}

func (c *recordingConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	res, err := c.SQLiteConn.ExecContext(ctx, query, args)
	if err == nil {
		c.record(query)
	}
	return res, err
}

const testNameTag = "testName"

// Open expects the DSN to contain the test name using the testNameTag
// attribute.
func (d *recordingDriver) Open(name string) (driver.Conn, error) {
	var testName string
	if _, parameters, ok := strings.Cut(name, "?"); ok {
		for _, p := range strings.Split(parameters, "&") {
			if k, v, _ := strings.Cut(p, "="); k == testNameTag {
				testName = v
			}
		}
	}
	if testName == "" {
		panic("internal error: testName is not found in the db DSN")
	}

	baseConn, err := d.Driver.Open(name)
	if err != nil {
		return nil, err
	}
	if baseConn, ok := baseConn.(*sqlite3.SQLiteConn); ok {
		return &recordingConn{SQLiteConn: baseConn, testName: testName}, nil
	}
	panic("internal error: base driver is not SQLite")
}

// recordedStatements returns the statements run by the test since the
// last call to resetRecorded.
func recordedStatements(testName string) []string {
	recordedMutex.Lock()
	defer recordedMutex.Unlock()
	return append([]string(nil), recordedStmts[testName]...)
}

func resetRecorded(testName string) {
	recordedMutex.Lock()
	defer recordedMutex.Unlock()
	delete(recordedStmts, testName)
}

func init() {
	sql.Register("sqlite3_recorded", &recordingDriver{
		&sqlite3.SQLiteDriver{},
	})
}
