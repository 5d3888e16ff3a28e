package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"
)

// stubConn records every statement and answers from scripted results.
type stubConn struct {
	mu sync.Mutex

	execs   []statement
	queries []statement
	begins  []driver.TxOptions
	commits int
	rolls   int

	// execErr, when set, fails every exec.
	execErr error
	// affected is the RowsAffected of successful execs.
	affected int64
	// rows answers queries whose text contains the key.
	rows map[string][][]driver.Value
}

type statement struct {
	query string
	args  []driver.Value
}

func newStubStore() (*Store, *stubConn) {
	conn := &stubConn{affected: 1, rows: map[string][][]driver.Value{}}
	log := zerolog.Nop()
	db := sql.OpenDB(stubConnector{conn: conn})
	db.SetMaxOpenConns(1)
	return &Store{db: &dbpg.DB{Master: db}, log: &log}, conn
}

type stubConnector struct{ conn *stubConn }

func (c stubConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c stubConnector) Driver() driver.Driver                        { return stubDriver{c.conn} }

type stubDriver struct{ conn *stubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Ping(context.Context) error          { return nil }

func (c *stubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *stubConn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.begins = append(c.begins, opts)
	return stubTx{conn: c}, nil
}

func values(args []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(args))
	for i, a := range args {
		out[i] = a.Value
	}
	return out
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, statement{query: query, args: values(args)})
	if c.execErr != nil {
		return nil, c.execErr
	}
	return driver.RowsAffected(c.affected), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, statement{query: query, args: values(args)})
	for key, rows := range c.rows {
		if strings.Contains(query, key) {
			return &stubRows{rows: rows}, nil
		}
	}
	return &stubRows{}, nil
}

func (c *stubConn) lastQuery() statement {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queries) == 0 {
		return statement{}
	}
	return c.queries[len(c.queries)-1]
}

type stubTx struct{ conn *stubConn }

func (t stubTx) Commit() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.commits++
	return nil
}

func (t stubTx) Rollback() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.rolls++
	return nil
}

// stubRows yields single-column rows.
type stubRows struct {
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return []string{"value"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
