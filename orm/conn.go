package orm

import (
	"context"
	"database/sql"
)

var (
	_ Session = &Conn{}
)

// Conn 独占一个连接, 不能并发使用
type Conn struct {
	core
	Ops
	conn *sql.Conn
}

// OpenConn 默认使用 MySQL 方言
func OpenConn(conn *sql.Conn, opts ...Option) (*Conn, error) {
	c, err := newCore(DialectMySQL, opts...)
	if err != nil {
		return nil, err
	}
	return newConn(c, conn), nil
}

func newConn(c core, conn *sql.Conn) *Conn {
	res := &Conn{core: c, conn: conn}
	res.Ops = Ops{sess: res}
	return res
}

func (c *Conn) getCore() core {
	return c.core
}

func (c *Conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

func (c *Conn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := c.conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return newTx(c.core, sqlTx{tx: tx}), nil
}

func (c *Conn) DoTx(ctx context.Context, fn TxFunc, opts *sql.TxOptions) error {
	return doTx(ctx, func(ctx context.Context) (*Tx, error) {
		return c.BeginTx(ctx, opts)
	}, fn)
}

// Close 把连接还给连接池
func (c *Conn) Close() error {
	return c.conn.Close()
}
