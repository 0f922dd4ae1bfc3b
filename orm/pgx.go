package orm

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ Session = &PgxConn{}
	_ Session = &PgxPool{}
)

var errPgxLastInsertID = errors.New("orm: pgx 不支持 LastInsertId, 请使用 RETURNING")

// pgxQuerier *pgx.Conn, *pgxpool.Pool 和 pgx.Tx 都实现了它
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func pgxExec(ctx context.Context, q pgxQuerier, query string, args ...any) (sql.Result, error) {
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgxResult{tag: tag}, nil
}

func pgxQuery(ctx context.Context, q pgxQuerier, query string, args ...any) (Rows, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgxRows{rows: rows}, nil
}

// PgxConn 基于 pgx 的单个连接, 所有调用都由 context 驱动, 不会另外开启 goroutine
// 不能并发使用
type PgxConn struct {
	core
	Ops
	conn *pgx.Conn
}

// NewPgxConn 默认使用 PostgreSQL 方言
func NewPgxConn(conn *pgx.Conn, opts ...Option) (*PgxConn, error) {
	c, err := newCore(DialectPostgreSQL, opts...)
	if err != nil {
		return nil, err
	}
	res := &PgxConn{core: c, conn: conn}
	res.Ops = Ops{sess: res}
	return res, nil
}

func (p *PgxConn) getCore() core {
	return p.core
}

func (p *PgxConn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return pgxExec(ctx, p.conn, query, args...)
}

func (p *PgxConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return pgxQuery(ctx, p.conn, query, args...)
}

func (p *PgxConn) BeginTx(ctx context.Context, opts pgx.TxOptions) (*Tx, error) {
	tx, err := p.conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return newTx(p.core, pgxTx{tx: tx}), nil
}

func (p *PgxConn) DoTx(ctx context.Context, fn TxFunc, opts pgx.TxOptions) error {
	return doTx(ctx, func(ctx context.Context) (*Tx, error) {
		return p.BeginTx(ctx, opts)
	}, fn)
}

func (p *PgxConn) Close(ctx context.Context) error {
	return p.conn.Close(ctx)
}

// PgxPool 每次调用从连接池拿一个连接, 调用结束之后归还
// 拿不到连接的错误原样返回
type PgxPool struct {
	core
	Ops
	pool *pgxpool.Pool
}

// NewPgxPool 默认使用 PostgreSQL 方言
func NewPgxPool(pool *pgxpool.Pool, opts ...Option) (*PgxPool, error) {
	c, err := newCore(DialectPostgreSQL, opts...)
	if err != nil {
		return nil, err
	}
	res := &PgxPool{core: c, pool: pool}
	res.Ops = Ops{sess: res}
	return res, nil
}

func (p *PgxPool) getCore() core {
	return p.core
}

func (p *PgxPool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return pgxExec(ctx, p.pool, query, args...)
}

// Query 连接在 Rows 关闭的时候归还
func (p *PgxPool) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return pgxQuery(ctx, p.pool, query, args...)
}

func (p *PgxPool) BeginTx(ctx context.Context, opts pgx.TxOptions) (*Tx, error) {
	tx, err := p.pool.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return newTx(p.core, pgxTx{tx: tx}), nil
}

func (p *PgxPool) DoTx(ctx context.Context, fn TxFunc, opts pgx.TxOptions) error {
	return doTx(ctx, func(ctx context.Context) (*Tx, error) {
		return p.BeginTx(ctx, opts)
	}, fn)
}

func (p *PgxPool) Close() {
	p.pool.Close()
}

type pgxTx struct {
	tx pgx.Tx
}

func (p pgxTx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return pgxExec(ctx, p.tx, query, args...)
}

func (p pgxTx) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return pgxQuery(ctx, p.tx, query, args...)
}

// 提交和回滚不受调用方 context 的影响
func (p pgxTx) commit() error {
	return p.tx.Commit(context.Background())
}

func (p pgxTx) rollback() error {
	return p.tx.Rollback(context.Background())
}

type pgxRows struct {
	rows pgx.Rows
}

func (r pgxRows) Next() bool {
	return r.rows.Next()
}

func (r pgxRows) Columns() ([]string, error) {
	fds := r.rows.FieldDescriptions()
	cols := make([]string, 0, len(fds))
	for _, fd := range fds {
		cols = append(cols, fd.Name)
	}
	return cols, nil
}

func (r pgxRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r pgxRows) Close() error {
	r.rows.Close()
	return nil
}

func (r pgxRows) Err() error {
	return r.rows.Err()
}

type pgxResult struct {
	tag pgconn.CommandTag
}

func (r pgxResult) LastInsertId() (int64, error) {
	return 0, errPgxLastInsertID
}

func (r pgxResult) RowsAffected() (int64, error) {
	return r.tag.RowsAffected(), nil
}
