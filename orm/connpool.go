package orm

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/silenceper/pool"
)

var (
	_ Session = &ConnPool{}
)

// ConnPool 基于 silenceper/pool 的 *sql.Conn 连接池
// 每次调用拿一个连接, 调用结束归还; 查询的连接在 Rows 关闭的时候归还
// 连接池的错误原样返回, 如 pool.ErrClosed, pool.ErrMaxActiveConnReached
type ConnPool struct {
	core
	Ops
	pool pool.Pool
}

// ConnPoolConfig 用 db 创建连接的默认配置, 可以在此基础上修改容量
func ConnPoolConfig(db *sql.DB) *pool.Config {
	return &pool.Config{
		InitialCap:  0,
		MaxCap:      30,
		MaxIdle:     10,
		IdleTimeout: time.Minute,
		Factory: func() (any, error) {
			return db.Conn(context.Background())
		},
		Close: func(i any) error {
			return i.(*sql.Conn).Close()
		},
		Ping: func(i any) error {
			return i.(*sql.Conn).PingContext(context.Background())
		},
	}
}

// NewConnPool 默认使用 MySQL 方言
func NewConnPool(p pool.Pool, opts ...Option) (*ConnPool, error) {
	c, err := newCore(DialectMySQL, opts...)
	if err != nil {
		return nil, err
	}
	res := &ConnPool{core: c, pool: p}
	res.Ops = Ops{sess: res}
	return res, nil
}

func (p *ConnPool) getCore() core {
	return p.core
}

func (p *ConnPool) acquire() (*sql.Conn, error) {
	val, err := p.pool.Get()
	if err != nil {
		return nil, err
	}
	return val.(*sql.Conn), nil
}

// release 出错的连接直接关闭, 不放回连接池
func (p *ConnPool) release(conn *sql.Conn, err error) {
	if err != nil && !isStatementErr(err) {
		_ = p.pool.Close(conn)
		return
	}
	_ = p.pool.Put(conn)
}

func (p *ConnPool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	conn, err := p.acquire()
	if err != nil {
		return nil, err
	}
	res, err := conn.ExecContext(ctx, query, args...)
	p.release(conn, err)
	return res, err
}

func (p *ConnPool) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	conn, err := p.acquire()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		p.release(conn, err)
		return nil, err
	}
	return &pooledRows{Rows: rows, put: func() {
		p.release(conn, nil)
	}}, nil
}

// Release 关闭连接池里面所有的连接
func (p *ConnPool) Release() {
	p.pool.Release()
}

// Len 连接池里面空闲连接的数量
func (p *ConnPool) Len() int {
	return p.pool.Len()
}

// isStatementErr 只有连接本身坏掉的时候才需要丢弃连接
func isStatementErr(err error) bool {
	return !errors.Is(err, sql.ErrConnDone) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

type pooledRows struct {
	*sql.Rows
	once sync.Once
	put  func()
}

func (r *pooledRows) Close() error {
	err := r.Rows.Close()
	r.once.Do(r.put)
	return err
}
