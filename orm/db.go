package orm

import (
	"context"
	"database/sql"
	"time"

	"github.com/startdusk/sqlcrud/cache"
)

var (
	_ Session = &DB{}
)

// preparedGrace 预编译语句被淘汰之后, 还在使用它的调用有这么长的时间完成
const preparedGrace = time.Minute

// DB 是 *sql.DB 的封装, 并发安全
type DB struct {
	core
	Ops
	db       *sql.DB
	prepared *cache.PreparedCache[*sql.Stmt]
}

// Open 根据驱动名选择默认方言, 识别不了的驱动使用 MySQL 方言
func Open(driver string, dataSourceName string, opts ...Option) (*DB, error) {
	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, err
	}
	if dialect, ok := DialectFor(driver); ok {
		opts = append([]Option{WithDialect(dialect)}, opts...)
	}
	return OpenDB(db, opts...)
}

// OpenDB 默认使用 MySQL 方言, 其他数据库需要 WithDialect
func OpenDB(db *sql.DB, opts ...Option) (*DB, error) {
	c, err := newCore(DialectMySQL, opts...)
	if err != nil {
		return nil, err
	}
	newDB := &DB{
		core: c,
		db:   db,
	}
	if c.preparedTTL > 0 {
		newDB.prepared = cache.NewPreparedCache[*sql.Stmt](c.preparedTTL, preparedGrace)
	}
	newDB.Ops = Ops{sess: newDB}
	return newDB, nil
}

func MustOpenDB(db *sql.DB, opts ...Option) *DB {
	newDB, err := OpenDB(db, opts...)
	if err != nil {
		panic(err)
	}
	return newDB
}

func MustOpen(driver string, dataSourceName string, opts ...Option) *DB {
	newDB, err := Open(driver, dataSourceName, opts...)
	if err != nil {
		panic(err)
	}
	return newDB
}

func (db *DB) getCore() core {
	return db.core
}

func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if db.prepared == nil {
		return db.db.ExecContext(ctx, query, args...)
	}
	stmt, err := db.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.ExecContext(ctx, args...)
}

func (db *DB) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if db.prepared == nil {
		rows, err = db.db.QueryContext(ctx, query, args...)
	} else {
		var stmt *sql.Stmt
		if stmt, err = db.prepare(ctx, query); err == nil {
			rows, err = stmt.QueryContext(ctx, args...)
		}
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (db *DB) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	return db.prepared.Get(ctx, query, func(ctx context.Context, query string) (*sql.Stmt, error) {
		return db.db.PrepareContext(ctx, query)
	})
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := db.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return newTx(db.core, sqlTx{tx: tx}), nil
}

// DoTx 开启事务执行 fn, fn 返回错误或者 panic 的时候回滚, 否则提交
func (db *DB) DoTx(ctx context.Context, fn TxFunc, opts *sql.TxOptions) error {
	return doTx(ctx, func(ctx context.Context) (*Tx, error) {
		return db.BeginTx(ctx, opts)
	}, fn)
}

// Conn 从连接池里面拿一个连接, 和 DB 使用相同的配置
func (db *DB) Conn(ctx context.Context) (*Conn, error) {
	conn, err := db.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return newConn(db.core, conn), nil
}

func (db *DB) Close() error {
	if db.prepared != nil {
		_ = db.prepared.Close()
	}
	return db.db.Close()
}
