package orm

import (
	"context"
	"database/sql"
	"reflect"
)

//go:generate mockgen -destination=mocks/executor.gen.go -package=mocks github.com/startdusk/sqlcrud/orm Executor,Rows

// Executor 执行语句的能力, 连接, 连接池, 事务都实现了它
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Rows 结果集, *sql.Rows 满足这个接口
type Rows interface {
	Next() bool
	Columns() ([]string, error)
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Session 是带有 orm 配置的 Executor
// 只能使用本包提供的实现: DB, Conn, Tx, PgxConn, PgxPool, ConnPool, Client
type Session interface {
	Executor
	getCore() core
}

type QueryBuilder interface {
	Build() (*Query, error)
}

// Query 编译之后的语句和按照占位符顺序排列的参数
type Query struct {
	SQL  string
	Args []any
	// Params 和 Args 一一对应, 多了位置, 列名和类型
	Params ParameterList
}

// Param 一个绑定参数
type Param struct {
	// Position 从 1 开始, 对应第几个占位符
	Position int
	Column   string
	Type     reflect.Type
	Value    any
}

type ParameterList []Param

func (p ParameterList) Args() []any {
	if len(p) == 0 {
		return nil
	}
	args := make([]any, 0, len(p))
	for _, param := range p {
		args = append(args, param.Value)
	}
	return args
}
