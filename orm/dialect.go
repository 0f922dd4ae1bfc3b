package orm

import (
	"github.com/startdusk/sqlcrud/orm/internal/placeholder"
)

var (
	DialectMySQL      Dialect = &standardSQL{name: "mysql", style: placeholder.SingleMarker("?")}
	DialectPostgreSQL Dialect = &standardSQL{name: "postgres", style: placeholder.Positional("$"), returning: true}
	DialectSQLite     Dialect = &standardSQL{name: "sqlite3", style: placeholder.SingleMarker("?"), returning: true}
)

// PlaceholderStyle 决定通用标记 ? 最终被渲染成什么
type PlaceholderStyle = placeholder.Style

// Positional 带编号的占位符, 如 PostgreSQL 的 $1, $2
func Positional(prefix string) PlaceholderStyle {
	return placeholder.Positional(prefix)
}

// SingleMarker 不带编号的占位符, 如 MySQL 的 ?
func SingleMarker(marker string) PlaceholderStyle {
	return placeholder.SingleMarker(marker)
}

// Dialect 数据库方言
// 语句里面的标识符不加引号, 注册元数据的时候已经校验过
type Dialect interface {
	Name() string
	Placeholder() PlaceholderStyle
	// Returning 是否支持 INSERT ... RETURNING
	Returning() bool
}

type standardSQL struct {
	name      string
	style     PlaceholderStyle
	returning bool
}

func (d *standardSQL) Name() string {
	return d.name
}

func (d *standardSQL) Placeholder() PlaceholderStyle {
	return d.style
}

func (d *standardSQL) Returning() bool {
	return d.returning
}

// NewDialect 用于内置方言之外的数据库
func NewDialect(name string, style PlaceholderStyle, returning bool) Dialect {
	return &standardSQL{name: name, style: style, returning: returning}
}

// DialectFor 根据 database/sql 的驱动名找到方言
func DialectFor(driverName string) (Dialect, bool) {
	switch driverName {
	case "postgres", "pgx", "pq":
		return DialectPostgreSQL, true
	case "mysql":
		return DialectMySQL, true
	case "sqlite3", "sqlite":
		return DialectSQLite, true
	}
	return nil, false
}
