package valuer

import (
	"github.com/startdusk/sqlcrud/orm/model"
)

// Rows 是结果集里面映射需要用到的部分, *sql.Rows 和 pgx 的适配都满足
type Rows interface {
	Columns() ([]string, error)
	Scan(dest ...any) error
}

// Value 是对结构体实例的内部抽象
type Value interface {
	// Field 返回字段对应的值
	Field(name string) (any, error)
	// Pointer 返回指向字段的指针, 可以直接交给 Scan
	Pointer(fd *model.Field) any
	// SetColumns 把当前行写入结构体, want 里面的列必须全部出现
	// 结果集里面多出来的列会被忽略
	SetColumns(rows Rows, want []*model.Field) error
}

type Creator func(model *model.Model, entity any) Value
