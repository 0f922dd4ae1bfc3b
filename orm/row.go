package orm

import (
	"github.com/startdusk/sqlcrud/orm/internal/errs"
)

// Row 结果集的当前行, 给自定义映射使用
type Row interface {
	// Columns 结果集的列名
	Columns() []string
	Scan(dest ...any) error
	// Get 按照列名读取一列, 列不存在返回 MissingColumn, 类型不对返回 TypeMismatch
	Get(column string, dest any) error
}

// RowMapper 把一行转换成任意类型, 用于连表或者聚合这种和记录类型不一一对应的结果
type RowMapper[R any] func(row Row) (R, error)

type row struct {
	rows    Rows
	columns []string
}

func newRow(rows Rows) (*row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	return &row{rows: rows, columns: columns}, nil
}

func (r *row) Columns() []string {
	return r.columns
}

func (r *row) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *row) Get(column string, dest any) error {
	idx := -1
	for i, col := range r.columns {
		if col == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errs.NewErrMissingColumn(column)
	}
	vals := make([]any, len(r.columns))
	for i := range vals {
		vals[i] = new(any)
	}
	vals[idx] = dest
	if err := r.rows.Scan(vals...); err != nil {
		return errs.NewErrTypeMismatch(column, err)
	}
	return nil
}
