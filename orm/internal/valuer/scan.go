package valuer

import (
	"github.com/startdusk/sqlcrud/orm/internal/errs"
	"github.com/startdusk/sqlcrud/orm/model"
)

// plan 记录结果集每一列应该写到哪个字段, 没有对应字段的列是 nil
func plan(rows Rows, want []*model.Field) ([]string, []*model.Field, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	fields := make([]*model.Field, len(columns))
	for _, fd := range want {
		found := false
		for i, col := range columns {
			if col == fd.ColName {
				fields[i] = fd
				found = true
			}
		}
		if !found {
			return nil, nil, errs.NewErrMissingColumn(fd.ColName)
		}
	}
	return columns, fields, nil
}

// sinks 给没有对应字段的列准备接收者
func sinks(n int) []any {
	vals := make([]any, n)
	for i := range vals {
		vals[i] = new(any)
	}
	return vals
}

// locate 整行 Scan 失败之后, 逐列重新 Scan 找出出错的列
func locate(rows Rows, columns []string, fields []*model.Field, dests []any, scanErr error) error {
	for i, fd := range fields {
		if fd == nil {
			continue
		}
		single := sinks(len(dests))
		single[i] = dests[i]
		if err := rows.Scan(single...); err != nil {
			return errs.NewErrTypeMismatch(columns[i], err)
		}
	}
	return errs.NewErrTypeMismatch("", scanErr)
}
