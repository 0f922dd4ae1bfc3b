package orm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/startdusk/sqlcrud/orm/internal/errs"
	"github.com/startdusk/sqlcrud/orm/model"
)

type Operation = model.Operation

const (
	OpSelect = model.OpSelect
	OpInsert = model.OpInsert
	OpUpdate = model.OpUpdate
	OpDelete = model.OpDelete
)

// InsertOutcome INSERT 的结果
type InsertOutcome struct {
	RowsAffected int64
	// LastInsertID 驱动支持的时候才有值
	LastInsertID int64
	// Returning 按照 RETURNING 声明的顺序, 这些值同时也写回了记录
	Returning []any
}

// FetchOne 查询一行, 没有数据返回 ErrNotFound
// 结果有多行的时候只取第一行
func FetchOne[T any](ctx context.Context, sess Session, record *T) (*T, error) {
	res, err := selectRows(ctx, sess, record, scanFirst(func() any {
		return new(T)
	}))
	if err != nil {
		return nil, err
	}
	t, _ := res.(*T)
	return t, nil
}

// FetchAll 查询所有行, 没有数据返回空切片而不是 ErrNotFound
func FetchAll[T any](ctx context.Context, sess Session, record *T) ([]*T, error) {
	res, err := selectRows(ctx, sess, record, func(c core, d *model.Descriptor, rows Rows) (any, error) {
		list := make([]*T, 0, 8)
		for rows.Next() {
			t := new(T)
			if err := c.creator(d.Model, t).SetColumns(rows, d.Columns); err != nil {
				return nil, err
			}
			list = append(list, t)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	list, _ := res.([]*T)
	return list, nil
}

// SelectWith 和 FetchOne 一样, 但是用 fn 转换第一行
func SelectWith[T any, R any](ctx context.Context, sess Session, record *T, fn RowMapper[R]) (R, error) {
	var zero R
	res, err := selectRows(ctx, sess, record, func(c core, d *model.Descriptor, rows Rows) (any, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, errs.ErrNotFound
		}
		r, err := newRow(rows)
		if err != nil {
			return nil, err
		}
		return fn(r)
	})
	if err != nil {
		return zero, err
	}
	r, _ := res.(R)
	return r, nil
}

// SelectAllWith 和 FetchAll 一样, 但是用 fn 转换每一行
func SelectAllWith[T any, R any](ctx context.Context, sess Session, record *T, fn RowMapper[R]) ([]R, error) {
	res, err := selectRows(ctx, sess, record, func(c core, d *model.Descriptor, rows Rows) (any, error) {
		r, err := newRow(rows)
		if err != nil {
			return nil, err
		}
		list := make([]R, 0, 8)
		for rows.Next() {
			item, err := fn(r)
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	list, _ := res.([]R)
	return list, nil
}

// Insert 插入一条记录
// 声明了 returning 的时候, 返回的值会写回记录
func Insert[T any](ctx context.Context, sess Session, record *T) (InsertOutcome, error) {
	return insert(ctx, sess, record)
}

// InsertReturning 插入一条记录, 返回第一个 RETURNING 列
func InsertReturning[T any, K any](ctx context.Context, sess Session, record *T) (K, error) {
	var zero K
	out, err := insert(ctx, sess, record)
	if err != nil {
		return zero, err
	}
	if len(out.Returning) == 0 {
		return zero, errs.NewErrBuild(OpInsert.String(), fmt.Sprintf("%T", record), errs.ErrReturningUnsupported)
	}
	k, ok := out.Returning[0].(K)
	if !ok {
		return zero, errs.NewErrTypeMismatch(fmt.Sprintf("%T", out.Returning[0]), fmt.Errorf("orm: 无法转换为 %T", zero))
	}
	return k, nil
}

// Update 返回受影响的行数
func Update[T any](ctx context.Context, sess Session, record *T) (int64, error) {
	return affect(ctx, sess, record, OpUpdate)
}

// Delete 返回受影响的行数, 没有匹配的行不是错误
func Delete[T any](ctx context.Context, sess Session, record *T) (int64, error) {
	return affect(ctx, sess, record, OpDelete)
}

// Prepare 提前推导描述符并且构造语句, 声明有问题的时候尽早失败
// 不传 ops 表示全部四种操作
func Prepare[T any](sess Session, ops ...Operation) error {
	if len(ops) == 0 {
		ops = []Operation{OpSelect, OpInsert, OpUpdate, OpDelete}
	}
	c := sess.getCore()
	for _, op := range ops {
		d, err := c.r.Descriptor(new(T), op)
		if err != nil {
			return err
		}
		if _, err = c.statement(d); err != nil {
			return err
		}
	}
	return nil
}

type scanFunc func(c core, d *model.Descriptor, rows Rows) (any, error)

func selectRows(ctx context.Context, sess Session, record any, scan scanFunc) (any, error) {
	c, qc, _, err := newCall(sess, record, OpSelect)
	if err != nil {
		return nil, err
	}
	res := get(ctx, sess, c, qc, func(rows Rows) (any, error) {
		return scan(c, qc.Descriptor, rows)
	})
	return res.Result, res.Err
}

func scanFirst(newItem func() any) scanFunc {
	return func(c core, d *model.Descriptor, rows Rows) (any, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			// 返回要和sql包语义一致
			return nil, errs.ErrNotFound
		}
		item := newItem()
		if err := c.creator(d.Model, item).SetColumns(rows, d.Columns); err != nil {
			return nil, err
		}
		return item, nil
	}
}

func insert(ctx context.Context, sess Session, record any) (InsertOutcome, error) {
	var out InsertOutcome
	c, qc, b, err := newCall(sess, record, OpInsert)
	if err != nil {
		return out, err
	}
	generate(b.val, qc.Descriptor.Columns)
	stmt, err := b.statement()
	if err != nil {
		return out, err
	}

	if len(stmt.returning) > 0 {
		res := get(ctx, sess, c, qc, func(rows Rows) (any, error) {
			var out InsertOutcome
			if !rows.Next() {
				return out, nil
			}
			if err := b.val.SetColumns(rows, stmt.returning); err != nil {
				return nil, err
			}
			out.RowsAffected = 1
			out.Returning, err = fieldValues(b, stmt.returning)
			return out, err
		})
		out, _ = res.Result.(InsertOutcome)
		return out, res.Err
	}

	res := exec(ctx, sess, c, qc)
	if res.Err != nil {
		return out, res.Err
	}
	sqlRes, ok := res.Result.(sql.Result)
	if !ok {
		return out, nil
	}
	if out.RowsAffected, err = sqlRes.RowsAffected(); err != nil {
		return out, err
	}
	id, idErr := sqlRes.LastInsertId()
	if idErr == nil {
		out.LastInsertID = id
	}
	if stmt.lastInsertID != nil {
		if idErr != nil {
			return out, idErr
		}
		setInteger(b.val, stmt.lastInsertID, id)
		out.Returning, err = fieldValues(b, []*model.Field{stmt.lastInsertID})
	}
	return out, err
}

func fieldValues(b *crudBuilder, fds []*model.Field) ([]any, error) {
	vals := make([]any, 0, len(fds))
	for _, fd := range fds {
		v, err := b.val.Field(fd.GoName)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func affect(ctx context.Context, sess Session, record any, op Operation) (int64, error) {
	c, qc, _, err := newCall(sess, record, op)
	if err != nil {
		return 0, err
	}
	res := exec(ctx, sess, c, qc)
	if res.Err != nil {
		return 0, res.Err
	}
	sqlRes, ok := res.Result.(sql.Result)
	if !ok {
		return 0, nil
	}
	return sqlRes.RowsAffected()
}
