package orm

import (
	"context"
	"reflect"

	"github.com/startdusk/sqlcrud/orm/internal/errs"
	"github.com/startdusk/sqlcrud/orm/model"
)

// Ops 不需要泛型参数的增删改查, 嵌入在每一种会话里面
// 记录必须是指向结构体的指针, 查询到的数据直接写回记录
type Ops struct {
	sess Session
}

func (o Ops) FetchOne(ctx context.Context, record any) error {
	return fetchOne(ctx, o.sess, record)
}

// FetchAll dest 必须是 *[]T 或者 *[]*T, T 是记录的类型
func (o Ops) FetchAll(ctx context.Context, record any, dest any) error {
	return fetchAll(ctx, o.sess, record, dest)
}

func (o Ops) Insert(ctx context.Context, record any) (InsertOutcome, error) {
	return insert(ctx, o.sess, record)
}

func (o Ops) Update(ctx context.Context, record any) (int64, error) {
	return affect(ctx, o.sess, record, OpUpdate)
}

func (o Ops) Delete(ctx context.Context, record any) (int64, error) {
	return affect(ctx, o.sess, record, OpDelete)
}

// SelectWith 用 fn 处理第一行, 没有数据返回 ErrNotFound
func (o Ops) SelectWith(ctx context.Context, record any, fn func(row Row) error) error {
	return selectWith(ctx, o.sess, record, fn)
}

// SelectAllWith 用 fn 处理每一行
func (o Ops) SelectAllWith(ctx context.Context, record any, fn func(row Row) error) error {
	return selectAllWith(ctx, o.sess, record, fn)
}

func fetchOne(ctx context.Context, sess Session, record any) error {
	if !isStructPointer(record) {
		return errs.ErrPointerOnly
	}
	typ := reflect.TypeOf(record).Elem()
	// 先读到临时变量里面, 失败的时候不会改动记录
	res, err := selectRows(ctx, sess, record, scanFirst(func() any {
		return reflect.New(typ).Interface()
	}))
	if err != nil {
		return err
	}
	reflect.ValueOf(record).Elem().Set(reflect.ValueOf(res).Elem())
	return nil
}

func fetchAll(ctx context.Context, sess Session, record any, dest any) error {
	if !isStructPointer(record) {
		return errs.ErrPointerOnly
	}
	typ := reflect.TypeOf(record).Elem()
	destVal := reflect.ValueOf(dest)
	if destVal.Kind() != reflect.Pointer || destVal.IsNil() || destVal.Elem().Kind() != reflect.Slice {
		return errs.NewErrUnsupportedDest(dest)
	}
	sliceTyp := destVal.Elem().Type()
	elemTyp := sliceTyp.Elem()
	ptrElem := elemTyp == reflect.PointerTo(typ)
	if !ptrElem && elemTyp != typ {
		return errs.NewErrUnsupportedDest(dest)
	}

	res, err := selectRows(ctx, sess, record, func(c core, d *model.Descriptor, rows Rows) (any, error) {
		list := reflect.MakeSlice(sliceTyp, 0, 8)
		for rows.Next() {
			item := reflect.New(typ)
			if err := c.creator(d.Model, item.Interface()).SetColumns(rows, d.Columns); err != nil {
				return nil, err
			}
			if ptrElem {
				list = reflect.Append(list, item)
			} else {
				list = reflect.Append(list, item.Elem())
			}
		}
		return list.Interface(), nil
	})
	if err != nil {
		return err
	}
	destVal.Elem().Set(reflect.ValueOf(res))
	return nil
}

func selectWith(ctx context.Context, sess Session, record any, fn func(row Row) error) error {
	_, err := selectRows(ctx, sess, record, func(c core, d *model.Descriptor, rows Rows) (any, error) {
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
		return nil, fn(r)
	})
	return err
}

func selectAllWith(ctx context.Context, sess Session, record any, fn func(row Row) error) error {
	_, err := selectRows(ctx, sess, record, func(c core, d *model.Descriptor, rows Rows) (any, error) {
		r, err := newRow(rows)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			if err = fn(r); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}
