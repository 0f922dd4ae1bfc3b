package orm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/startdusk/sqlcrud/orm/internal/errs"
	"github.com/startdusk/sqlcrud/orm/internal/placeholder"
	"github.com/startdusk/sqlcrud/orm/model"
)

var _ QueryBuilder = &RawQuerier[any]{}

// RawQuerier 手写的 SQL, 参数用通用标记 ? 表示, 执行的时候按照方言替换
// 结果按照列名映射到 T 的字段, T 里面没有的列会被忽略
type RawQuerier[T any] struct {
	core
	sess Session
	sql  string
	args []any
}

func RawQuery[T any](sess Session, query string, args ...any) *RawQuerier[T] {
	return &RawQuerier[T]{
		core: sess.getCore(),
		sess: sess,
		sql:  query,
		args: args,
	}
}

func (r *RawQuerier[T]) Build() (*Query, error) {
	query, markers, err := placeholder.Resolve(r.sql, r.dialect.Placeholder(), 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrMalformedClause, err)
	}
	if markers != len(r.args) {
		return nil, errs.NewErrParamCountMismatch(query, markers, len(r.args))
	}
	params := make(ParameterList, 0, len(r.args))
	for i, arg := range r.args {
		params = append(params, Param{Position: i + 1, Value: arg})
	}
	return &Query{
		SQL:    query,
		Args:   r.args,
		Params: params,
	}, nil
}

func (r *RawQuerier[T]) queryContext(m *model.Model) *QueryContext {
	return &QueryContext{
		Type:    "RAW",
		Builder: r,
		Model:   m,
	}
}

// Get 返回第一行, 没有数据返回 ErrNotFound
func (r *RawQuerier[T]) Get(ctx context.Context) (*T, error) {
	m, err := r.r.Get(new(T))
	if err != nil {
		return nil, err
	}
	res := get(ctx, r.sess, r.core, r.queryContext(m), func(rows Rows) (any, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, errs.ErrNotFound
		}
		want, err := presentFields(m, rows)
		if err != nil {
			return nil, err
		}
		t := new(T)
		if err = r.creator(m, t).SetColumns(rows, want); err != nil {
			return nil, err
		}
		return t, nil
	})
	if res.Err != nil {
		return nil, res.Err
	}
	t, _ := res.Result.(*T)
	return t, nil
}

func (r *RawQuerier[T]) GetMulti(ctx context.Context) ([]*T, error) {
	m, err := r.r.Get(new(T))
	if err != nil {
		return nil, err
	}
	res := get(ctx, r.sess, r.core, r.queryContext(m), func(rows Rows) (any, error) {
		want, err := presentFields(m, rows)
		if err != nil {
			return nil, err
		}
		list := make([]*T, 0, 8)
		for rows.Next() {
			t := new(T)
			if err = r.creator(m, t).SetColumns(rows, want); err != nil {
				return nil, err
			}
			list = append(list, t)
		}
		return list, nil
	})
	if res.Err != nil {
		return nil, res.Err
	}
	list, _ := res.Result.([]*T)
	return list, nil
}

func (r *RawQuerier[T]) Exec(ctx context.Context) Result {
	var result Result
	m, err := r.r.Get(new(T))
	if err != nil {
		result.err = err
		return result
	}
	res := exec(ctx, r.sess, r.core, r.queryContext(m))
	if val, ok := res.Result.(sql.Result); ok {
		result.res = val
	}
	result.err = res.Err
	return result
}

// presentFields 结果集里面出现了的, 并且可以映射的字段
func presentFields(m *model.Model, rows Rows) ([]*model.Field, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	want := make([]*model.Field, 0, len(cols))
	for _, col := range cols {
		if fd, ok := m.ColumnMap[col]; ok && fd.Mapped() {
			want = append(want, fd)
		}
	}
	return want, nil
}
