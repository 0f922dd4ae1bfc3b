package valuer

import (
	"reflect"

	"github.com/startdusk/sqlcrud/orm/internal/errs"
	"github.com/startdusk/sqlcrud/orm/model"
)

type reflectValue struct {
	model *model.Model

	// val 对应 泛型 T 的指针
	val reflect.Value
}

// 确保类型变更 我们能得到通知
var _ Creator = NewReflectValue

func NewReflectValue(model *model.Model, val any) Value {
	return &reflectValue{
		model: model,
		val:   reflect.ValueOf(val).Elem(),
	}
}

func (r reflectValue) Field(name string) (any, error) {
	fd, ok := r.model.FieldMap[name]
	if !ok {
		return nil, errs.NewErrUnknownField(name)
	}
	return r.val.Field(fd.Index).Interface(), nil
}

func (r reflectValue) Pointer(fd *model.Field) any {
	return r.val.Field(fd.Index).Addr().Interface()
}

func (r reflectValue) SetColumns(rows Rows, want []*model.Field) error {
	columns, fields, err := plan(rows, want)
	if err != nil {
		return err
	}

	// 利用 columns 来解决 select 的列顺序 和 列字段类型的问题
	vals := sinks(len(columns))
	valElems := make([]reflect.Value, len(columns))
	for i, fd := range fields {
		if fd == nil {
			continue
		}
		// 反射创建一个实例
		// 例如: fd.Type = int类型, 那么 val 就是 *int类型, 所以需要 取Elem() 获取它的实例
		val := reflect.New(fd.Type)
		vals[i] = val.Interface()
		valElems[i] = val.Elem()
	}

	if err := rows.Scan(vals...); err != nil {
		return locate(rows, columns, fields, vals, err)
	}

	// 把 scan 后的数据放到构造的entity中
	for i, fd := range fields {
		if fd == nil {
			continue
		}
		r.val.Field(fd.Index).Set(valElems[i])
	}
	return nil
}
