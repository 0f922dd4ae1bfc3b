package valuer

import (
	"reflect"
	"unsafe"

	"github.com/startdusk/sqlcrud/orm/internal/errs"
	"github.com/startdusk/sqlcrud/orm/model"
)

type unsafeValue struct {
	model *model.Model

	// 结构体的起始地址
	address unsafe.Pointer
}

// 确保类型变更 我们能得到通知
var _ Creator = NewUnsafeValue

func NewUnsafeValue(model *model.Model, val any) Value {
	return &unsafeValue{
		model:   model,
		address: reflect.ValueOf(val).UnsafePointer(),
	}
}

func (u unsafeValue) Field(name string) (any, error) {
	fd, ok := u.model.FieldMap[name]
	if !ok {
		return nil, errs.NewErrUnknownField(name)
	}
	return reflect.NewAt(fd.Type, u.fieldAddress(fd)).Elem().Interface(), nil
}

func (u unsafeValue) Pointer(fd *model.Field) any {
	return reflect.NewAt(fd.Type, u.fieldAddress(fd)).Interface()
}

// 字段地址 = 起始地址 + 偏移量
func (u unsafeValue) fieldAddress(fd *model.Field) unsafe.Pointer {
	return unsafe.Add(u.address, fd.Offset)
}

func (u unsafeValue) SetColumns(rows Rows, want []*model.Field) error {
	columns, fields, err := plan(rows, want)
	if err != nil {
		return err
	}

	vals := sinks(len(columns))
	for i, fd := range fields {
		if fd == nil {
			continue
		}
		// 在字段的地址上创建一个特定类型的指针
		vals[i] = u.Pointer(fd)
	}

	// scan 就已经是对对象的字段赋值
	if err := rows.Scan(vals...); err != nil {
		return locate(rows, columns, fields, vals, err)
	}
	return nil
}
