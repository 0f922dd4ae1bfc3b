package orm

import (
	"reflect"

	"github.com/google/uuid"

	"github.com/startdusk/sqlcrud/orm/internal/errs"
	"github.com/startdusk/sqlcrud/orm/internal/valuer"
	"github.com/startdusk/sqlcrud/orm/model"
)

// crudBuilder 一次调用的 QueryBuilder
// 语句来自描述符, 参数按照语句的参数计划从记录里面读取
type crudBuilder struct {
	c    core
	desc *model.Descriptor
	val  valuer.Value

	stmt  *statement
	query *Query
	err   error
	built bool
}

// Build 只会真正执行一次, 中间件多次调用得到的是同一个结果
func (b *crudBuilder) Build() (*Query, error) {
	if !b.built {
		b.built = true
		b.query, b.err = b.build()
	}
	return b.query, b.err
}

func (b *crudBuilder) statement() (*statement, error) {
	if b.stmt != nil {
		return b.stmt, nil
	}
	stmt, err := b.c.statement(b.desc)
	if err != nil {
		return nil, err
	}
	b.stmt = stmt
	return stmt, nil
}

func (b *crudBuilder) build() (*Query, error) {
	stmt, err := b.statement()
	if err != nil {
		return nil, err
	}
	params := make(ParameterList, 0, len(stmt.params))
	for i, fd := range stmt.params {
		v, err := b.val.Field(fd.GoName)
		if err != nil {
			return nil, err
		}
		params = append(params, Param{
			Position: i + 1,
			Column:   fd.ColName,
			Type:     fd.Type,
			Value:    v,
		})
	}
	if stmt.markers != len(params) {
		return nil, errs.NewErrParamCountMismatch(stmt.SQL, stmt.markers, len(params))
	}
	return &Query{
		SQL:    stmt.SQL,
		Args:   params.Args(),
		Params: params,
	}, nil
}

// newCall 推导描述符, 准备好一次调用需要的上下文
func newCall(sess Session, record any, op model.Operation) (core, *QueryContext, *crudBuilder, error) {
	c := sess.getCore()
	if !isStructPointer(record) {
		return c, nil, nil, errs.ErrPointerOnly
	}
	d, err := c.r.Descriptor(record, op)
	if err != nil {
		return c, nil, nil, err
	}
	b := &crudBuilder{
		c:    c,
		desc: d,
		val:  c.creator(d.Model, record),
	}
	qc := &QueryContext{
		Type:       op.String(),
		Builder:    b,
		Model:      d.Model,
		Descriptor: d,
	}
	return c, qc, b, nil
}

func isStructPointer(record any) bool {
	val := reflect.ValueOf(record)
	return val.Kind() == reflect.Pointer && !val.IsNil() && val.Elem().Kind() == reflect.Struct
}

// generate 给 generate=uuid 并且还是零值的字段生成 uuid
func generate(val valuer.Value, fds []*model.Field) {
	for _, fd := range fds {
		if fd.Generate == "" {
			continue
		}
		field := reflect.ValueOf(val.Pointer(fd)).Elem()
		if !field.IsZero() {
			continue
		}
		id := uuid.New()
		if field.Kind() == reflect.String {
			field.SetString(id.String())
		} else {
			field.Set(reflect.ValueOf(id))
		}
	}
}

// setInteger 用 LastInsertId 回填自增主键
func setInteger(val valuer.Value, fd *model.Field, id int64) {
	field := reflect.ValueOf(val.Pointer(fd)).Elem()
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		field.SetInt(id)
	default:
		field.SetUint(uint64(id))
	}
}
