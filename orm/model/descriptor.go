package model

import (
	"fmt"
	"strings"

	"github.com/startdusk/sqlcrud/orm/internal/errs"
)

// Operation 语句的种类
type Operation uint8

const (
	OpSelect Operation = iota
	OpInsert
	OpUpdate
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpSelect:
		return "SELECT"
	case OpInsert:
		return "INSERT"
	case OpUpdate:
		return "UPDATE"
	case OpDelete:
		return "DELETE"
	}
	return fmt.Sprintf("Operation(%d)", uint8(o))
}

// Descriptor 一个记录类型在一个操作下的描述符, 推导之后不再修改
type Descriptor struct {
	// ID 在注册中心内唯一, 可以作为缓存的 key
	ID    uint64
	Op    Operation
	Model *Model
	Table string

	// Columns SELECT 时是需要映射的字段, INSERT 时是需要插入的字段
	Columns []*Field
	// SelectList SELECT 的列, 没有声明的时候就是 Columns 的列名
	SelectList string

	Join   *Clause
	Where  *Clause
	Having *Clause

	GroupBy string
	OrderBy string
	Limit   *uint64
	Offset  *uint64

	// Update UPDATE 语句 SET 的字段, 按照声明顺序
	Update []*Field
	// Returning INSERT 语句 RETURNING 的字段
	Returning []*Field
}

// Params 按照参数标记的顺序返回绑定的字段, 和语句的构造顺序一致
func (d *Descriptor) Params() []*Field {
	var res []*Field
	switch d.Op {
	case OpInsert:
		return append(res, d.Columns...)
	case OpUpdate:
		res = append(res, d.Update...)
	}
	for _, c := range []*Clause{d.Join, d.Where, d.Having} {
		if c != nil {
			res = append(res, c.Fields...)
		}
	}
	return res
}

// derive 只做和操作相关的校验, 通用的校验在 compile 里面已经完成
func (m *Model) derive(op Operation) (*Descriptor, error) {
	if m.TableName == "" {
		return nil, m.schemaErr("table", errs.ErrMissingTable, "")
	}
	d := &Descriptor{
		Op:    op,
		Model: m,
		Table: m.TableName,
	}
	switch op {
	case OpSelect:
		d.Columns = m.filterFields((*Field).Mapped)
		d.SelectList = m.selectList
		if d.SelectList == "" {
			if len(d.Columns) == 0 {
				return nil, m.schemaErr("select", errs.ErrMalformedClause, "没有可以查询的列")
			}
			cols := make([]string, 0, len(d.Columns))
			for _, fd := range d.Columns {
				cols = append(cols, fd.ColName)
			}
			d.SelectList = strings.Join(cols, ", ")
		}
		d.Join = m.join
		d.Where = m.where
		d.Having = m.having
		d.GroupBy = m.groupBy
		d.OrderBy = m.orderBy
		d.Limit = m.limit
		d.Offset = m.offset
	case OpInsert:
		d.Columns = m.filterFields((*Field).Insertable)
		d.Returning = m.returning
	case OpUpdate:
		if m.where == nil {
			return nil, m.schemaErr("where", errs.ErrMissingWhere, "UPDATE")
		}
		d.Update = m.update
		d.Where = m.where
	case OpDelete:
		if m.where == nil {
			return nil, m.schemaErr("where", errs.ErrMissingWhere, "DELETE")
		}
		d.Where = m.where
	default:
		return nil, m.schemaErr("op", errs.ErrMalformedClause, op.String())
	}
	return d, nil
}

func (m *Model) filterFields(pred func(*Field) bool) []*Field {
	res := make([]*Field, 0, len(m.Fields))
	for _, fd := range m.Fields {
		if pred(fd) {
			res = append(res, fd)
		}
	}
	return res
}
