package model

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/startdusk/sqlcrud/orm/internal/errs"
)

// Model 是一个记录类型解析之后的元数据
type Model struct {
	// TableName 表名
	TableName string
	// FieldMap 字段名到字段的映射
	FieldMap map[string]*Field
	// ColumnMap 列名到字段的映射
	ColumnMap map[string]*Field
	// Fields 按照声明顺序排列
	Fields []*Field

	Attrs Attributes

	typ reflect.Type

	// 下面是编译之后的子句
	selectList string
	groupBy    string
	orderBy    string
	join       *Clause
	where      *Clause
	having     *Clause
	limit      *uint64
	offset     *uint64
	update     []*Field
	returning  []*Field
}

// Name 类型名, 用于错误信息
func (m *Model) Name() string {
	if m.typ == nil {
		return ""
	}
	return m.typ.String()
}

func (m *Model) Type() reflect.Type {
	return m.typ
}

// Field 字段
type Field struct {
	// ColName 列名
	ColName string
	// GoName 字段名
	GoName string
	// Type 字段类型
	Type reflect.Type
	// Offset 相对于对象起始地址的字段偏移量
	Offset uintptr
	// Index 结构体中的下标
	Index int

	// ReadOnly 只查询, 不插入也不更新, 一般是数据库生成的主键
	ReadOnly bool
	// Filter 只作为过滤条件的输入, 不查询, 不插入, 不映射
	Filter bool
	// Generate 插入前生成值, 目前只支持 uuid
	Generate string
}

// Insertable 插入语句是否包含这个字段
func (f *Field) Insertable() bool {
	return !f.ReadOnly && !f.Filter
}

// Mapped 查询结果是否映射到这个字段
func (f *Field) Mapped() bool {
	return !f.Filter
}

// Attributes 类型级别的声明, 来自 _ 字段的标签或者 ModelOption
//
//	type User struct {
//		_    struct{} `table:"users" where:"id = ?"`
//		ID   int64
//		Name string
//	}
type Attributes struct {
	Where   string
	Select  string
	Join    string
	GroupBy string
	Having  string
	OrderBy string
	Limit   string
	Offset  string

	Update    []string
	Returning []string
}

// ModelOption 在解析标签之后生效, 可以覆盖标签的声明
type ModelOption func(m *Model) error

func ModelWithTableName(tableName string) ModelOption {
	return func(m *Model) error {
		m.TableName = tableName
		return nil
	}
}

func ModelWithColumnName(field string, colName string) ModelOption {
	return func(m *Model) error {
		fd, ok := m.FieldMap[field]
		if !ok {
			return errs.NewErrUnknownField(field)
		}
		delete(m.ColumnMap, fd.ColName)
		fd.ColName = colName
		m.ColumnMap[colName] = fd
		return nil
	}
}

func ModelWithWhere(where string) ModelOption {
	return func(m *Model) error {
		m.Attrs.Where = where
		return nil
	}
}

func ModelWithSelect(sel string) ModelOption {
	return func(m *Model) error {
		m.Attrs.Select = sel
		return nil
	}
}

func ModelWithJoin(join string) ModelOption {
	return func(m *Model) error {
		m.Attrs.Join = join
		return nil
	}
}

func ModelWithGroupBy(groupBy string) ModelOption {
	return func(m *Model) error {
		m.Attrs.GroupBy = groupBy
		return nil
	}
}

func ModelWithHaving(having string) ModelOption {
	return func(m *Model) error {
		m.Attrs.Having = having
		return nil
	}
}

func ModelWithOrderBy(orderBy string) ModelOption {
	return func(m *Model) error {
		m.Attrs.OrderBy = orderBy
		return nil
	}
}

func ModelWithLimit(limit uint64) ModelOption {
	return func(m *Model) error {
		m.Attrs.Limit = strconv.FormatUint(limit, 10)
		return nil
	}
}

func ModelWithOffset(offset uint64) ModelOption {
	return func(m *Model) error {
		m.Attrs.Offset = strconv.FormatUint(offset, 10)
		return nil
	}
}

// ModelWithUpdate 设置 UPDATE 语句要更新的列, 可以是字段名也可以是列名
func ModelWithUpdate(cols ...string) ModelOption {
	return func(m *Model) error {
		m.Attrs.Update = cols
		return nil
	}
}

// ModelWithReturning 设置 INSERT 语句的 RETURNING 列
func ModelWithReturning(cols ...string) ModelOption {
	return func(m *Model) error {
		m.Attrs.Returning = cols
		return nil
	}
}

// TableName 用户实现这个接口来返回自定义的表名
type TableName interface {
	TableName() string
}

// splitList 解析 "a, b ,c"
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	segs := strings.Split(s, ",")
	res := make([]string, 0, len(segs))
	for _, seg := range segs {
		if seg = strings.TrimSpace(seg); seg != "" {
			res = append(res, seg)
		}
	}
	return res
}
