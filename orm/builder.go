package orm

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/startdusk/sqlcrud/orm/internal/errs"
	"github.com/startdusk/sqlcrud/orm/model"
)

// statement 是描述符在某个方言下构造出来的语句, 可以缓存
// 不包含任何参数的值
type statement struct {
	SQL string
	// params 参数计划, 第 i 个字段绑定第 i 个占位符
	params []*model.Field
	// markers 语句里面实际的占位符数量
	markers int

	// returning 通过 RETURNING 取回的字段
	returning []*model.Field
	// lastInsertID 方言不支持 RETURNING 时, 用 LastInsertId 回填的字段
	lastInsertID *model.Field
}

// builder 构造语句, 写入占位符的同时记录参数计划
// 占位符和参数使用同一次遍历, 所以顺序一定一致
type builder struct {
	sb      strings.Builder
	dialect Dialect
	pos     int
	params  []*model.Field
}

func newBuilder(dialect Dialect) *builder {
	return &builder{
		dialect: dialect,
		pos:     1,
		// 很少有语句能够超过8个参数
		// INSERT除外
		params: make([]*model.Field, 0, 8),
	}
}

// marker 写入一个占位符, 绑定 fd
func (b *builder) marker(fd *model.Field) {
	b.dialect.Placeholder().Write(&b.sb, b.pos)
	b.pos++
	b.params = append(b.params, fd)
}

func (b *builder) clause(keyword string, c *model.Clause) {
	if c == nil {
		return
	}
	b.sb.WriteByte(' ')
	if keyword != "" {
		b.sb.WriteString(keyword)
		b.sb.WriteByte(' ')
	}
	b.pos = c.Render(&b.sb, b.dialect.Placeholder(), b.pos)
	b.params = append(b.params, c.Fields...)
}

func (b *builder) columns(fds []*model.Field) {
	for i, fd := range fds {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString(fd.ColName)
	}
}

func (b *builder) keyword(keyword, text string) {
	if text == "" {
		return
	}
	b.sb.WriteByte(' ')
	b.sb.WriteString(keyword)
	b.sb.WriteByte(' ')
	b.sb.WriteString(text)
}

func (b *builder) uint(keyword string, n *uint64) {
	if n == nil {
		return
	}
	b.keyword(keyword, strconv.FormatUint(*n, 10))
}

func (b *builder) statement() *statement {
	query := b.sb.String()
	return &statement{
		SQL:     query,
		params:  b.params,
		markers: b.dialect.Placeholder().Count(query),
	}
}

// buildStatement 相同的描述符和方言总是得到相同的语句
func buildStatement(d *model.Descriptor, dialect Dialect) (*statement, error) {
	b := newBuilder(dialect)
	switch d.Op {
	case model.OpSelect:
		b.sb.WriteString("SELECT ")
		b.sb.WriteString(d.SelectList)
		b.sb.WriteString(" FROM ")
		b.sb.WriteString(d.Table)
		b.clause("", d.Join)
		b.clause("WHERE", d.Where)
		b.keyword("GROUP BY", d.GroupBy)
		b.clause("HAVING", d.Having)
		b.keyword("ORDER BY", d.OrderBy)
		b.uint("LIMIT", d.Limit)
		b.uint("OFFSET", d.Offset)
		return b.statement(), nil
	case model.OpInsert:
		return buildInsert(b, d)
	case model.OpUpdate:
		if len(d.Update) == 0 {
			return nil, errs.NewErrBuild(d.Op.String(), d.Model.Name(), errs.ErrEmptyUpdateSet)
		}
		b.sb.WriteString("UPDATE ")
		b.sb.WriteString(d.Table)
		b.sb.WriteString(" SET ")
		for i, fd := range d.Update {
			if i > 0 {
				b.sb.WriteString(", ")
			}
			b.sb.WriteString(fd.ColName)
			b.sb.WriteString(" = ")
			b.marker(fd)
		}
		b.clause("WHERE", d.Where)
		return b.statement(), nil
	case model.OpDelete:
		b.sb.WriteString("DELETE FROM ")
		b.sb.WriteString(d.Table)
		b.clause("WHERE", d.Where)
		return b.statement(), nil
	}
	return nil, errs.NewErrBuild(d.Op.String(), d.Model.Name(), errs.ErrMalformedClause)
}

func buildInsert(b *builder, d *model.Descriptor) (*statement, error) {
	if len(d.Columns) == 0 {
		return nil, errs.NewErrBuild(d.Op.String(), d.Model.Name(), errs.ErrEmptyInsertSet)
	}
	b.sb.WriteString("INSERT INTO ")
	b.sb.WriteString(d.Table)
	b.sb.WriteString(" (")
	b.columns(d.Columns)
	b.sb.WriteString(") VALUES (")
	for i, fd := range d.Columns {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.marker(fd)
	}
	b.sb.WriteByte(')')

	if len(d.Returning) == 0 {
		return b.statement(), nil
	}
	if b.dialect.Returning() {
		b.sb.WriteString(" RETURNING ")
		b.columns(d.Returning)
		stmt := b.statement()
		stmt.returning = d.Returning
		return stmt, nil
	}
	// 不支持 RETURNING 的方言只能回填一个整数自增主键
	if len(d.Returning) == 1 && isInteger(d.Returning[0].Type) {
		stmt := b.statement()
		stmt.lastInsertID = d.Returning[0]
		return stmt, nil
	}
	return nil, errs.NewErrBuild(d.Op.String(), d.Model.Name(), errs.ErrReturningUnsupported)
}

func isInteger(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
