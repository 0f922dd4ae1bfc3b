package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/startdusk/sqlcrud/orm/internal/errs"
	"github.com/startdusk/sqlcrud/orm/internal/placeholder"
)

// 表名, 列名只允许出现这些字符, 语句里面不加引号
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Clause 是编译之后的子句, 每一个参数标记都绑定到了一个字段
type Clause struct {
	tpl *placeholder.Template
	// Fields 按照标记出现的顺序排列
	Fields []*Field
}

func (c *Clause) String() string {
	return c.tpl.String()
}

// Len 参数标记的数量
func (c *Clause) Len() int {
	return c.tpl.Len()
}

// Render 从 start 开始编号, 返回下一个编号
func (c *Clause) Render(sb *strings.Builder, s placeholder.Style, start int) int {
	return c.tpl.Render(sb, s, start)
}

// compile 校验并编译类型级别的声明, 只做和操作无关的校验
func (m *Model) compile() error {
	if m.TableName != "" && !identRe.MatchString(m.TableName) {
		return m.schemaErr("table", errs.ErrMalformedClause, "非法的表名 "+strconv.Quote(m.TableName))
	}
	for _, fd := range m.Fields {
		if !identRe.MatchString(fd.ColName) {
			return m.schemaErr(fd.GoName, errs.ErrMalformedClause, "非法的列名 "+strconv.Quote(fd.ColName))
		}
	}

	var err error
	if m.selectList, err = m.compileStatic("select", m.Attrs.Select); err != nil {
		return err
	}
	if m.groupBy, err = m.compileStatic("group_by", m.Attrs.GroupBy); err != nil {
		return err
	}
	if m.orderBy, err = m.compileStatic("order_by", m.Attrs.OrderBy); err != nil {
		return err
	}

	if m.join, err = m.compileClause("join", m.Attrs.Join); err != nil {
		return err
	}
	if m.where, err = m.compileClause("where", m.Attrs.Where); err != nil {
		return err
	}
	if m.having, err = m.compileClause("having", m.Attrs.Having); err != nil {
		return err
	}

	if m.limit, err = m.compileUint("limit", m.Attrs.Limit); err != nil {
		return err
	}
	if m.offset, err = m.compileUint("offset", m.Attrs.Offset); err != nil {
		return err
	}

	m.update = m.update[:0]
	for _, name := range m.Attrs.Update {
		fd, ok := m.resolve(name)
		if !ok || !fd.Insertable() {
			return m.schemaErr("update", errs.ErrUnknownColumn, name)
		}
		m.update = append(m.update, fd)
	}

	m.returning = m.returning[:0]
	for _, name := range m.Attrs.Returning {
		fd, ok := m.resolve(name)
		if !ok || !fd.Mapped() {
			return m.schemaErr("returning", errs.ErrUnknownColumn, name)
		}
		m.returning = append(m.returning, fd)
	}
	return nil
}

// compileStatic 编译不允许出现参数的片段
func (m *Model) compileStatic(attr, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	tpl, err := placeholder.Parse(text)
	if err != nil {
		return "", m.schemaErr(attr, errs.ErrMalformedClause, err.Error())
	}
	if tpl.Len() > 0 {
		return "", m.schemaErr(attr, errs.ErrMalformedClause, "不允许出现参数标记")
	}
	var sb strings.Builder
	tpl.Render(&sb, placeholder.SingleMarker(""), 1)
	return sb.String(), nil
}

func (m *Model) compileClause(attr, text string) (*Clause, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	tpl, err := placeholder.Parse(text)
	if err != nil {
		return nil, m.schemaErr(attr, errs.ErrMalformedClause, err.Error())
	}
	c := &Clause{tpl: tpl, Fields: make([]*Field, 0, tpl.Len())}
	for i, b := range tpl.Bindings() {
		if b.Name == "" {
			return nil, m.schemaErr(attr, errs.ErrMalformedClause,
				fmt.Sprintf("无法推断第 %d 个参数绑定的字段, 请使用 ?{字段名}", i+1))
		}
		fd, ok := m.resolve(b.Name)
		if !ok {
			return nil, m.schemaErr(attr, errs.ErrUnknownColumn, b.Name)
		}
		c.Fields = append(c.Fields, fd)
	}
	return c, nil
}

func (m *Model) compileUint(attr, text string) (*uint64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return nil, m.schemaErr(attr, errs.ErrInvalidLimit, text)
	}
	return &n, nil
}

// resolve 先按字段名找, 再按列名找
func (m *Model) resolve(name string) (*Field, bool) {
	if fd, ok := m.FieldMap[name]; ok {
		return fd, true
	}
	fd, ok := m.ColumnMap[name]
	return fd, ok
}

func (m *Model) schemaErr(attr string, kind error, detail string) error {
	return errs.NewErrSchema(m.Name(), attr, kind, detail)
}
