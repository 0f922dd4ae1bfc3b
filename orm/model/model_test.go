package model

import (
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startdusk/sqlcrud/orm/internal/errs"
	"github.com/startdusk/sqlcrud/orm/internal/placeholder"
)

func testModelFields() []*Field {
	return []*Field{
		{
			ColName: "id",
			GoName:  "ID",
			Type:    reflect.TypeOf(int64(0)),
		},
		{
			ColName: "first_name",
			GoName:  "FirstName",
			Type:    reflect.TypeOf(""),
			Offset:  8,
			Index:   1,
		},
		{
			ColName: "age",
			GoName:  "Age",
			Type:    reflect.TypeOf(int8(0)),
			Offset:  24,
			Index:   2,
		},
		{
			ColName: "last_name",
			GoName:  "LastName",
			Type:    reflect.TypeOf(&sql.NullString{}),
			Offset:  32,
			Index:   3,
		},
	}
}

func Test_Register(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		entity    any
		wantTable string
		wantErr   error
		fields    func() []*Field
		opts      []ModelOption
	}{
		{
			name:      "test pointer model",
			entity:    &TestModel{},
			wantTable: "",
			fields:    testModelFields,
		},
		{
			name:      "test pointer model with opts",
			entity:    &TestModel{},
			wantTable: "TEST_MODEL",
			fields: func() []*Field {
				fds := testModelFields()
				fds[1].ColName = "firstname"
				return fds
			},
			opts: []ModelOption{
				ModelWithTableName("TEST_MODEL"),
				ModelWithColumnName("FirstName", "firstname"),
			},
		},
		{
			name:    "unknown field option",
			entity:  &TestModel{},
			opts:    []ModelOption{ModelWithColumnName("Nickname", "nick")},
			wantErr: errs.NewErrUnknownField("Nickname"),
		},
		{
			name:    "test struct model",
			entity:  TestModel{},
			wantErr: errs.ErrPointerOnly,
		},
		{
			name:    "primitive type",
			entity:  0,
			wantErr: errs.ErrPointerOnly,
		},
		{
			name:    "map",
			entity:  map[string]string{"1": "1"},
			wantErr: errs.ErrPointerOnly,
		},
		{
			name:    "slice",
			entity:  []int{1, 2, 3},
			wantErr: errs.ErrPointerOnly,
		},
		{
			name:    "nil",
			entity:  nil,
			wantErr: errs.ErrPointerOnly,
		},
	}

	r := NewRegistry()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m, err := r.Register(c.entity, c.opts...)
			assert.Equal(t, c.wantErr, err)
			if err != nil {
				return
			}
			assert.Equal(t, c.wantTable, m.TableName)
			fields := c.fields()
			assert.Equal(t, fields, m.Fields)
			for _, fd := range fields {
				assert.Equal(t, fd, m.FieldMap[fd.GoName])
				assert.Equal(t, fd, m.ColumnMap[fd.ColName])
			}
		})
	}
}

func Test_RegistryGet(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string

		entity    any
		wantTable string
		wantErr   error

		fields []*Field
	}{
		{
			name:   "test pointer model",
			entity: &TestModel{},
			fields: testModelFields(),
		},
		{
			name: "tag",
			entity: func() any {
				type TagTable struct {
					FirstName string `orm:"column=first_name_t"`
				}
				return &TagTable{}
			}(),
			fields: []*Field{
				{
					ColName: "first_name_t",
					GoName:  "FirstName",
					Type:    reflect.TypeOf(""),
				},
			},
		},
		{
			name: "empty column",
			entity: func() any {
				type TagTable struct {
					FirstName string `orm:"column="`
				}
				return &TagTable{}
			}(),
			fields: []*Field{
				{
					ColName: "first_name",
					GoName:  "FirstName",
					Type:    reflect.TypeOf(""),
				},
			},
		},
		{
			name: "ignore unknown key",
			entity: func() any {
				type TagTable struct {
					FirstName string `orm:"abc=abc"`
				}
				return &TagTable{}
			}(),
			fields: []*Field{
				{
					ColName: "first_name",
					GoName:  "FirstName",
					Type:    reflect.TypeOf(""),
				},
			},
		},
		{
			name: "ignore field",
			entity: func() any {
				type TagTable struct {
					FirstName string `orm:"-"`
					UserID    int64
					secret    string
				}
				return &TagTable{}
			}(),
			fields: []*Field{
				{
					ColName: "user_id",
					GoName:  "UserID",
					Type:    reflect.TypeOf(int64(0)),
					Offset:  16,
					Index:   1,
				},
			},
		},
		{
			name: "roles",
			entity: func() any {
				type TagTable struct {
					ID       int64  `orm:"readonly=true"`
					MinTotal int64  `orm:"filter=true"`
					Code     string `orm:"generate=uuid"`
				}
				return &TagTable{}
			}(),
			fields: []*Field{
				{
					ColName:  "id",
					GoName:   "ID",
					Type:     reflect.TypeOf(int64(0)),
					ReadOnly: true,
				},
				{
					ColName: "min_total",
					GoName:  "MinTotal",
					Type:    reflect.TypeOf(int64(0)),
					Offset:  8,
					Index:   1,
					Filter:  true,
				},
				{
					ColName:  "code",
					GoName:   "Code",
					Type:     reflect.TypeOf(""),
					Offset:   16,
					Index:    2,
					Generate: "uuid",
				},
			},
		},
		{
			name:      "table tag",
			entity:    &UserRecord{},
			wantTable: "users",
			fields: []*Field{
				{
					ColName: "id",
					GoName:  "ID",
					Type:    reflect.TypeOf(int64(0)),
					Index:   1,
				},
				{
					ColName: "name",
					GoName:  "Name",
					Type:    reflect.TypeOf(""),
					Offset:  8,
					Index:   2,
				},
				{
					ColName: "email",
					GoName:  "Email",
					Type:    reflect.TypeOf(""),
					Offset:  24,
					Index:   3,
				},
			},
		},
		{
			name:   "empty table name",
			entity: &EmptyTableName{},
			fields: []*Field{
				{
					ColName: "first_name",
					GoName:  "FirstName",
					Type:    reflect.TypeOf(""),
				},
			},
		},
		{
			name:      "custom table name",
			entity:    &CustomTableName{},
			wantTable: "custom_table_name_t",
			fields: []*Field{
				{
					ColName: "first_name",
					GoName:  "FirstName",
					Type:    reflect.TypeOf(""),
				},
			},
		},
		{
			name:      "custom table name for ptr",
			entity:    &CustomTableNamePtr{},
			wantTable: "custom_table_name_ptr_t",
			fields: []*Field{
				{
					ColName: "first_name",
					GoName:  "FirstName",
					Type:    reflect.TypeOf(""),
				},
			},
		},
		{
			name: "invalid column",
			entity: func() any {
				type TagTable struct {
					FirstName string `orm:"column"`
				}
				return &TagTable{}
			}(),
			wantErr: errs.NewErrIinvalidTagContent("column"),
		},
		{
			name: "invalid column name",
			entity: func() any {
				type TagTable struct {
					FirstName string `orm:"column=first name"`
				}
				return &TagTable{}
			}(),
			wantErr: errs.NewErrIinvalidTagContent("column=first name"),
		},
		{
			name: "invalid readonly",
			entity: func() any {
				type TagTable struct {
					ID int64 `orm:"readonly=yes"`
				}
				return &TagTable{}
			}(),
			wantErr: errs.NewErrIinvalidTagContent("readonly=yes"),
		},
		{
			name: "invalid generate",
			entity: func() any {
				type TagTable struct {
					ID int64 `orm:"generate=uuid"`
				}
				return &TagTable{}
			}(),
			wantErr: errs.NewErrIinvalidTagContent("generate=uuid"),
		},
	}

	r := NewRegistry()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m, err := r.Get(c.entity)
			assert.Equal(t, c.wantErr, err)
			if err != nil {
				return
			}
			assert.Equal(t, c.wantTable, m.TableName)
			assert.Equal(t, c.fields, m.Fields)

			typ := reflect.TypeOf(c.entity)
			cached, ok := r.(*registry).models[typ]
			assert.True(t, ok)
			assert.Same(t, m, cached)
		})
	}
}

func TestRegistry_Descriptor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		entity any
		op     Operation
		opts   []ModelOption

		wantErr    error
		wantTable  string
		wantSelect string
		wantCols   []string
		wantUpdate []string
		wantParams []string
		wantLimit  *uint64
	}{
		{
			name:       "select",
			entity:     &UserRecord{},
			op:         OpSelect,
			wantTable:  "users",
			wantSelect: "id, name, email",
			wantCols:   []string{"id", "name", "email"},
			wantParams: []string{"ID"},
		},
		{
			name:       "insert",
			entity:     &UserRecord{},
			op:         OpInsert,
			wantTable:  "users",
			wantCols:   []string{"id", "name", "email"},
			wantParams: []string{"ID", "Name", "Email"},
		},
		{
			name:       "update",
			entity:     &UserRecord{},
			op:         OpUpdate,
			wantTable:  "users",
			wantUpdate: []string{"name", "email"},
			wantParams: []string{"Name", "Email", "ID"},
		},
		{
			name:       "delete",
			entity:     &UserRecord{},
			op:         OpDelete,
			wantTable:  "users",
			wantParams: []string{"ID"},
		},
		{
			name:       "select with clauses",
			entity:     &OrderStat{},
			op:         OpSelect,
			wantTable:  "orders",
			wantSelect: "user_id, COUNT(*) AS total",
			wantCols:   []string{"user_id", "total"},
			wantParams: []string{"State", "State", "MinTotal"},
			wantLimit:  func() *uint64 { n := uint64(10); return &n }(),
		},
		{
			name:       "readonly not inserted",
			entity:     &Generated{},
			op:         OpInsert,
			wantTable:  "generated",
			wantCols:   []string{"code", "name"},
			wantParams: []string{"Code", "Name"},
		},
		{
			name:       "options",
			entity:     &TestModel{},
			op:         OpUpdate,
			opts:       []ModelOption{ModelWithTableName("test_model"), ModelWithWhere("id = ?"), ModelWithUpdate("Age")},
			wantTable:  "test_model",
			wantUpdate: []string{"age"},
			wantParams: []string{"Age", "ID"},
		},
		{
			name:    "missing table",
			entity:  &TestModel{},
			op:      OpSelect,
			wantErr: errs.ErrMissingTable,
		},
		{
			name:    "missing where for update",
			entity:  &TestModel{},
			op:      OpUpdate,
			opts:    []ModelOption{ModelWithTableName("test_model"), ModelWithUpdate("age")},
			wantErr: errs.ErrMissingWhere,
		},
		{
			name:    "missing where for delete",
			entity:  &TestModel{},
			op:      OpDelete,
			opts:    []ModelOption{ModelWithTableName("test_model")},
			wantErr: errs.ErrMissingWhere,
		},
		{
			name:    "unknown update column",
			entity:  &TestModel{},
			op:      OpUpdate,
			opts:    []ModelOption{ModelWithTableName("test_model"), ModelWithWhere("id = ?"), ModelWithUpdate("nickname")},
			wantErr: errs.ErrUnknownColumn,
		},
		{
			name:    "unknown where column",
			entity:  &TestModel{},
			op:      OpSelect,
			opts:    []ModelOption{ModelWithTableName("test_model"), ModelWithWhere("nickname = ?")},
			wantErr: errs.ErrUnknownColumn,
		},
		{
			name:    "unknown returning column",
			entity:  &TestModel{},
			op:      OpInsert,
			opts:    []ModelOption{ModelWithTableName("test_model"), ModelWithReturning("uid")},
			wantErr: errs.ErrUnknownColumn,
		},
		{
			name:    "unbalanced where",
			entity:  &TestModel{},
			op:      OpSelect,
			opts:    []ModelOption{ModelWithTableName("test_model"), ModelWithWhere("(id = ?")},
			wantErr: errs.ErrMalformedClause,
		},
		{
			name:    "marker in order by",
			entity:  &TestModel{},
			op:      OpSelect,
			opts:    []ModelOption{ModelWithTableName("test_model"), ModelWithOrderBy("?")},
			wantErr: errs.ErrMalformedClause,
		},
		{
			name:    "not inferable",
			entity:  &TestModel{},
			op:      OpSelect,
			opts:    []ModelOption{ModelWithTableName("test_model"), ModelWithWhere("LOWER(first_name) = ?")},
			wantErr: errs.ErrMalformedClause,
		},
		{
			name:    "invalid table",
			entity:  &TestModel{},
			op:      OpSelect,
			opts:    []ModelOption{ModelWithTableName("users; DROP TABLE users")},
			wantErr: errs.ErrMalformedClause,
		},
		{
			name:    "invalid limit",
			entity:  &BadLimit{},
			op:      OpSelect,
			wantErr: errs.ErrInvalidLimit,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := NewRegistry()
			if len(c.opts) > 0 {
				_, err := r.Register(c.entity, c.opts...)
				if err != nil {
					assert.True(t, errors.Is(err, c.wantErr), "got %v", err)
					return
				}
			}
			d, err := r.Descriptor(c.entity, c.op)
			if c.wantErr != nil {
				assert.True(t, errors.Is(err, c.wantErr), "got %v", err)
				var se *errs.SchemaError
				assert.True(t, errors.As(err, &se))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.op, d.Op)
			assert.Equal(t, c.wantTable, d.Table)
			assert.Equal(t, c.wantSelect, d.SelectList)
			assert.Equal(t, c.wantCols, colNames(d.Columns))
			assert.Equal(t, c.wantUpdate, colNames(d.Update))
			assert.Equal(t, c.wantParams, goNames(d.Params()))
			assert.Equal(t, c.wantLimit, d.Limit)
		})
	}
}

func TestRegistry_DescriptorOnce(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	d1, err := r.Descriptor(&UserRecord{}, OpSelect)
	require.NoError(t, err)
	d2, err := r.Descriptor(&UserRecord{}, OpSelect)
	require.NoError(t, err)
	assert.Same(t, d1, d2)

	d3, err := r.Descriptor(&UserRecord{}, OpDelete)
	require.NoError(t, err)
	assert.NotEqual(t, d1.ID, d3.ID)

	// 重新注册之后描述符重新推导
	_, err = r.Register(&UserRecord{}, ModelWithTableName("members"))
	require.NoError(t, err)
	d4, err := r.Descriptor(&UserRecord{}, OpSelect)
	require.NoError(t, err)
	assert.NotSame(t, d1, d4)
	assert.Equal(t, "members", d4.Table)
}

func TestClause_Render(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	d, err := r.Descriptor(&OrderStat{}, OpSelect)
	require.NoError(t, err)

	var sb strings.Builder
	next := d.Join.Render(&sb, placeholder.Positional("$"), 1)
	sb.WriteString(" WHERE ")
	next = d.Where.Render(&sb, placeholder.Positional("$"), next)
	sb.WriteString(" HAVING ")
	next = d.Having.Render(&sb, placeholder.Positional("$"), next)
	assert.Equal(t, "JOIN users u ON u.id = orders.user_id AND u.state = $1 WHERE orders.state = $2 HAVING COUNT(*) > $3", sb.String())
	assert.Equal(t, 4, next)
}

func Test_underscoreName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"ID":         "id",
		"UserID":     "user_id",
		"FirstName":  "first_name",
		"HTTPServer": "http_server",
		"Age":        "age",
		"name":       "name",
		"Address2":   "address2",
		"V2Name":     "v2_name",
	}
	for in, want := range cases {
		assert.Equal(t, want, underscoreName(in), in)
	}
}

func colNames(fds []*Field) []string {
	if len(fds) == 0 {
		return nil
	}
	res := make([]string, 0, len(fds))
	for _, fd := range fds {
		res = append(res, fd.ColName)
	}
	return res
}

func goNames(fds []*Field) []string {
	if len(fds) == 0 {
		return nil
	}
	res := make([]string, 0, len(fds))
	for _, fd := range fds {
		res = append(res, fd.GoName)
	}
	return res
}

type UserRecord struct {
	_     struct{} `table:"users" where:"id = ?" update:"name, email"`
	ID    int64
	Name  string
	Email string
}

type OrderStat struct {
	_ struct{} `table:"orders" select:"user_id, COUNT(*) AS total" join:"JOIN users u ON u.id = orders.user_id AND u.state = ?" where:"orders.state = ?" group_by:"user_id" having:"COUNT(*) > ?{MinTotal}" order_by:"total DESC" limit:"10"`

	UserID   int64
	Total    int64
	State    string `orm:"filter=true"`
	MinTotal int64  `orm:"filter=true"`
}

type Generated struct {
	_    struct{} `table:"generated" returning:"id"`
	ID   int64     `orm:"readonly=true"`
	Code uuid.UUID `orm:"generate=uuid"`
	Name string
}

type BadLimit struct {
	_  struct{} `table:"bad" limit:"-1"`
	ID int64
}

type EmptyTableName struct {
	FirstName string
}

func (e EmptyTableName) TableName() string {
	return ""
}

type CustomTableName struct {
	FirstName string
}

func (c CustomTableName) TableName() string {
	return "custom_table_name_t"
}

type CustomTableNamePtr struct {
	FirstName string
}

func (c *CustomTableNamePtr) TableName() string {
	return "custom_table_name_ptr_t"
}

type TestModel struct {
	ID        int64
	FirstName string
	Age       int8
	LastName  *sql.NullString
}
