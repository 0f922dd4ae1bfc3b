package model

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"github.com/startdusk/sqlcrud/orm/internal/errs"
)

const (
	tagName      = "orm"
	tagColumn    = "column"
	tagReadOnly  = "readonly"
	tagFilter    = "filter"
	tagGenerate  = "generate"
	generateUUID = "uuid"
)

// Registry 元数据注册中心
type Registry interface {
	// Get 查找元数据, 没有就解析并注册
	Get(val any) (*Model, error)
	// Register 解析并注册元数据, 会覆盖已有的元数据
	Register(val any, opts ...ModelOption) (*Model, error)
	// Descriptor 返回类型在某个操作下的描述符, 同一个类型同一个操作只推导一次
	Descriptor(val any, op Operation) (*Descriptor, error)
}

type descriptorKey struct {
	typ reflect.Type
	op  Operation
}

// registry 代表元数据的注册中心
type registry struct {
	// 用 reflect.Type 作为 key, 不同包下的同名结构体也能区分开
	models      map[reflect.Type]*Model
	descriptors map[descriptorKey]*Descriptor
	nextID      uint64

	// 使用严格的读写锁, 采用 double check 的写法没有覆盖的问题
	lock sync.RWMutex
}

func NewRegistry() Registry {
	return &registry{
		models:      make(map[reflect.Type]*Model, 64),
		descriptors: make(map[descriptorKey]*Descriptor, 64),
	}
}

func (r *registry) Get(val any) (*Model, error) {
	typ := reflect.TypeOf(val)
	r.lock.RLock()
	m, ok := r.models[typ]
	r.lock.RUnlock()
	if ok {
		return m, nil
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	// double check 写法, 保证不重复创建对象
	m, ok = r.models[typ]
	if ok {
		return m, nil
	}

	m, err := r.parseModel(val)
	if err != nil {
		return nil, err
	}
	r.models[typ] = m
	return m, nil
}

func (r *registry) Register(val any, opts ...ModelOption) (*Model, error) {
	m, err := r.parseModel(val, opts...)
	if err != nil {
		return nil, err
	}
	typ := reflect.TypeOf(val)
	r.lock.Lock()
	defer r.lock.Unlock()
	r.models[typ] = m
	// 元数据变了, 之前推导的描述符全部作废
	for key := range r.descriptors {
		if key.typ == typ {
			delete(r.descriptors, key)
		}
	}
	return m, nil
}

func (r *registry) Descriptor(val any, op Operation) (*Descriptor, error) {
	key := descriptorKey{typ: reflect.TypeOf(val), op: op}
	r.lock.RLock()
	d, ok := r.descriptors[key]
	r.lock.RUnlock()
	if ok {
		return d, nil
	}

	m, err := r.Get(val)
	if err != nil {
		return nil, err
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	d, ok = r.descriptors[key]
	if ok {
		return d, nil
	}
	d, err = m.derive(op)
	if err != nil {
		return nil, err
	}
	r.nextID++
	d.ID = r.nextID
	r.descriptors[key] = d
	return d, nil
}

// 只支持输入指针类型的结构体
func (r *registry) parseModel(entity any, opts ...ModelOption) (*Model, error) {
	typ := reflect.TypeOf(entity)
	if typ == nil || typ.Kind() != reflect.Pointer || typ.Elem().Kind() != reflect.Struct {
		return nil, errs.ErrPointerOnly
	}
	typ = typ.Elem()
	numField := typ.NumField()
	m := &Model{
		typ:       typ,
		FieldMap:  make(map[string]*Field, numField),
		ColumnMap: make(map[string]*Field, numField),
		Fields:    make([]*Field, 0, numField),
	}
	for i := 0; i < numField; i++ {
		fd := typ.Field(i)
		if fd.Name == "_" {
			m.parseAttributes(fd.Tag)
			continue
		}
		if !fd.IsExported() {
			continue
		}
		pair, ignore, err := r.parseTag(fd.Tag)
		if err != nil {
			return nil, err
		}
		if ignore {
			continue
		}
		f, err := newField(fd, i, pair)
		if err != nil {
			return nil, err
		}
		m.FieldMap[f.GoName] = f
		m.ColumnMap[f.ColName] = f
		m.Fields = append(m.Fields, f)
	}

	if m.TableName == "" {
		if tn, ok := entity.(TableName); ok {
			m.TableName = tn.TableName()
		}
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if err := m.compile(); err != nil {
		return nil, err
	}
	return m, nil
}

func newField(fd reflect.StructField, index int, pair map[string]string) (*Field, error) {
	f := &Field{
		GoName:  fd.Name,
		Type:    fd.Type,
		Offset:  fd.Offset,
		Index:   index,
		ColName: pair[tagColumn],
	}
	if f.ColName == "" {
		f.ColName = underscoreName(fd.Name)
	}
	if !identRe.MatchString(f.ColName) {
		return nil, errs.NewErrIinvalidTagContent(tagColumn + "=" + f.ColName)
	}
	var err error
	if f.ReadOnly, err = parseBool(pair, tagReadOnly); err != nil {
		return nil, err
	}
	if f.Filter, err = parseBool(pair, tagFilter); err != nil {
		return nil, err
	}
	if gen, ok := pair[tagGenerate]; ok {
		if gen != generateUUID || !(fd.Type.Kind() == reflect.String || fd.Type == reflect.TypeOf(uuid.UUID{})) {
			return nil, errs.NewErrIinvalidTagContent(tagGenerate + "=" + gen)
		}
		f.Generate = gen
	}
	return f, nil
}

func parseBool(pair map[string]string, key string) (bool, error) {
	val, ok := pair[key]
	if !ok {
		return false, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, errs.NewErrIinvalidTagContent(key + "=" + val)
	}
	return b, nil
}

// parseTag 解析 orm:"column=xx,readonly=true", orm:"-" 表示忽略这个字段
func (r *registry) parseTag(tag reflect.StructTag) (map[string]string, bool, error) {
	ormTag, ok := tag.Lookup(tagName)
	if !ok {
		return nil, false, nil
	}
	if ormTag == "-" {
		return nil, true, nil
	}
	pairs := strings.Split(ormTag, ",")
	tags := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		segs := strings.Split(pair, "=")
		if len(segs) != 2 {
			return nil, false, errs.NewErrIinvalidTagContent(pair)
		}
		tags[strings.TrimSpace(segs[0])] = strings.TrimSpace(segs[1])
	}
	return tags, false, nil
}

// parseAttributes 读取 _ 字段上的类型级别声明
func (m *Model) parseAttributes(tag reflect.StructTag) {
	if v, ok := tag.Lookup("table"); ok {
		m.TableName = strings.TrimSpace(v)
	}
	lookup := func(key string, dst *string) {
		if v, ok := tag.Lookup(key); ok {
			*dst = v
		}
	}
	lookup("where", &m.Attrs.Where)
	lookup("select", &m.Attrs.Select)
	lookup("join", &m.Attrs.Join)
	lookup("group_by", &m.Attrs.GroupBy)
	lookup("having", &m.Attrs.Having)
	lookup("order_by", &m.Attrs.OrderBy)
	lookup("limit", &m.Attrs.Limit)
	lookup("offset", &m.Attrs.Offset)
	if v, ok := tag.Lookup("update"); ok {
		m.Attrs.Update = splitList(v)
	}
	if v, ok := tag.Lookup("returning"); ok {
		m.Attrs.Returning = splitList(v)
	}
}

// 驼峰名字符串转下划线命名
// UserID => user_id, HTTPServer => http_server
func underscoreName(name string) string {
	runes := []rune(name)
	buf := make([]rune, 0, len(runes)+4)
	for i, v := range runes {
		if unicode.IsUpper(v) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					buf = append(buf, '_')
				}
			}
			buf = append(buf, unicode.ToLower(v))
		} else {
			buf = append(buf, v)
		}
	}
	return string(buf)
}
