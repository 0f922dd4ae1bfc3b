package errs

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrPointerOnly = errors.New("orm: 只支持指向结构体的一级指针")
	// ErrNotFound 要求恰好一行却没有数据, 和 sql 包语义一致
	ErrNotFound = fmt.Errorf("orm: 没有数据: %w", sql.ErrNoRows)

	ErrTxMoved = errors.New("orm: 事务句柄已经转移, 请使用上一次调用返回的句柄")
	ErrTxDone  = errors.New("orm: 事务已经提交或者回滚")

	ErrParamCountMismatch = errors.New("orm: 参数个数和占位符个数不一致")

	// SchemaError 的种类
	ErrMissingTable    = errors.New("orm: 缺少表名")
	ErrMissingWhere    = errors.New("orm: 缺少 WHERE 条件")
	ErrUnknownColumn   = errors.New("orm: 未知列")
	ErrMalformedClause = errors.New("orm: 非法的 SQL 片段")
	ErrInvalidLimit    = errors.New("orm: LIMIT/OFFSET 必须是非负整数")
	ErrInvalidTag      = errors.New("orm: 非法标签")

	// BuildError 的种类
	ErrEmptyUpdateSet       = errors.New("orm: UPDATE 没有需要更新的列")
	ErrEmptyInsertSet       = errors.New("orm: INSERT 没有可以插入的列")
	ErrReturningUnsupported = errors.New("orm: 当前方言不支持 RETURNING")

	// MappingError 的种类
	ErrMissingColumn = errors.New("orm: 结果集缺少列")
	ErrTypeMismatch  = errors.New("orm: 列类型和字段类型不匹配")
)

// SchemaError 在推导描述符的时候产生, 属于编程错误
type SchemaError struct {
	// Type 记录类型名
	Type string
	// Attr 出错的属性, 如 where, update
	Attr   string
	Kind   error
	Detail string
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("%s: %s.%s", e.Kind.Error(), e.Type, e.Attr)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *SchemaError) Is(target error) bool {
	return target == e.Kind
}

func (e *SchemaError) Unwrap() error {
	return e.Kind
}

func NewErrSchema(typ, attr string, kind error, detail string) *SchemaError {
	return &SchemaError{Type: typ, Attr: attr, Kind: kind, Detail: detail}
}

// BuildError 语句无法满足请求的操作
type BuildError struct {
	Op   string
	Type string
	Kind error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Kind.Error(), e.Op, e.Type)
}

func (e *BuildError) Is(target error) bool {
	return target == e.Kind
}

func (e *BuildError) Unwrap() error {
	return e.Kind
}

func NewErrBuild(op, typ string, kind error) *BuildError {
	return &BuildError{Op: op, Type: typ, Kind: kind}
}

// ParamCountMismatchError 说明语句构造和参数提取之间出现了不一致, 一定是缺陷
type ParamCountMismatchError struct {
	SQL     string
	Markers int
	Params  int
}

func (e *ParamCountMismatchError) Error() string {
	return fmt.Sprintf("%s: 占位符 %d 个, 参数 %d 个, SQL: %s", ErrParamCountMismatch.Error(), e.Markers, e.Params, e.SQL)
}

func (e *ParamCountMismatchError) Is(target error) bool {
	return target == ErrParamCountMismatch
}

func NewErrParamCountMismatch(query string, markers, params int) *ParamCountMismatchError {
	return &ParamCountMismatchError{SQL: query, Markers: markers, Params: params}
}

// MappingError 把一行数据转换成结构体失败
type MappingError struct {
	Kind   error
	Column string
	Err    error
}

func (e *MappingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind.Error(), e.Column, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Column)
}

func (e *MappingError) Is(target error) bool {
	return target == e.Kind
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

func NewErrMissingColumn(col string) *MappingError {
	return &MappingError{Kind: ErrMissingColumn, Column: col}
}

func NewErrTypeMismatch(col string, err error) *MappingError {
	return &MappingError{Kind: ErrTypeMismatch, Column: col, Err: err}
}

func NewErrUnknownField(name string) error {
	return fmt.Errorf("orm: 未知字段 %s", name)
}

func NewErrIinvalidTagContent(pair string) error {
	return fmt.Errorf("%w: %s", ErrInvalidTag, pair)
}

func NewErrUnsupportedDest(dest any) error {
	return fmt.Errorf("orm: 不支持的接收类型 %T, 只支持 *[]T 或者 *[]*T", dest)
}

// NewErrFailedToRollbackTx 合并业务错误和回滚错误
func NewErrFailedToRollbackTx(bizErr error, rbErr error, panicked bool) error {
	if rbErr == nil {
		if panicked {
			return fmt.Errorf("orm: 事务执行过程中发生 panic, 已回滚, 业务错误: %v", bizErr)
		}
		return bizErr
	}
	return fmt.Errorf("orm: 回滚事务失败, 业务错误: %w, 回滚错误: %s, 是否 panic: %t", bizErr, rbErr.Error(), panicked)
}
