package orm

import (
	"github.com/startdusk/sqlcrud/orm/internal/errs"
)

// 通过桥接的方式将内部错误导出外部
// 当然这种方式也有取舍, 就是重构的时候, 如果调用这个变量的文件被移动到另外一个包了, 那么这里就得跟着移动
var (
	// ErrNotFound 同时也是 sql.ErrNoRows
	ErrNotFound    = errs.ErrNotFound
	ErrPointerOnly = errs.ErrPointerOnly

	ErrTxMoved = errs.ErrTxMoved
	ErrTxDone  = errs.ErrTxDone

	ErrParamCountMismatch = errs.ErrParamCountMismatch

	ErrMissingTable    = errs.ErrMissingTable
	ErrMissingWhere    = errs.ErrMissingWhere
	ErrUnknownColumn   = errs.ErrUnknownColumn
	ErrMalformedClause = errs.ErrMalformedClause
	ErrInvalidLimit    = errs.ErrInvalidLimit
	ErrInvalidTag      = errs.ErrInvalidTag

	ErrEmptyUpdateSet       = errs.ErrEmptyUpdateSet
	ErrEmptyInsertSet       = errs.ErrEmptyInsertSet
	ErrReturningUnsupported = errs.ErrReturningUnsupported

	ErrMissingColumn = errs.ErrMissingColumn
	ErrTypeMismatch  = errs.ErrTypeMismatch
)

type (
	SchemaError             = errs.SchemaError
	BuildError              = errs.BuildError
	ParamCountMismatchError = errs.ParamCountMismatchError
	MappingError            = errs.MappingError
)
