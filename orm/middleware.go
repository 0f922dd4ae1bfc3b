package orm

import (
	"context"

	"github.com/startdusk/sqlcrud/orm/model"
)

type QueryContext struct {
	// Type 声明查询类型 即 SELECT, UPDATE, DELETE, INSERT 和 RAW
	Type string

	// Builder 使用的时候, 大多数情况下你需要转换到具体的类型才能篡改查询
	Builder QueryBuilder

	Model *model.Model
	// Descriptor RAW 查询没有描述符
	Descriptor *model.Descriptor
}

type Middleware func(next Handler) Handler

type Handler func(ctx context.Context, qc *QueryContext) *QueryResult

type QueryResult struct {
	// Result 在不同的查询里面, 类型是不同的
	// 查询单个结果时是结构体指针, 查询多个结果时是切片
	// 其他情况下, 它是 sql.Result 或者 InsertOutcome
	Result any
	Err    error

	// Stage 调用结束时的状态, 出错时是 StageFailed
	Stage Stage
	// Reached 出错之前走到的最后一个状态
	Reached Stage
}

// Stage 单次调用的状态
// Idle -> StatementBuilt -> ParametersBound -> Sent -> (RowsReceived | Affected | Failed)
type Stage uint8

const (
	StageIdle Stage = iota
	StageStatementBuilt
	StageParametersBound
	StageSent
	StageRowsReceived
	StageAffected
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageStatementBuilt:
		return "statement_built"
	case StageParametersBound:
		return "parameters_bound"
	case StageSent:
		return "sent"
	case StageRowsReceived:
		return "rows_received"
	case StageAffected:
		return "affected"
	case StageFailed:
		return "failed"
	}
	return "unknown"
}

func (qr *QueryResult) fail(err error) *QueryResult {
	qr.Err = err
	qr.Reached = qr.Stage
	qr.Stage = StageFailed
	return qr
}
