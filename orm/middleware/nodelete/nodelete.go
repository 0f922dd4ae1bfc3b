package nodelete

import (
	"context"
	"errors"
	"strings"

	"github.com/startdusk/sqlcrud/orm"
)

var ErrDeleteForbidden = errors.New("orm: 禁止使用 DELETE 语句")

// MiddlewareBuilder 禁用 DELETE 语句, 包括手写的 SQL
type MiddlewareBuilder struct {
}

func NewMiddlewareBuilder() *MiddlewareBuilder {
	return &MiddlewareBuilder{}
}

func (m MiddlewareBuilder) Build() orm.Middleware {
	return func(next orm.Handler) orm.Handler {
		return func(ctx context.Context, qc *orm.QueryContext) *orm.QueryResult {
			if isDelete(qc) {
				return &orm.QueryResult{
					Err:   ErrDeleteForbidden,
					Stage: orm.StageFailed,
				}
			}
			return next(ctx, qc)
		}
	}
}

func isDelete(qc *orm.QueryContext) bool {
	if qc.Type == orm.OpDelete.String() {
		return true
	}
	if qc.Type != "RAW" {
		return false
	}
	q, err := qc.Builder.Build()
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(q.SQL)), "DELETE")
}
