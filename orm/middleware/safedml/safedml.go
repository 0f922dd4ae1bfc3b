package safedml

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/startdusk/sqlcrud/orm"
)

var ErrNoWhere = errors.New("orm: 禁止执行没有 WHERE 的语句")

// MiddlewareBuilder 强制要执行的SQL语句
// UPDATE, DELETE 必须带 WHERE (SELECT 要不要带自己抉择)
// 记录类型推导出来的语句已经保证了这一点, 这里主要拦截手写的 SQL
type MiddlewareBuilder struct {
}

func NewMiddlewareBuilder() *MiddlewareBuilder {
	return &MiddlewareBuilder{}
}

func (m MiddlewareBuilder) Build() orm.Middleware {
	return func(next orm.Handler) orm.Handler {
		return func(ctx context.Context, qc *orm.QueryContext) *orm.QueryResult {
			if qc.Type == orm.OpSelect.String() || qc.Type == orm.OpInsert.String() {
				return next(ctx, qc)
			}
			q, err := qc.Builder.Build()
			if err != nil {
				// 错误交给后面的调用返回
				return next(ctx, qc)
			}
			tokens := tokenize(q.SQL)
			if len(tokens) == 0 || (tokens[0] != "UPDATE" && tokens[0] != "DELETE") {
				return next(ctx, qc)
			}
			for _, tk := range tokens[1:] {
				if tk == "WHERE" {
					return next(ctx, qc)
				}
			}
			return &orm.QueryResult{
				Err:     fmt.Errorf("%w: %s", ErrNoWhere, tokens[0]),
				Stage:   orm.StageFailed,
				Reached: orm.StageParametersBound,
			}
		}
	}
}

// tokenize 按空白和括号切分, WHERE 前面可以是换行或者 )
func tokenize(query string) []string {
	return strings.FieldsFunc(strings.ToUpper(query), func(r rune) bool {
		return unicode.IsSpace(r) || r == '(' || r == ')'
	})
}
