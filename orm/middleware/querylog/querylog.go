package querylog

import (
	"context"
	"log/slog"

	"github.com/startdusk/sqlcrud/orm"
)

type MiddlewareBuilder struct {
	// 存在问题, SQL参数存在敏感数据不应该被打印出来
	// 使用 debug 标记为标记是否打印出参数(不推荐做法, 会入侵大面积代码)
	logFunc func(query string, args []any)
}

// NewMiddlewareBuilder fn 为 nil 时使用 slog 默认的 logger, 只打印参数个数
func NewMiddlewareBuilder(fn func(query string, args []any)) *MiddlewareBuilder {
	if fn == nil {
		fn = func(query string, args []any) {
			slog.Info("orm: sql", slog.String("sql", query), slog.Int("args", len(args)))
		}
	}
	return &MiddlewareBuilder{
		logFunc: fn,
	}
}

func (m MiddlewareBuilder) Build() orm.Middleware {
	return func(next orm.Handler) orm.Handler {
		return func(ctx context.Context, qc *orm.QueryContext) *orm.QueryResult {
			// 构造失败的时候不打印, 错误由后面的调用返回
			if q, err := qc.Builder.Build(); err == nil {
				m.logFunc(q.SQL, q.Args)
			}
			return next(ctx, qc)
		}
	}
}
