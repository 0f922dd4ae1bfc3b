package slowquery

import (
	"context"
	"time"

	"github.com/startdusk/sqlcrud/orm"
)

type MiddlewareBuilder struct {
	// 存在问题, SQL参数存在敏感数据不应该被打印出来
	logFunc func(query string, args []any, duration time.Duration)

	// 慢查询阈值, 设置需要考虑公司实际情况, 如100ms
	threshold time.Duration
}

func NewMiddlewareBuilder(threshold time.Duration, fn func(query string, args []any, duration time.Duration)) *MiddlewareBuilder {
	return &MiddlewareBuilder{
		logFunc:   fn,
		threshold: threshold,
	}
}

func (m MiddlewareBuilder) Build() orm.Middleware {
	return func(next orm.Handler) orm.Handler {
		return func(ctx context.Context, qc *orm.QueryContext) *orm.QueryResult {
			startTime := time.Now()
			defer func() {
				duration := time.Since(startTime)
				// 不是慢查询
				if duration <= m.threshold || m.logFunc == nil {
					return
				}

				// 是慢查询, 记录一下, 不处理错误(如果错误了, 证明SQL都没构造出来)
				if q, err := qc.Builder.Build(); err == nil {
					m.logFunc(q.SQL, q.Args, duration)
				}
			}()

			// 不调用next就是dry run
			return next(ctx, qc)
		}
	}
}
