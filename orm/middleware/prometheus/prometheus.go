package prometheus

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/startdusk/sqlcrud/orm"
)

type MiddlewareBuilder struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string

	// Registerer 为 nil 时注册到 prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
}

func (m MiddlewareBuilder) Build() orm.Middleware {
	vector := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:      m.Name,
		Subsystem: m.Subsystem,
		Namespace: m.Namespace,
		Help:      m.Help,

		// 设置指标 如 0.5: 0.01 0.5是一个指标，0.01是一个误差值，表示0.5上下0.01 即误差范围为 0.49-0.51
		Objectives: map[float64]float64{
			0.5:   0.01,
			0.75:  0.01,
			0.90:  0.01,
			0.99:  0.001,
			0.999: 0.0001,
		},
	}, []string{
		"type",  // SELECT, INSERT, UPDATE, DELETE, RAW
		"table", // 表名
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      m.Name + "_failures",
		Subsystem: m.Subsystem,
		Namespace: m.Namespace,
		Help:      "失败的调用, 按照失败之前走到的状态分类",
	}, []string{"type", "table", "stage"})

	reg := m.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(vector, failures)

	return func(next orm.Handler) orm.Handler {
		return func(ctx context.Context, qc *orm.QueryContext) *orm.QueryResult {
			var table string
			if qc.Model != nil {
				table = qc.Model.TableName
			}
			startTime := time.Now()
			res := next(ctx, qc)
			// 记录执行时间
			duration := time.Since(startTime).Milliseconds()
			vector.WithLabelValues(qc.Type, table).Observe(float64(duration))
			if res.Err != nil {
				failures.WithLabelValues(qc.Type, table, res.Reached.String()).Inc()
			}
			return res
		}
	}
}
