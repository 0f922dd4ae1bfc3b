package orm

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/startdusk/sqlcrud/cache"
	"github.com/startdusk/sqlcrud/orm/internal/errs"
	"github.com/startdusk/sqlcrud/orm/internal/valuer"
	"github.com/startdusk/sqlcrud/orm/model"
)

// TraceEnv 设置为 1 或者 true 时, 每一条语句发送之前都会打印出来
const TraceEnv = "ORM_TRACE"

const defaultStatementCacheSize = 256

type core struct {
	dialect Dialect
	creator valuer.Creator
	r       model.Registry
	mdls    []Middleware
	logger  *slog.Logger
	trace   bool

	stmtCacheSize int
	stmts         *cache.LoadingCache[*statement]

	// 只有 DB 使用预编译语句
	preparedTTL time.Duration
}

type Option func(c *core)

func WithDialect(dialect Dialect) Option {
	return func(c *core) {
		c.dialect = dialect
	}
}

func WithRegistry(r model.Registry) Option {
	return func(c *core) {
		c.r = r
	}
}

func WithMiddlewares(mdls ...Middleware) Option {
	return func(c *core) {
		c.mdls = mdls
	}
}

// UseReflect 使用反射读写字段, 默认使用 unsafe
func UseReflect() Option {
	return func(c *core) {
		c.creator = valuer.NewReflectValue
	}
}

// WithStatementCache 缓存语句文本, size 为 0 表示不缓存
func WithStatementCache(size int) Option {
	return func(c *core) {
		c.stmtCacheSize = size
	}
}

// WithPreparedStatements 只对 DB 生效, 预编译的语句空闲 ttl 之后关闭
func WithPreparedStatements(ttl time.Duration) Option {
	return func(c *core) {
		c.preparedTTL = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *core) {
		c.logger = logger
	}
}

func newCore(dialect Dialect, opts ...Option) (core, error) {
	c := core{
		dialect:       dialect,
		creator:       valuer.NewUnsafeValue,
		r:             model.NewRegistry(),
		logger:        slog.Default(),
		trace:         traceEnabled(),
		stmtCacheSize: defaultStatementCacheSize,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.stmtCacheSize > 0 {
		stmts, err := cache.NewLoadingCache[*statement](c.stmtCacheSize)
		if err != nil {
			return core{}, err
		}
		c.stmts = stmts
	}
	return c, nil
}

func traceEnabled() bool {
	v, err := strconv.ParseBool(os.Getenv(TraceEnv))
	return err == nil && v
}

// statement 相同的描述符和方言总是得到相同的语句, 所以可以缓存
func (c core) statement(d *model.Descriptor) (*statement, error) {
	if c.stmts == nil {
		return buildStatement(d, c.dialect)
	}
	key := strconv.FormatUint(d.ID, 10) + "/" + c.dialect.Name()
	return c.stmts.Get(key, func() (*statement, error) {
		return buildStatement(d, c.dialect)
	})
}

func (c core) chain(root Handler) Handler {
	for i := len(c.mdls) - 1; i >= 0; i-- {
		root = c.mdls[i](root)
	}
	return root
}

func (c core) traceQuery(ctx context.Context, qc *QueryContext, q *Query) {
	if !c.trace {
		return
	}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "orm: 执行语句",
		slog.String("type", qc.Type),
		slog.String("sql", q.SQL),
		slog.Int("params", len(q.Args)))
}

// build 失败时判断走到了哪个状态
func (c core) build(qc *QueryContext, qr *QueryResult) (*Query, bool) {
	q, err := qc.Builder.Build()
	if err != nil {
		if errors.Is(err, errs.ErrParamCountMismatch) {
			qr.Stage = StageStatementBuilt
		}
		qr.fail(err)
		return nil, false
	}
	qr.Stage = StageParametersBound
	return q, true
}

// get 执行查询, scan 负责读取结果集
func get(ctx context.Context, sess Session, c core, qc *QueryContext, scan func(rows Rows) (any, error)) *QueryResult {
	var root Handler = func(ctx context.Context, qc *QueryContext) *QueryResult {
		return getHandler(ctx, sess, c, qc, scan)
	}
	return c.chain(root)(ctx, qc)
}

func getHandler(ctx context.Context, sess Session, c core, qc *QueryContext, scan func(rows Rows) (any, error)) *QueryResult {
	qr := &QueryResult{}
	q, ok := c.build(qc, qr)
	if !ok {
		return qr
	}
	c.traceQuery(ctx, qc, q)

	qr.Stage = StageSent
	rows, err := sess.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return qr.fail(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res, err := scan(rows)
	if err == nil {
		err = rows.Err()
	}
	if err != nil {
		return qr.fail(err)
	}
	qr.Result = res
	qr.Stage = StageRowsReceived
	qr.Reached = qr.Stage
	return qr
}

func exec(ctx context.Context, sess Session, c core, qc *QueryContext) *QueryResult {
	var root Handler = func(ctx context.Context, qc *QueryContext) *QueryResult {
		return execHandler(ctx, sess, c, qc)
	}
	return c.chain(root)(ctx, qc)
}

func execHandler(ctx context.Context, sess Session, c core, qc *QueryContext) *QueryResult {
	qr := &QueryResult{}
	q, ok := c.build(qc, qr)
	if !ok {
		return qr
	}
	c.traceQuery(ctx, qc, q)

	qr.Stage = StageSent
	res, err := sess.Exec(ctx, q.SQL, q.Args...)
	if err != nil {
		return qr.fail(err)
	}
	qr.Result = res
	qr.Stage = StageAffected
	qr.Reached = qr.Stage
	return qr
}
