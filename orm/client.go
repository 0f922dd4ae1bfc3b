package orm

import (
	"context"
	"database/sql"
)

var (
	_ Session = &Client{}
)

// Client 把任意 Executor 变成会话, 比如包装过的连接或者测试用的 mock
type Client struct {
	core
	Ops
	exec Executor
}

// NewClient 默认使用 MySQL 方言
func NewClient(exec Executor, opts ...Option) (*Client, error) {
	c, err := newCore(DialectMySQL, opts...)
	if err != nil {
		return nil, err
	}
	res := &Client{core: c, exec: exec}
	res.Ops = Ops{sess: res}
	return res, nil
}

func (c *Client) getCore() core {
	return c.core
}

func (c *Client) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.exec.Exec(ctx, query, args...)
}

func (c *Client) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return c.exec.Query(ctx, query, args...)
}
