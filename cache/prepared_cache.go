package cache

import (
	"context"
	"io"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// PreparedCache 缓存预编译语句, 每次命中都会刷新过期时间
// 过期或者被删除的语句在 grace 之后关闭, 给正在使用它的调用留出时间
type PreparedCache[S io.Closer] struct {
	items *gocache.Cache
	g     singleflight.Group
}

func NewPreparedCache[S io.Closer](ttl time.Duration, grace time.Duration) *PreparedCache[S] {
	items := gocache.New(ttl, ttl)
	items.OnEvicted(func(key string, val any) {
		s := val.(S)
		time.AfterFunc(grace, func() {
			_ = s.Close()
		})
	})
	return &PreparedCache[S]{items: items}
}

func (p *PreparedCache[S]) Get(ctx context.Context, key string, prepare func(ctx context.Context, key string) (S, error)) (S, error) {
	if val, ok := p.items.Get(key); ok && p.touch(key, val) {
		return val.(S), nil
	}
	val, err, _ := p.g.Do(key, func() (any, error) {
		if val, ok := p.items.Get(key); ok {
			return val, nil
		}
		s, err := prepare(ctx, key)
		if err != nil {
			return nil, err
		}
		// 过期但是还没有被清理的旧语句, 删除的时候会触发关闭
		p.items.Delete(key)
		p.items.SetDefault(key, s)
		return s, nil
	})
	if err != nil {
		var zero S
		return zero, err
	}
	return val.(S), nil
}

// touch 滑动过期. 语句在 Get 之后被清理掉的话, 关闭已经在路上了, 不能再放回去
func (p *PreparedCache[S]) touch(key string, val any) bool {
	return p.items.Replace(key, val, gocache.DefaultExpiration) == nil
}

func (p *PreparedCache[S]) Len() int {
	return p.items.ItemCount()
}

// Close 立刻关闭所有语句
func (p *PreparedCache[S]) Close() error {
	items := p.items.Items()
	p.items.Flush()
	var firstErr error
	for _, item := range items {
		if err := item.Object.(S).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
