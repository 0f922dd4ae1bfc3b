package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// LoadingCache 是一个本地 LRU 缓存, read-through 模式
// 缓存中读不到数据就调用加载函数, 拿到后设置到缓存里面
// 同一个 key 并发加载只会执行一次
type LoadingCache[V any] struct {
	cache *lru.Cache[string, V]
	g     singleflight.Group
}

func NewLoadingCache[V any](size int) (*LoadingCache[V], error) {
	c, err := lru.New[string, V](size)
	if err != nil {
		return nil, err
	}
	return &LoadingCache[V]{cache: c}, nil
}

// Get 加载失败的结果不会被缓存
func (l *LoadingCache[V]) Get(key string, load func() (V, error)) (V, error) {
	if val, ok := l.cache.Get(key); ok {
		return val, nil
	}
	val, err, _ := l.g.Do(key, func() (any, error) {
		// double check, 上一轮加载可能刚刚结束
		if val, ok := l.cache.Get(key); ok {
			return val, nil
		}
		val, err := load()
		if err != nil {
			return nil, err
		}
		l.cache.Add(key, val)
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return val.(V), nil
}

func (l *LoadingCache[V]) Len() int {
	return l.cache.Len()
}

func (l *LoadingCache[V]) Purge() {
	l.cache.Purge()
}
