package tokenstore

import (
	"context"
	"time"

	"github.com/payssd/chapchap-sub000/internal/cache"
)

// Memory keeps tokens in process. It is the default when redis is disabled.
type Memory struct {
	cache *cache.TTLCache[string, string]
}

func NewMemory(opts ...cache.Option) *Memory {
	return &Memory{cache: cache.NewTTLCache[string, string](opts...)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	token, ok := m.cache.Get(key)
	return token, ok, nil
}

func (m *Memory) Set(_ context.Context, key, token string, ttl time.Duration) error {
	m.cache.Set(key, token, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}
