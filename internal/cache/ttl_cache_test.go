package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	c := NewTTLCache[string, string](WithNow(func() time.Time { return now }))

	c.Set("token", "abc", time.Minute)
	c.Set("forever", "x", 0)

	got, ok := c.Get("token")
	assert.True(t, ok)
	assert.Equal(t, "abc", got)

	now = now.Add(time.Minute)
	_, ok = c.Get("token")
	assert.False(t, ok, "entry must be gone exactly at its expiry")

	_, ok = c.Get("forever")
	assert.True(t, ok)
}

func TestTTLCachePurge(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	c := NewTTLCache[string, int](WithNow(func() time.Time { return now }))
	c.Set("a", 1, time.Second)
	c.Set("b", 2, time.Hour)

	now = now.Add(2 * time.Second)
	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 1, c.Len())
}

func TestNilAndNoopCaches(t *testing.T) {
	var c *TTLCache[string, int]
	c.Set("a", 1, time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok)

	var n Cache[string, int] = NoopCache[string, int]{}
	n.Set("a", 1, time.Second)
	_, ok = n.Get("a")
	assert.False(t, ok)
}
