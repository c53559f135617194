package cache

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestCacheGetSet(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(10*time.Second, clock)

	_, ok := c.Get(KeyFrontpage)
	assert.False(t, ok)

	c.Set(KeyFrontpage, "payload")

	value, ok := c.Get(KeyFrontpage)
	assert.True(t, ok)
	assert.Equal(t, "payload", value)
}

func TestCacheExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(10*time.Second, clock)

	c.Set("key", 1)

	clock.Advance(9 * time.Second)
	_, ok := c.Get("key")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("key")
	assert.False(t, ok, "entry past TTL is a miss")
}

func TestCacheInvalidate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(time.Minute, clock)

	c.Set("key", 1)
	c.Invalidate("key")

	_, ok := c.Get("key")
	assert.False(t, ok)

	// invalidating an absent key is a no-op
	c.Invalidate("missing")
}
