package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainLimiter_PerHost(t *testing.T) {
	dl := NewDomainLimiter(0.1, 1)

	assert.True(t, dl.Allow("https://shop-a.example.com/p/1"))
	assert.False(t, dl.Allow("https://shop-a.example.com/p/2"), "burst exhausted for shop-a")
	assert.True(t, dl.Allow("https://shop-b.example.com/p/1"), "other hosts have their own bucket")
	assert.True(t, dl.Allow("::not a url"))
}

func TestDomainLimiter_WaitHonoursContext(t *testing.T) {
	dl := NewDomainLimiter(0.01, 1)
	require.NoError(t, dl.Wait(context.Background(), "https://shop.example.com/a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, dl.Wait(ctx, "https://shop.example.com/b"))
}

func TestDomainLimiter_SetLimit(t *testing.T) {
	dl := NewDomainLimiter(0.01, 1)
	dl.SetLimit("shop.example.com", 1000, 5)

	for i := 0; i < 5; i++ {
		assert.True(t, dl.Allow("https://shop.example.com/x"))
	}
}
