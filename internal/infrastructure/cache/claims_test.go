package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClaimStore_ClaimOnce(t *testing.T) {
	s := NewMemoryClaimStore()
	defer s.Close()
	ctx := context.Background()

	ok, err := s.Claim(ctx, "pay:1:abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Claim(ctx, "pay:1:abc", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second claim of the same key loses")

	require.NoError(t, s.Release(ctx, "pay:1:abc"))
	ok, err = s.Claim(ctx, "pay:1:abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "released key can be claimed again")
}

func TestMemoryClaimStore_Expiry(t *testing.T) {
	s := NewMemoryClaimStore()
	defer s.Close()
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ok, _ := s.Claim(ctx, "a", time.Minute)
	require.True(t, ok)
	ok, _ = s.Claim(ctx, "b", time.Hour)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = s.Claim(ctx, "a", time.Minute)
	assert.True(t, ok, "expired claim is replaced")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, s.sweep())
	assert.Equal(t, 1, s.Len())
}

func TestMemoryClaimStore_CloseTwice(t *testing.T) {
	s := NewMemoryClaimStore()
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestRedisClaimStore(t *testing.T) {
	client := redisTestClient(t)
	ctx := context.Background()

	s := NewRedisClaimStore(client, "test:claims:"+uuid.NewString()+":")
	key := uuid.NewString()

	ok, err := s.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Release(ctx, key))
	ok, err = s.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, s.Release(ctx, key))
}
