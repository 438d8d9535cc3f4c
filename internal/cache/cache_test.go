package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	prev := client
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(prev) })
	return mr
}

func TestAside_CachesFetchedValue(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedUser) func() error {
		return func() error {
			calls++
			*dest = cachedUser{ID: 1, Name: "ann"}
			return nil
		}
	}

	var first cachedUser
	require.NoError(t, Aside(ctx, UserKey(1), &first, UserTTL, fetch(&first)))
	var second cachedUser
	require.NoError(t, Aside(ctx, UserKey(1), &second, UserTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "ann", second.Name)
	assert.True(t, mr.Exists("user:1"))
	assert.Equal(t, UserTTL, mr.TTL("user:1"))

	InvalidateUser(ctx, 1)
	assert.False(t, mr.Exists("user:1"))
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := withMiniredis(t)
	var dest cachedUser
	err := Aside(context.Background(), UserKey(2), &dest, UserTTL, func() error {
		return errors.New("not found")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("user:2"))
}

func TestAside_WithoutClient(t *testing.T) {
	prev := client
	SetClient(nil)
	defer SetClient(prev)

	var dest cachedUser
	err := Aside(context.Background(), UserKey(3), &dest, time.Minute, func() error {
		dest.Name = "direct"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", dest.Name)

	found, err := GetJSON(context.Background(), UserKey(3), &dest)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestInitRedis(t *testing.T) {
	prev := client
	defer SetClient(prev)

	mr := miniredis.RunT(t)
	InitRedis("redis://" + mr.Addr())
	require.NotNil(t, GetClient())

	InitRedis("redis://%zz")
	assert.Nil(t, GetClient())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "user:9", UserKey(9))
	assert.Equal(t, "blacklist:abc", BlacklistKey("abc"))
}

func TestBlacklist(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	revoked, err := IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, Blacklist(ctx, "jti-1", time.Hour))
	revoked, err = IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, time.Hour, mr.TTL("blacklist:jti-1"))

	mr.FastForward(2 * time.Hour)
	revoked, err = IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestBlacklist_WithoutClient(t *testing.T) {
	prev := client
	SetClient(nil)
	defer SetClient(prev)

	assert.Error(t, Blacklist(context.Background(), "jti", time.Hour))
	revoked, err := IsBlacklisted(context.Background(), "jti")
	assert.NoError(t, err)
	assert.False(t, revoked)
}
