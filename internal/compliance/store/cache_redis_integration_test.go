//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vaxtrack/internal/compliance/store"
	"vaxtrack/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestMissThenHit() {
	ctx := context.Background()
	cache := store.NewRedisCache(s.redis.Client, time.Minute)

	_, ok, err := cache.Get(ctx, "coverage:bcg:2026")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(cache.Set(ctx, "coverage:bcg:2026", 87.5))

	value, ok, err := cache.Get(ctx, "coverage:bcg:2026")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(87.5, value)
}

func (s *RedisCacheSuite) TestExpiry() {
	ctx := context.Background()
	cache := store.NewRedisCache(s.redis.Client, 50*time.Millisecond)

	s.Require().NoError(cache.Set(ctx, "coverage:short", 10))

	s.Eventually(func() bool {
		_, ok, err := cache.Get(ctx, "coverage:short")
		return err == nil && !ok
	}, 2*time.Second, 25*time.Millisecond)
}
