//go:build integration

package cooldown_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mintgate/internal/mint/store/cooldown"
	id "mintgate/pkg/domain"
	"mintgate/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *cooldown.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = cooldown.NewRedis(s.redis.Client, time.Hour)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) identity(seed string) id.Identity {
	identity, err := id.ParseIdentity("0x" + strings.Repeat(seed, 20))
	s.Require().NoError(err)
	return identity
}

func (s *RedisStoreSuite) TestLast_UnknownIdentity() {
	_, found, err := s.store.Last(context.Background(), s.identity("aa"))
	s.Require().NoError(err)
	s.False(found)
}

func (s *RedisStoreSuite) TestTouchThenLast() {
	ctx := context.Background()
	alice := s.identity("aa")
	at := time.Unix(1_700_000_000, 0)

	s.Require().NoError(s.store.Touch(ctx, alice, at))

	last, found, err := s.store.Last(ctx, alice)
	s.Require().NoError(err)
	s.True(found)
	s.True(last.Equal(at))
}

func (s *RedisStoreSuite) TestTouch_IsolatedPerIdentity() {
	ctx := context.Background()
	alice := s.identity("aa")
	bob := s.identity("bb")

	s.Require().NoError(s.store.Touch(ctx, alice, time.Unix(1_700_000_000, 0)))

	_, found, err := s.store.Last(ctx, bob)
	s.Require().NoError(err)
	s.False(found)
}
