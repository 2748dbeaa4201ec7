package differ

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"grc-portal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

type CachedTestSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	gen    *stubGenerator
	cached *Cached
}

func (suite *CachedTestSuite) SetupTest() {
	suite.mr = miniredis.RunT(suite.T())
	suite.client = redis.NewClient(&redis.Options{Addr: suite.mr.Addr()})
	suite.gen = &stubGenerator{
		summary: "Added an exceptions section.",
		diff:    models.ChangeDiff{Added: []string{"Exceptions"}},
	}
	suite.cached = NewCached(suite.gen, suite.client, time.Hour, zerolog.New(io.Discard))
}

func (suite *CachedTestSuite) TearDownTest() {
	suite.client.Close()
}

func (suite *CachedTestSuite) TestSummaryIsServedFromCache() {
	ctx := context.Background()

	first, err := suite.cached.Summarize(ctx, "old", "new")
	suite.NoError(err)
	second, err := suite.cached.Summarize(ctx, "old", "new")
	suite.NoError(err)

	suite.Equal("Added an exceptions section.", first)
	suite.Equal(first, second)
	suite.Equal(1, suite.gen.calls)
}

func (suite *CachedTestSuite) TestDiffIsServedFromCache() {
	ctx := context.Background()

	_, err := suite.cached.Diff(ctx, "old", "new")
	suite.NoError(err)
	diff, err := suite.cached.Diff(ctx, "old", "new")
	suite.NoError(err)

	suite.Equal([]string{"Exceptions"}, diff.Added)
	suite.Equal([]string{}, diff.Removed)
	suite.Equal(1, suite.gen.calls)
}

func (suite *CachedTestSuite) TestDifferentContentMisses() {
	ctx := context.Background()

	_, _ = suite.cached.Summarize(ctx, "old", "new")
	_, _ = suite.cached.Summarize(ctx, "old", "newer")
	suite.Equal(2, suite.gen.calls)
}

func (suite *CachedTestSuite) TestEntriesExpire() {
	ctx := context.Background()

	_, _ = suite.cached.Summarize(ctx, "old", "new")
	suite.mr.FastForward(2 * time.Hour)
	_, _ = suite.cached.Summarize(ctx, "old", "new")
	suite.Equal(2, suite.gen.calls)
}

func (suite *CachedTestSuite) TestErrorsAreNotCached() {
	ctx := context.Background()
	suite.gen.err = errors.New("rate limited")

	_, err := suite.cached.Summarize(ctx, "old", "new")
	suite.Error(err)
	suite.Empty(suite.mr.Keys())
}

func (suite *CachedTestSuite) TestRedisOutageFallsThrough() {
	suite.mr.Close()

	summary, err := suite.cached.Summarize(context.Background(), "old", "new")
	suite.NoError(err)
	suite.Equal("Added an exceptions section.", summary)
}

func TestCachedTestSuite(t *testing.T) {
	suite.Run(t, new(CachedTestSuite))
}
