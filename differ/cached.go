package differ

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"grc-portal/helper"
	"grc-portal/logger"
	"grc-portal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultCacheTTL = 24 * time.Hour

// Cached memoizes another generator's results in Redis, keyed by a digest
// of both contents. Redis failures fall through to the wrapped generator.
type Cached struct {
	next   Generator
	client redis.Cmdable
	ttl    time.Duration
	prefix string
	log    zerolog.Logger
}

func NewCached(next Generator, client redis.Cmdable, ttl time.Duration, log zerolog.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: "grc:diff:",
		log:    logger.Component(log, "differ_cache"),
	}
}

func (c *Cached) Name() string {
	return c.next.Name() + "+redis"
}

func (c *Cached) key(kind, oldContent, newContent string) string {
	return c.prefix + c.next.Name() + ":" + kind + ":" + helper.Digest(oldContent+"\x00"+newContent)
}

func (c *Cached) Summarize(ctx context.Context, oldContent, newContent string) (string, error) {
	key := c.key("summary", oldContent, newContent)
	if hit, err := c.client.Get(ctx, key).Result(); err == nil {
		return hit, nil
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn().Err(err).Msg("diff cache read failed")
	}

	summary, err := c.next.Summarize(ctx, oldContent, newContent)
	if err != nil {
		return "", err
	}
	if err := c.client.Set(ctx, key, summary, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("diff cache write failed")
	}
	return summary, nil
}

func (c *Cached) Diff(ctx context.Context, oldContent, newContent string) (models.ChangeDiff, error) {
	key := c.key("diff", oldContent, newContent)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var diff models.ChangeDiff
		if jsonErr := json.Unmarshal(raw, &diff); jsonErr == nil {
			return diff.Normalize(), nil
		}
		c.log.Warn().Str("key", key).Msg("discarding undecodable cached diff")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Msg("diff cache read failed")
	}

	diff, err := c.next.Diff(ctx, oldContent, newContent)
	if err != nil {
		return models.ChangeDiff{}, err
	}
	encoded, err := json.Marshal(diff.Normalize())
	if err != nil {
		return diff, nil
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("diff cache write failed")
	}
	return diff, nil
}
