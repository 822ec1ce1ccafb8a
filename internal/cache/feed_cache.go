package cache

import (
	"context"
	_ "embed"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	FeedCacheTTL = 1 * time.Hour

	feedKey = "feed:latest"
	genKey  = "feed:gen"
)

//go:embed feed_fill.lua
var fillScript string

var fillIfCurrent = redis.NewScript(fillScript)

// FeedCache keeps the serialized newest-first feed in Redis. Writers bump a
// generation counter and drop the feed after every accepted post. Readers
// note the generation before reading the store and only fill the cache if
// it has not moved since.
type FeedCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewFeedCache(client *redis.Client) *FeedCache {
	return &FeedCache{client: client, ttl: FeedCacheTTL}
}

// Get returns the cached feed, or nil on a cache miss.
func (c *FeedCache) Get(ctx context.Context) ([]byte, error) {
	val, err := c.client.Get(ctx, feedKey).Bytes()
	if err == redis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Generation returns the current feed generation. A missing counter is 0.
func (c *FeedCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, genKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

// Fill stores data as JSON with the cache TTL if the generation is still gen.
// It reports whether the feed was written.
func (c *FeedCache) Fill(ctx context.Context, gen int64, data interface{}) (bool, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return false, err
	}

	ok, err := fillIfCurrent.Run(ctx, c.client,
		[]string{genKey, feedKey},
		strconv.FormatInt(gen, 10), jsonData, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return ok == 1, nil
}

// Invalidate moves the generation forward and drops the cached feed, so
// fills started before the call are discarded.
func (c *FeedCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Del(ctx, feedKey)
		return nil
	})
	return err
}

func FeedKey() string {
	return feedKey
}
