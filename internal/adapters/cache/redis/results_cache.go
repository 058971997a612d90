// Package redis keeps live per-option vote counts in redis so renderers can
// read results without touching the aggregate lock or the database.
package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

type ResultsCache struct {
	client *redis.Client
}

func NewResultsCache(ctx context.Context, addr string) (*ResultsCache, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &ResultsCache{client: c}, nil
}

func resultsKey(pollID int64) string {
	return fmt.Sprintf("poll:%d:results", pollID)
}

// UpdateCounts overwrites the cached counts for a poll in one pipeline.
func (c *ResultsCache) UpdateCounts(ctx context.Context, pollID int64, counts map[int64]int) error {
	key := resultsKey(pollID)
	fields := make(map[string]interface{}, len(counts))
	for optionID, count := range counts {
		fields[strconv.FormatInt(optionID, 10)] = count
	}

	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write results to redis: %w", err)
	}
	return nil
}

// Counts returns the cached per-option counts for a poll. A poll with no
// cached entry yields an empty map.
func (c *ResultsCache) Counts(ctx context.Context, pollID int64) (map[int64]int, error) {
	raw, err := c.client.HGetAll(ctx, resultsKey(pollID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read results from redis: %w", err)
	}

	counts := make(map[int64]int, len(raw))
	for field, value := range raw {
		optionID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse option id %q: %w", field, err)
		}
		count, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("failed to parse count %q: %w", value, err)
		}
		counts[optionID] = count
	}
	return counts, nil
}

func (c *ResultsCache) Close() error {
	return c.client.Close()
}
