// internal/broker/redis_store.go
// Redis-backed registration store for HA broker deployments running more
// than one process behind a load balancer. Each registration is a per-
// username HSET record, plus a sorted set keyed by lastSeenAt for efficient
// reclamation scans.
package broker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
    redisRegHashPrefix = "yep:broker:reg:"
    redisLastSeenZSet  = "yep:broker:lastseen"
)

// RedisStore is a Store backed by a shared Redis instance.
type RedisStore struct {
    cli *redis.Client
}

func NewRedisStore(cli *redis.Client) *RedisStore {
    return &RedisStore{cli: cli}
}

func (s *RedisStore) Get(ctx context.Context, username string) (*Registration, error) {
    vals, err := s.cli.HGetAll(ctx, redisRegHashPrefix+username).Result()
    if err != nil {
        return nil, err
    }
    if len(vals) == 0 {
        return nil, ErrNotFound
    }
    first, _ := strconv.ParseInt(vals["firstSeenAt"], 10, 64)
    last, _ := strconv.ParseInt(vals["lastSeenAt"], 10, 64)
    return &Registration{
        Username:    username,
        InstallID:   vals["installId"],
        FirstSeenAt: time.Unix(first, 0).UTC(),
        LastSeenAt:  time.Unix(last, 0).UTC(),
    }, nil
}

func (s *RedisStore) Upsert(ctx context.Context, reg Registration) error {
    existing, err := s.Get(ctx, reg.Username)
    firstSeen := reg.FirstSeenAt
    if err == nil {
        firstSeen = existing.FirstSeenAt
    } else if !errors.Is(err, ErrNotFound) {
        return err
    }

    key := redisRegHashPrefix + reg.Username
    pipe := s.cli.Pipeline()
    pipe.HSet(ctx, key, map[string]any{
        "installId":   reg.InstallID,
        "firstSeenAt": firstSeen.Unix(),
        "lastSeenAt":  reg.LastSeenAt.Unix(),
    })
    pipe.ZAdd(ctx, redisLastSeenZSet, redis.Z{Score: float64(reg.LastSeenAt.Unix()), Member: reg.Username})
    _, err = pipe.Exec(ctx)
    return err
}

func (s *RedisStore) ReclaimOlderThan(ctx context.Context, cutoff time.Time, excluded map[string]struct{}) (int, error) {
    stale, err := s.cli.ZRangeByScore(ctx, redisLastSeenZSet, &redis.ZRangeBy{
        Min: "-inf", Max: "(" + strconv.FormatInt(cutoff.Unix(), 10),
    }).Result()
    if err != nil {
        return 0, err
    }

    removed := 0
    for _, username := range stale {
        if _, skip := excluded[username]; skip {
            continue
        }
        pipe := s.cli.Pipeline()
        pipe.Del(ctx, redisRegHashPrefix+username)
        pipe.ZRem(ctx, redisLastSeenZSet, username)
        if _, err := pipe.Exec(ctx); err != nil {
            return removed, err
        }
        removed++
    }
    return removed, nil
}

func (s *RedisStore) Close() error { return s.cli.Close() }
