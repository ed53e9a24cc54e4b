package cachestore

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// redisStore implements Store backed by a Redis instance. Each game's cache
// lives in one hash so Clear and Usage stay single-key operations.
type redisStore struct {
	client redis.UniversalClient
}

const redisKeyPrefix = "packbridge:cache:"

// NewRedisStore connects to the given Redis URL and returns a Store.
func NewRedisStore(addr string) (Store, error) {
	opts, err := parseRedisURL(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewUniversalClient(opts)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &redisStore{client: c}, nil
}

func gameKey(gameID string) string { return redisKeyPrefix + gameID }

func (r *redisStore) Read(ctx context.Context, gameID, key string) ([]byte, bool, error) {
	b, err := r.client.HGet(ctx, gameKey(gameID), key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *redisStore) Write(ctx context.Context, gameID, key string, data []byte) error {
	return r.client.HSet(ctx, gameKey(gameID), key, data).Err()
}

func (r *redisStore) Exists(ctx context.Context, gameID, key string) (bool, error) {
	return r.client.HExists(ctx, gameKey(gameID), key).Result()
}

func (r *redisStore) Usage(ctx context.Context, gameID string) (Usage, error) {
	entries, err := r.client.HGetAll(ctx, gameKey(gameID)).Result()
	if err != nil {
		return Usage{}, err
	}
	var u Usage
	for _, v := range entries {
		u.FileCount++
		u.SizeBytes += int64(len(v))
	}
	return u, nil
}

func (r *redisStore) Clear(ctx context.Context, gameID string) error {
	return r.client.Del(ctx, gameKey(gameID)).Err()
}

// parseRedisURL parses addr into UniversalOptions supporting single, cluster,
// and sentinel Redis deployments. If no scheme is present, addr is treated as
// a plain host:port string.
func parseRedisURL(addr string) (*redis.UniversalOptions, error) {
	if !strings.Contains(addr, "://") {
		return &redis.UniversalOptions{Addrs: []string{addr}}, nil
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}

	opts := &redis.UniversalOptions{}
	if u.User != nil {
		opts.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			opts.Password = pw
		}
	}
	opts.Addrs = strings.Split(u.Host, ",")

	q := u.Query()
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	switch u.Scheme {
	case "redis", "rediss":
		if u.Path != "" && u.Path != "/" {
			if db, err := strconv.Atoi(strings.TrimPrefix(u.Path, "/")); err == nil {
				opts.DB = db
			} else {
				return nil, fmt.Errorf("redis: invalid db: %v", err)
			}
		} else if dbStr := q.Get("db"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				opts.DB = db
			} else {
				return nil, fmt.Errorf("redis: invalid db: %v", err)
			}
		}
		if u.Scheme == "rediss" {
			opts.TLSConfig = tlsCfg
		}
	case "redis-sentinel", "rediss-sentinel":
		opts.MasterName = strings.TrimPrefix(u.Path, "/")
		if dbStr := q.Get("db"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				opts.DB = db
			} else {
				return nil, fmt.Errorf("redis: invalid db: %v", err)
			}
		}
		if v := q.Get("sentinel_username"); v != "" {
			opts.SentinelUsername = v
		}
		if v := q.Get("sentinel_password"); v != "" {
			opts.SentinelPassword = v
		}
		if u.Scheme == "rediss-sentinel" {
			opts.TLSConfig = tlsCfg
		}
	default:
		return nil, fmt.Errorf("redis: invalid URL scheme: %s", u.Scheme)
	}

	return opts, nil
}
