// Copyright 2021-2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ErrInvalidCacheSize = errors.New("cache size must be positive")
)

// Cache is a two level byte cache. Values are lz4 compressed and kept in a
// local LRU; when a redis client is configured they are also written to redis
// with a TTL so that several processes can share downloads.
type Cache struct {
	local *lru.Cache
	rdb   *redis.Client
	ttl   time.Duration
}

type CacheOption func(*Cache)

// WithRedis stores values in redis in addition to the local LRU
func WithRedis(rdb *redis.Client, ttl time.Duration) CacheOption {
	return func(c *Cache) {
		c.rdb = rdb
		c.ttl = ttl
	}
}

func NewCache(localSize int, opts ...CacheOption) (*Cache, error) {
	if localSize <= 0 {
		return nil, ErrInvalidCacheSize
	}

	local, err := lru.New(localSize)
	if err != nil {
		return nil, err
	}

	c := &Cache{local: local}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetupCache builds a cache from the `cache.*` configuration keys
func SetupCache() (*Cache, error) {
	opts := make([]CacheOption, 0, 1)
	if viper.GetBool("cache.redis") {
		opt, err := redis.ParseURL(viper.GetString("cache.redis_url"))
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			return nil, err
		}

		ttl := time.Duration(viper.GetInt("cache.ttl")) * time.Second
		opts = append(opts, WithRedis(redis.NewClient(opt), ttl))
	}

	cache, err := NewCache(viper.GetInt("cache.local_size"), opts...)
	if err != nil {
		log.Error().Err(err).Msg("could not create LRU cache")
		return nil, err
	}
	return cache, nil
}

func (c *Cache) Set(ctx context.Context, key string, val []byte) error {
	compressed, err := Compress(val)
	if err != nil {
		return err
	}
	c.local.Add(key, compressed)

	if c.rdb != nil {
		return c.rdb.Set(ctx, key, compressed, c.ttl).Err()
	}
	return nil
}

// Get returns the value stored at key. The boolean is false on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok := c.local.Get(key); ok {
		val, err := Decompress(v.([]byte))
		return val, err == nil, err
	}

	if c.rdb == nil {
		return nil, false, nil
	}

	compressed, err := c.rdb.GetEx(ctx, key, c.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	// promote to the local cache
	c.local.Add(key, compressed)

	val, err := Decompress(compressed)
	return val, err == nil, err
}

// Len returns the number of entries in the local cache
func (c *Cache) Len() int {
	return c.local.Len()
}

func (c *Cache) Purge() {
	c.local.Purge()
}
