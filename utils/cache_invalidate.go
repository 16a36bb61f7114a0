package utils

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const (
	PublicCachePrefix   = "cache:public:"
	LocationCachePrefix = "cache:locations:"
)

// PublicEventCachePrefix is the key prefix of every cached public page of one event.
func PublicEventCachePrefix(slug string) string {
	return PublicCachePrefix + slug + ":"
}

type CacheInvalidator struct{ rdb *redis.Client }

func NewCacheInvalidator(rdb *redis.Client) *CacheInvalidator { return &CacheInvalidator{rdb} }

// PurgeEventPages drops the cached public event page and all its item pages.
func (ci *CacheInvalidator) PurgeEventPages(ctx context.Context, slug string) {
	if ci == nil || slug == "" {
		return
	}
	ci.purge(ctx, PublicEventCachePrefix(slug)+"*")
}

// PurgeLocations drops every cached location lookup and search.
func (ci *CacheInvalidator) PurgeLocations(ctx context.Context) {
	if ci == nil {
		return
	}
	ci.purge(ctx, LocationCachePrefix+"*")
}

func (ci *CacheInvalidator) purge(ctx context.Context, pattern string) {
	iter := ci.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		_ = ci.rdb.Del(ctx, iter.Val()).Err()
	}
}
