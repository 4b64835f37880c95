package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const postsGenerationKey = "posts:gen"

// PostPages caches rendered post listing pages. Every mutation of posts or
// comments bumps a generation counter, so stale pages are never read again
// and expire on their own.
type PostPages struct {
	cache *Cache
	ttl   time.Duration
}

// NewPostPages creates a page cache. A nil cache disables it.
func NewPostPages(c *Cache, ttl time.Duration) *PostPages {
	return &PostPages{cache: c, ttl: ttl}
}

func (p *PostPages) key(ctx context.Context, parts ...string) (string, error) {
	gen, err := p.cache.Get(ctx, postsGenerationKey)
	if errors.Is(err, ErrMiss) {
		gen = "0"
	} else if err != nil {
		return "", err
	}
	return "posts:page:" + gen + ":" + HashKey(parts...), nil
}

// Get loads the page identified by parts into dest. It returns ErrMiss or
// ErrCacheDisabled when nothing usable is cached.
func (p *PostPages) Get(ctx context.Context, dest interface{}, parts ...string) error {
	if p == nil || !p.cache.enabled() {
		return ErrCacheDisabled
	}
	key, err := p.key(ctx, parts...)
	if err != nil {
		return err
	}
	return p.cache.GetJSON(ctx, key, dest)
}

// Put stores a page
func (p *PostPages) Put(ctx context.Context, page interface{}, parts ...string) error {
	if p == nil || !p.cache.enabled() {
		return ErrCacheDisabled
	}
	key, err := p.key(ctx, parts...)
	if err != nil {
		return err
	}
	return p.cache.SetJSON(ctx, key, page, p.ttl)
}

// Invalidate drops every cached page
func (p *PostPages) Invalidate(ctx context.Context) error {
	if p == nil || !p.cache.enabled() {
		return nil
	}
	if _, err := p.cache.Incr(ctx, postsGenerationKey); err != nil {
		return fmt.Errorf("bump posts generation: %w", err)
	}
	return nil
}
