// Package cache stores scraped pages' parsed results with a time-to-live.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Sentinel kinds for cache errors.
var (
	ErrCacheMiss      = errors.New("cache miss")
	ErrInvalidBackend = errors.New("invalid cache backend")
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Cache holds JSON documents until their TTL expires.
type Cache interface {
	// Get returns the stored document or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a JSON document for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Clear drops every entry.
	Clear(ctx context.Context) error
}

// Config selects and sizes a backend.
type Config struct {
	Backend       string
	Dir           string
	MemoryMax     int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open builds the configured backend. The memory backend writes through to Dir when set.
func Open(cfg Config) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendMemory:
		mem := NewMemory(WithMaxEntries(cfg.MemoryMax))
		if cfg.Dir == "" {
			return mem, nil
		}
		file, err := NewFile(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return NewTiered(mem, file), nil
	case BackendRedis:
		return NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), nil
	case BackendNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidBackend, cfg.Backend)
	}
}

// ComputeKey renders params as sorted "k=v" pairs joined by "&". Nil values are skipped.
func ComputeKey(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, "&")
}

// GetJSON decodes a stored document into dst.
func GetJSON(ctx context.Context, c Cache, key string, dst any) error {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("cache: decode %q: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it for ttl.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}

// Nop never stores anything.
type Nop struct{}

// Get implements Cache.
func (Nop) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

// Set implements Cache.
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Clear implements Cache.
func (Nop) Clear(context.Context) error { return nil }
