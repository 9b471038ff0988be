package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/qualtrack/pkg/metrics"
)

// fileEntry is the on-disk document; ExpiresAt is unix milliseconds.
type fileEntry struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt int64           `json:"expiresAt"`
}

// File keeps one JSON document per key under a directory.
type File struct {
	dir string
	now func() time.Time
}

// NewFile creates dir when missing.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	return &File{dir: dir, now: time.Now}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.QueryEscape(key)+".json")
}

// Get implements Cache. Expired documents are removed.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	v, _, err := f.load(key)
	return v, err
}

func (f *File) load(key string) ([]byte, time.Time, error) {
	p := f.path(key)
	raw, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		metrics.RecordCacheMiss("file")
		return nil, time.Time{}, ErrCacheMiss
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("cache: read %s: %w", p, err)
	}
	var e fileEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		_ = os.Remove(p)
		metrics.RecordCacheMiss("file")
		return nil, time.Time{}, ErrCacheMiss
	}
	expiresAt := time.UnixMilli(e.ExpiresAt)
	if !f.now().Before(expiresAt) {
		_ = os.Remove(p)
		metrics.RecordCacheMiss("file")
		return nil, time.Time{}, ErrCacheMiss
	}
	metrics.RecordCacheHit("file")
	return e.Value, expiresAt, nil
}

// Set implements Cache.
func (f *File) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	raw, err := json.Marshal(fileEntry{Value: value, ExpiresAt: f.now().Add(ttl).UnixMilli()})
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}
	p := f.path(key)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("cache: write %s: %w", p, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("cache: rename %s: %w", p, err)
	}
	metrics.RecordCacheWrite("file")
	return nil
}

// Clear implements Cache.
func (f *File) Clear(_ context.Context) error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("cache: list dir: %w", err)
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Tiered reads memory first, then disk, promoting disk hits into memory.
type Tiered struct {
	mem  *Memory
	file *File
}

// NewTiered chains a memory tier in front of a file tier.
func NewTiered(mem *Memory, file *File) *Tiered {
	return &Tiered{mem: mem, file: file}
}

// Get implements Cache.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, error) {
	if v, err := t.mem.Get(ctx, key); err == nil {
		return v, nil
	}
	v, expiresAt, err := t.file.load(key)
	if err != nil {
		return nil, err
	}
	t.mem.put(key, v, expiresAt)
	return v, nil
}

// Set implements Cache. Disk failures are returned after the memory write succeeds.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.mem.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return t.file.Set(ctx, key, value, ttl)
}

// Clear implements Cache.
func (t *Tiered) Clear(ctx context.Context) error {
	return errors.Join(t.mem.Clear(ctx), t.file.Clear(ctx))
}
