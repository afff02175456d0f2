// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"hash/fnv"
	"os"
	"time"

	"github.com/elastic/go-freelru"
	"github.com/pkg/errors"
)

// Cache holds parsed images keyed by path, so that repeated lookups of the
// same module do not re-read and re-parse it. It is safe for concurrent use.
//
// Cached Files are backed by heap memory rather than a file mapping, so a File
// stays valid after it has been evicted.
type Cache struct {
	lru  *freelru.SyncedLRU[string, *cacheEntry]
	opts []Option
}

type cacheEntry struct {
	size    int64
	modTime time.Time
	file    *File
	err     error
}

func hashPath(path string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(path))
	return h.Sum32()
}

// NewCache returns a Cache holding up to capacity images, each for at most
// ttl. A zero ttl keeps entries until they are evicted. opts are passed to
// Parse.
func NewCache(capacity uint32, ttl time.Duration, opts ...Option) (*Cache, error) {
	lru, err := freelru.NewSynced[string, *cacheEntry](capacity, hashPath)
	if err != nil {
		return nil, errors.Wrap(err, "creating PE cache")
	}
	if ttl > 0 {
		lru.SetLifetime(ttl)
	}
	return &Cache{lru: lru, opts: opts}, nil
}

// Get returns the parsed image at path. The cached result, including a parse
// failure, is reused for as long as the file's size and modification time
// are unchanged.
func (c *Cache) Get(path string) (*File, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if e, ok := c.lru.Get(path); ok && e.size == fi.Size() && e.modTime.Equal(fi.ModTime()) {
		return e.file, e.err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data, c.opts...)
	c.lru.Add(path, &cacheEntry{size: fi.Size(), modTime: fi.ModTime(), file: f, err: err})
	return f, err
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.lru.Purge()
}
