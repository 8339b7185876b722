package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/talekeeper/storysync/internal/model"
)

// Collection is the on-disk collection of one entity type: a single JSON file
// holding a flat array of records, plus an in-memory copy loaded on first use.
//
// All access goes through one mutex, so a read-modify-write cycle (load,
// replace, rewrite) can never interleave with another one on the same file.
// Different collections are independent of each other.
type Collection[T model.Record] struct {
	typ    model.EntityType
	path   string
	logger *log.Logger

	mu     sync.Mutex
	cache  []T
	loaded bool
	// stamp of the file the cache reflects, used to tell our own writes
	// apart from writes by other processes
	modTime time.Time
	size    int64
}

func newCollection[T model.Record](dir string, typ model.EntityType, logger *log.Logger) *Collection[T] {
	return &Collection[T]{
		typ:    typ,
		path:   filepath.Join(dir, typ.FileName()),
		logger: logger,
	}
}

// Type returns the entity type stored in this collection.
func (c *Collection[T]) Type() model.EntityType {
	return c.typ
}

// Path returns the collection file path.
func (c *Collection[T]) Path() string {
	return c.path
}

// All returns every record in the collection.
//
// The first call reads and decodes the file; later calls are served from
// memory until the cache is invalidated. A missing file is an empty
// collection. A file that exists but cannot be decoded yields a
// *StorageError.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load()
	if err != nil {
		return nil, err
	}
	return slices.Clone(items), nil
}

// Get returns the record with the given id.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T

	items, err := c.All(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, item := range items {
		if item.RecordID() == id {
			return item, true, nil
		}
	}
	return zero, false, nil
}

// Save inserts the record, or replaces the one with the same id, and rewrites
// the whole collection file.
func (c *Collection[T]) Save(ctx context.Context, v T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := v.Validate(); err != nil {
		return zero, fmt.Errorf("invalid %s: %w", c.typ, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load()
	if err != nil {
		return zero, err
	}

	next := slices.Clone(items)
	idx := slices.IndexFunc(next, func(item T) bool { return item.RecordID() == v.RecordID() })
	if idx >= 0 {
		next[idx] = v
	} else {
		next = append(next, v)
	}

	if err := c.write(next); err != nil {
		return zero, err
	}
	return v, nil
}

// Delete removes the record with the given id and rewrites the collection
// file. Returns an error wrapping ErrNotFound if no record matches.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load()
	if err != nil {
		return err
	}

	idx := slices.IndexFunc(items, func(item T) bool { return item.RecordID() == id })
	if idx < 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, c.typ, id)
	}

	next := slices.Delete(slices.Clone(items), idx, idx+1)
	return c.write(next)
}

// Invalidate drops the in-memory copy; the next access reloads from disk.
func (c *Collection[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = nil
	c.loaded = false
}

// Refresh invalidates the cache if the file on disk no longer matches the
// version the cache was built from. Returns true if the cache was dropped.
func (c *Collection[T]) Refresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return false
	}

	info, err := os.Stat(c.path)
	switch {
	case err != nil && os.IsNotExist(err):
		if c.modTime.IsZero() {
			return false
		}
	case err != nil:
		c.logger.Printf("WARNING: failed to stat %s: %v", c.path, err)
	case info.ModTime().Equal(c.modTime) && info.Size() == c.size:
		return false
	}

	c.cache = nil
	c.loaded = false
	return true
}

// load populates the cache from disk if needed. Caller must hold c.mu.
func (c *Collection[T]) load() ([]T, error) {
	if c.loaded {
		return c.cache, nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.cache = []T{}
			c.loaded = true
			c.modTime, c.size = time.Time{}, 0
			return c.cache, nil
		}
		return nil, &StorageError{Op: "read", Path: c.path, Err: err}
	}

	var items []T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, &StorageError{Op: "decode", Path: c.path, Err: err}
		}
	}
	if items == nil {
		items = []T{}
	}

	c.cache = items
	c.loaded = true
	c.stamp()
	return c.cache, nil
}

// write replaces the collection file atomically and then the cache.
// Caller must hold c.mu.
func (c *Collection[T]) write(items []T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode", Path: c.path, Err: err}
	}

	if err := writeFileAtomic(c.path, data); err != nil {
		return &StorageError{Op: "write", Path: c.path, Err: err}
	}

	c.cache = items
	c.loaded = true
	c.stamp()
	return nil
}

// stamp records the current file version. Caller must hold c.mu.
func (c *Collection[T]) stamp() {
	info, err := os.Stat(c.path)
	if err != nil {
		c.modTime, c.size = time.Time{}, 0
		return
	}
	c.modTime, c.size = info.ModTime(), info.Size()
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path, so readers never observe a half-written collection.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, fs.FileMode(0o644)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
