// Package bcache stores built executables by the hash of their inputs, so
// an unchanged command line skips the compiler.
package bcache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"
)

// schemaVersion changes whenever Payload or the key layout changes.
const schemaVersion uint16 = 1

// Cache is an on-disk build cache. It is safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// Payload describes one cached executable.
type Payload struct {
	Schema   uint16
	Key      Digest
	Compiler string
	Args     []string
	Size     uint64
	Created  time.Time
}

// Open returns a cache rooted at dir, creating it when needed.
func Open(dir string) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("empty cache directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *Cache) metaPath(key Digest) string {
	return filepath.Join(c.dir, "meta", key.String()+".mp")
}

func (c *Cache) binPath(key Digest) string {
	return filepath.Join(c.dir, "bin", key.String())
}

// Put stores the executable at exe under key.
func (c *Cache) Put(key Digest, exe string, payload *Payload) error {
	if c == nil {
		return nil
	}
	if key.IsZero() {
		return errors.New("cache key was never computed")
	}
	info, err := os.Stat(exe)
	if err != nil {
		return err
	}
	size, err := safecast.Conv[uint64](info.Size())
	if err != nil {
		return fmt.Errorf("executable size: %w", err)
	}
	payload.Schema = schemaVersion
	payload.Key = key
	payload.Size = size
	if payload.Created.IsZero() {
		payload.Created = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	src, err := os.Open(exe)
	if err != nil {
		return err
	}
	defer src.Close()
	if err := writeAtomic(c.binPath(key), 0o755, func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	}); err != nil {
		return fmt.Errorf("store executable: %w", err)
	}
	if err := writeAtomic(c.metaPath(key), 0o644, func(w io.Writer) error {
		return msgpack.NewEncoder(w).Encode(payload)
	}); err != nil {
		return fmt.Errorf("store payload: %w", err)
	}
	return nil
}

// get reads the payload for key. It reports false when nothing usable is
// stored: a missing entry, another schema, or a binary that does not
// match its payload. Callers hold c.mu.
func (c *Cache) get(key Digest, out *Payload) (bool, error) {
	f, err := os.Open(c.metaPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	if out.Schema != schemaVersion || out.Key != key {
		return false, nil
	}
	info, err := os.Stat(c.binPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	size, err := safecast.Conv[uint64](info.Size())
	if err != nil || size != out.Size {
		return false, nil
	}
	return true, nil
}

// Restore copies the executable stored under key to dest.
func (c *Cache) Restore(key Digest, dest string) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var payload Payload
	ok, err := c.get(key, &payload)
	if err != nil || !ok {
		return false, err
	}
	src, err := os.Open(c.binPath(key))
	if err != nil {
		return false, err
	}
	defer src.Close()
	if err := writeAtomic(dest, 0o755, func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	}); err != nil {
		return false, fmt.Errorf("restore %s: %w", dest, err)
	}
	return true, nil
}

// DropAll removes every entry.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}

// Len returns the number of stored payloads.
func (c *Cache) Len() (int, error) {
	if c == nil {
		return 0, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries, err := os.ReadDir(filepath.Join(c.dir, "meta"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".mp" {
			n++
		}
	}
	return n, nil
}

// writeAtomic writes path through a temporary file in the same directory
// and renames it into place.
func writeAtomic(path string, mode os.FileMode, fill func(io.Writer) error) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()
	if err = fill(f); err != nil {
		return err
	}
	if err = f.Chmod(mode); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
