// Package cache stores realized stage archives keyed by content digest.
//
// A cached stage is addressed by the digest of its full build identity:
// base identity, resolved build arguments, and the ordered action list. An
// entry is served only on an exact key match, so any change to the base,
// an argument value, or an action produces a different key and forces a
// full replay. Entries are published atomically via rename, so a partially
// written archive is never observable under its final key.
package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/stagehandhq/stagehandd/internal/manifest"
	"github.com/stagehandhq/stagehandd/internal/paths"
)

// A content-addressed store of stage archives on the local filesystem.
type Cache struct {
	dir string // Root directory of the store.
}

// Opens (creating if needed) a cache rooted at dir.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// The identity hashed into a stage's cache key.
type keyInput struct {
	Base    string            `json:"base"`
	Args    map[string]string `json:"args,omitempty"`
	Actions []manifest.Action `json:"actions,omitempty"`
}

// Computes the cache key for a stage build.
//
// The base string must identify the base content: the external image
// reference for image-based stages, or the parent stage's own cache key
// for stage-based stages, so that a change anywhere in the ancestor chain
// invalidates every descendant.
func Key(base string, args map[string]string, actions []manifest.Action) (digest.Digest, error) {
	// encoding/json sorts map keys, making the encoding canonical.
	data, err := json.Marshal(keyInput{Base: base, Args: args, Actions: actions})
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	return digest.FromBytes(data), nil
}

// Returns the archive path for a key if an entry exists.
//
// Only an exact key match is ever served.
func (c *Cache) Get(key digest.Digest) (string, bool) {
	path := c.entryPath(key)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Stores the archive at the given path under the key and returns the
// stored path.
//
// The archive is copied to a temporary file in the store and renamed into
// place, so concurrent readers never observe a partial entry.
func (c *Cache) Put(key digest.Digest, archive string) (string, error) {
	dest := c.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(dest), paths.DefaultDirMode); err != nil {
		return "", fmt.Errorf("create cache entry dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "put-*")
	if err != nil {
		return "", fmt.Errorf("create cache temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	src, err := os.Open(archive)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer src.Close()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", fmt.Errorf("copy archive into cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close cache temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("publish cache entry: %w", err)
	}

	slog.Debug("stage cached", "key", key.String(), "path", dest)
	return dest, nil
}

// Returns the store path for a key.
func (c *Cache) entryPath(key digest.Digest) string {
	return filepath.Join(c.dir, key.Algorithm().String(), key.Encoded()+".tar")
}
