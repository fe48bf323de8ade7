// Package fs stores objects on the local filesystem.
//
// Each key is hashed into a two-level shard directory holding the payload
// (data) and a JSON sidecar (meta.json) with the object's metadata. Writes
// go to a temp file first and are renamed into place.
package fs

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-store/pkg/simplestore"
)

const (
	backendName = "fs"

	objectsDirName = "objects"
	tempDirName    = ".tmp"
	dataFileName   = "data"
	metaFileName   = "meta.json"

	maxKeyLength = 1024
)

// Backend is a filesystem implementation of the simplestore.ObjectStore interface
type Backend struct {
	mu      sync.RWMutex
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing objects
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	baseDir := filepath.Clean(config.BaseDir)
	for _, dir := range []string{objectsDirName, tempDirName} {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	return &Backend{baseDir: baseDir}, nil
}

// Put streams the reader into a temp file, then commits payload and
// metadata under the key.
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, opts simplestore.PutOptions) (*simplestore.ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	tmp, err := os.Create(filepath.Join(b.baseDir, tempDirName, uuid.NewString()))
	if err != nil {
		return nil, b.storageError(key, "put", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := md5.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, b.storageError(key, "put", err)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = simplestore.DefaultContentType
	}

	info := &simplestore.ObjectInfo{
		Key:            key,
		Size:           size,
		ContentType:    contentType,
		ETag:           hex.EncodeToString(hasher.Sum(nil)),
		UploadedAt:     time.Now().UTC(),
		CustomMetadata: opts.CustomMetadata,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dir := b.objectDir(key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, b.storageError(key, "put", err)
	}
	if err := b.writeMeta(dir, info); err != nil {
		return nil, b.storageError(key, "put", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, dataFileName)); err != nil {
		return nil, b.storageError(key, "put", fmt.Errorf("committing object: %w", err))
	}

	return info, nil
}

// Get opens the object's payload for reading
func (b *Backend) Get(ctx context.Context, key string) (*simplestore.Object, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	dir := b.objectDir(key)
	info, err := b.readMeta(key, filepath.Join(dir, metaFileName))
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(dir, dataFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, simplestore.ErrObjectNotFound
	} else if err != nil {
		return nil, b.storageError(key, "get", err)
	}

	return &simplestore.Object{ObjectInfo: *info, Body: file}, nil
}

// Head retrieves metadata for an object in the filesystem
func (b *Backend) Head(ctx context.Context, key string) (*simplestore.ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.readMeta(key, filepath.Join(b.objectDir(key), metaFileName))
}

// Delete removes the object and prunes empty shard directories
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dir := b.objectDir(key)
	if _, err := os.Stat(filepath.Join(dir, metaFileName)); errors.Is(err, os.ErrNotExist) {
		return simplestore.ErrObjectNotFound
	} else if err != nil {
		return b.storageError(key, "delete", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return b.storageError(key, "delete", err)
	}
	b.cleanupEmptyDirs(dir)
	return nil
}

// List walks every metadata sidecar and returns one page in key order.
// The cursor is the last key of the previous page.
func (b *Backend) List(ctx context.Context, opts simplestore.ListOptions) (*simplestore.ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = simplestore.DefaultListLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var infos []simplestore.ObjectInfo
	root := filepath.Join(b.baseDir, objectsDirName)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || d.Name() != metaFileName {
			return nil
		}

		info, err := decodeMeta(path)
		if err != nil {
			// skip corrupted sidecars
			return nil
		}
		if strings.HasPrefix(info.Key, opts.Prefix) && info.Key > opts.Cursor {
			infos = append(infos, *info)
		}
		return nil
	})
	if err != nil {
		return nil, b.storageError(opts.Prefix, "list", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })

	result := &simplestore.ListResult{Objects: []simplestore.ObjectInfo{}}
	if len(infos) > limit {
		infos = infos[:limit]
		result.Truncated = true
		result.Cursor = infos[limit-1].Key
	}
	result.Objects = append(result.Objects, infos...)
	return result, nil
}

// objectDir maps a key onto its shard directory: objects/ab/cd/<sha256>.
func (b *Backend) objectDir(key string) string {
	sum := sha256.Sum256([]byte(key))
	hash := hex.EncodeToString(sum[:])
	return filepath.Join(b.baseDir, objectsDirName, hash[:2], hash[2:4], hash)
}

func (b *Backend) writeMeta(dir string, info *simplestore.ObjectInfo) error {
	tmp, err := os.Create(filepath.Join(b.baseDir, tempDirName, uuid.NewString()))
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, metaFileName))
}

func (b *Backend) readMeta(key, path string) (*simplestore.ObjectInfo, error) {
	info, err := decodeMeta(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, simplestore.ErrObjectNotFound
	} else if err != nil {
		return nil, b.storageError(key, "head", err)
	}
	return info, nil
}

func decodeMeta(path string) (*simplestore.ObjectInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var info simplestore.ObjectInfo
	if err := json.NewDecoder(f).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &info, nil
}

// cleanupEmptyDirs walks up from the removed object directory and removes
// shard directories until one is not empty.
func (b *Backend) cleanupEmptyDirs(path string) {
	root := filepath.Join(b.baseDir, objectsDirName)
	for parent := filepath.Dir(path); parent != root && strings.HasPrefix(parent, root); parent = filepath.Dir(parent) {
		entries, err := os.ReadDir(parent)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(parent); err != nil {
			return
		}
	}
}

func (b *Backend) storageError(key, op string, err error) error {
	return &simplestore.StorageError{Backend: backendName, Key: key, Op: op, Err: err}
}

// validateKey rejects keys that could not round-trip as a slash separated
// object name.
func validateKey(key string) error {
	invalid := func(reason string) error {
		return simplestore.NewValidationError("key", "Invalid key: "+reason)
	}

	switch {
	case key == "":
		return invalid("key cannot be empty")
	case len(key) > maxKeyLength:
		return invalid("maximal key length exceeded")
	case strings.ContainsRune(key, 0):
		return invalid("null bytes not allowed")
	case strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/"):
		return invalid("key cannot start or end with slash")
	case strings.Contains(key, "//"):
		return invalid("consecutive slashes not allowed")
	}

	for _, segment := range strings.Split(key, "/") {
		if segment == "." || segment == ".." {
			return invalid("relative path segments not allowed")
		}
	}
	return nil
}
