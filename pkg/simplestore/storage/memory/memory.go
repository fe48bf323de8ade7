package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-store/pkg/simplestore"
)

const backendName = "memory"

type entry struct {
	data []byte
	info simplestore.ObjectInfo
}

// Backend is an in-memory implementation of the simplestore.ObjectStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]*entry
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]*entry),
	}
}

// Put stores a copy of the reader's bytes, replacing any existing object
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, opts simplestore.PutOptions) (*simplestore.ObjectInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &simplestore.StorageError{Backend: backendName, Key: key, Op: "put", Err: err}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = simplestore.DefaultContentType
	}

	sum := md5.Sum(data)
	info := simplestore.ObjectInfo{
		Key:            key,
		Size:           int64(len(data)),
		ContentType:    contentType,
		ETag:           hex.EncodeToString(sum[:]),
		UploadedAt:     time.Now().UTC(),
		CustomMetadata: copyMetadata(opts.CustomMetadata),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = &entry{data: data, info: info}
	return cloneInfo(info), nil
}

// Get returns the object with a reader over its bytes
func (b *Backend) Get(ctx context.Context, key string) (*simplestore.Object, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, exists := b.objects[key]
	if !exists {
		return nil, simplestore.ErrObjectNotFound
	}

	return &simplestore.Object{
		ObjectInfo: *cloneInfo(e.info),
		Body:       io.NopCloser(bytes.NewReader(e.data)),
	}, nil
}

// Head retrieves metadata for an object in memory
func (b *Backend) Head(ctx context.Context, key string) (*simplestore.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, exists := b.objects[key]
	if !exists {
		return nil, simplestore.ErrObjectNotFound
	}
	return cloneInfo(e.info), nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return simplestore.ErrObjectNotFound
	}

	delete(b.objects, key)
	return nil
}

// List returns objects in key order. The cursor is the last key of the
// previous page.
func (b *Backend) List(ctx context.Context, opts simplestore.ListOptions) (*simplestore.ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = simplestore.DefaultListLimit
	}

	b.mu.RLock()
	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		if strings.HasPrefix(key, opts.Prefix) && key > opts.Cursor {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	result := &simplestore.ListResult{Objects: []simplestore.ObjectInfo{}}
	for _, key := range keys {
		if len(result.Objects) == limit {
			result.Truncated = true
			break
		}
		result.Objects = append(result.Objects, *cloneInfo(b.objects[key].info))
	}
	b.mu.RUnlock()

	if result.Truncated {
		result.Cursor = result.Objects[len(result.Objects)-1].Key
	}
	return result, nil
}

func cloneInfo(info simplestore.ObjectInfo) *simplestore.ObjectInfo {
	info.CustomMetadata = copyMetadata(info.CustomMetadata)
	return &info
}

func copyMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
