// Package memory implements an in-memory blob store used by unit tests and
// single-process development runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/blobstore"
)

type object struct {
	data []byte
	meta blobstore.Meta
}

// Store keeps blobs in a mutex-guarded map. ETags are uuids minted per write.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		objects: make(map[string]object),
		now:     time.Now,
	}
}

func (s *Store) Get(_ context.Context, key, ifNoneMatch string) (*blobstore.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.objects[key]
	if !ok {
		return nil, nil
	}
	if ifNoneMatch != "" && strings.Trim(ifNoneMatch, `"`) == stored.meta.ETag {
		return nil, &blobstore.NotModifiedError{ETag: stored.meta.ETag}
	}

	data := make([]byte, len(stored.data))
	copy(data, stored.data)
	return &blobstore.Object{Data: data, Meta: stored.meta}, nil
}

func (s *Store) Put(_ context.Context, key string, data []byte) (blobstore.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)

	meta := blobstore.Meta{
		Key:          key,
		ETag:         uuid.New().String(),
		Size:         int64(len(data)),
		LastModified: s.now(),
	}
	s.objects[key] = object{data: stored, meta: meta}
	return meta, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	return nil
}

func (s *Store) Head(_ context.Context, key string) (*blobstore.Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.objects[key]
	if !ok {
		return nil, nil
	}
	meta := stored.meta
	return &meta, nil
}

func (s *Store) List(_ context.Context, prefix, token string, limit int) (blobstore.ListPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) && key > token {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	page := blobstore.ListPage{}
	for _, key := range keys {
		if limit > 0 && len(page.Objects) == limit {
			page.NextToken = page.Objects[len(page.Objects)-1].Key
			break
		}
		page.Objects = append(page.Objects, s.objects[key].meta)
	}
	return page, nil
}

func (s *Store) Ping(context.Context) error { return nil }
