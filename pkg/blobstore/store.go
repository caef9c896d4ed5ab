// Package blobstore defines the key-value blob storage port the entity
// repositories are built on. Every operation is individually atomic, but the
// backend offers no conditional write spanning a read and a write; the one
// precondition a backend can enforce natively is the conditional GET.
package blobstore

import (
	"context"
	"fmt"
	"time"
)

// Meta describes a stored blob.
type Meta struct {
	Key          string
	ETag         string
	Size         int64
	LastModified time.Time
}

// Object is a blob together with its metadata.
type Object struct {
	Data []byte
	Meta Meta
}

// ListPage is one page of keys under a prefix. NextToken is non-empty when
// the listing was truncated.
type ListPage struct {
	Objects   []Meta
	NextToken string
}

// NotModifiedError reports that a conditional Get matched the caller's etag.
type NotModifiedError struct {
	ETag string
}

func (e *NotModifiedError) Error() string {
	return fmt.Sprintf("blob version '%s' not modified", e.ETag)
}

// Store is the backend contract. Keys live in a flat namespace; prefixes are
// plain string prefixes of keys.
type Store interface {
	// Get returns (nil, nil) when the key does not exist. When ifNoneMatch is
	// non-empty and matches the stored etag, Get returns *NotModifiedError.
	Get(ctx context.Context, key, ifNoneMatch string) (*Object, error)

	// Put writes the blob unconditionally and returns the metadata of the
	// stored version. The returned etag is the only authority on the version
	// that was written.
	Put(ctx context.Context, key string, data []byte) (Meta, error)

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Head returns (nil, nil) when the key does not exist.
	Head(ctx context.Context, key string) (*Meta, error)

	// List enumerates keys under prefix, resuming from token when non-empty.
	List(ctx context.Context, prefix, token string, limit int) (ListPage, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}
