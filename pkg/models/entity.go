// Package models defines the immutable, versioned entity records stored by
// the service. Every entity wraps (id, data, etag, metadata); mutations
// return new values, nothing is ever changed in place.
package models

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/merge"
)

// MaxIDLength is the upper bound of the entity id grammar.
const MaxIDLength = 128

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// Metadata describes the stored version of an entity. It is produced by the
// storage adapter only; clients never construct it.
type Metadata struct {
	ETag         string     `json:"etag,omitempty"`
	Size         int64      `json:"size,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// Entity is the closed set of stored record variants (generic, user, game).
// An entity with an empty etag has never been persisted.
type Entity interface {
	ID() string
	Data() any
	ETag() string
	Metadata() *Metadata

	// Merge applies a deep-merge partial update to the data and re-validates
	// the result. The receiver's etag and metadata are carried forward
	// unchanged; the repository overwrites them after persistence.
	Merge(partial any) (Entity, error)

	WithETag(etag string) Entity
	WithMetadata(meta *Metadata) Entity

	// MarshalData serializes the data payload for storage.
	MarshalData() ([]byte, error)
}

// Factory constructs an entity variant from an id and decoded JSON data,
// validating both. Repositories are configured with the factory of the
// resource type they store.
type Factory func(id string, data any) (Entity, error)

// base holds the fields shared by every entity variant.
type base struct {
	id   string
	data any
	etag string
	meta *Metadata
}

func newBase(id string, data any) (base, error) {
	if !idPattern.MatchString(id) {
		return base{}, errs.NewValidation("id", "id must match [A-Za-z0-9._-] and be 1 to %d characters, got '%s'", MaxIDLength, id)
	}
	return base{id: id, data: merge.Clone(data)}, nil
}

func (b base) ID() string { return b.id }

// Data returns a deep copy of the payload so holders cannot alias the
// entity's internal state.
func (b base) Data() any { return merge.Clone(b.data) }

func (b base) ETag() string { return b.etag }

func (b base) Metadata() *Metadata {
	if b.meta == nil {
		return nil
	}
	copied := *b.meta
	return &copied
}

func (b base) MarshalData() ([]byte, error) {
	return json.Marshal(b.data)
}

func (b base) withETag(etag string) base {
	b.etag = etag
	return b
}

func (b base) withMetadata(meta *Metadata) base {
	if meta == nil {
		b.meta = nil
		return b
	}
	copied := *meta
	b.meta = &copied
	return b
}

func (b base) mergeData(partial any) base {
	b.data = merge.Merge(b.data, partial)
	return b
}
