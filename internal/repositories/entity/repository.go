// Package entity implements entity persistence over the blob store port,
// including the conditional-write protocol that approximates compare-and-swap
// on a backend without native conditional writes.
package entity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/blobstore"
	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const keySuffix = ".json"

// SaveOptions carries the write preconditions. IfNoneMatch "*" means
// create-only; any other non-empty value fails the write when the stored
// etag still matches it. IfMatch gates the write on the stored etag.
type SaveOptions struct {
	IfMatch     string
	IfNoneMatch string
}

// GetOptions carries the read precondition.
type GetOptions struct {
	IfNoneMatch string
}

// DeleteOptions gates the delete on the stored etag when IfMatch is set.
type DeleteOptions struct {
	IfMatch string
}

// Ref is a listing entry: an id plus its stored version metadata.
type Ref struct {
	ID       string
	Metadata models.Metadata
}

// Page is one page of listing results. NextCursor is non-empty when any
// underlying location reported truncation.
type Page struct {
	Refs       []Ref
	NextCursor string
}

// Config holds the repository settings for one resource type.
type Config struct {
	// Namespaces are the storage locations holding this resource type, in
	// precedence order. Writes and deletes of new state go to the first;
	// reads and listings consult all of them.
	Namespaces []string

	// MaxPayloadBytes is the serialized-data ceiling enforced before any
	// network write.
	MaxPayloadBytes int64
}

// Repository stores one entity variant in the blob store.
//
// The backend cannot enforce if-match/if-none-match atomically on writes, so
// both are implemented as probe-then-act: read current metadata, decide,
// then write. A concurrent writer can interleave between the probe and the
// write; that race is an accepted limitation of this design, surfaced to
// callers as stale-etag failures on their next conditional request rather
// than hidden behind retries.
type Repository struct {
	store           blobstore.Store
	factory         models.Factory
	namespaces      []string
	maxPayloadBytes int64
	logger          ectologger.Logger
}

// NewRepository creates a repository for one resource type.
func NewRepository(store blobstore.Store, factory models.Factory, cfg Config, logger ectologger.Logger) *Repository {
	return &Repository{
		store:           store,
		factory:         factory,
		namespaces:      cfg.Namespaces,
		maxPayloadBytes: cfg.MaxPayloadBytes,
		logger:          logger,
	}
}

// Save persists the entity, enforcing the requested precondition, and
// returns a copy carrying the etag and metadata minted by the write. The
// write response is the only version authority; the probe's etag may be
// stale the instant after the probe.
func (r *Repository) Save(ctx context.Context, e models.Entity, opts SaveOptions) (models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Save")
	defer span.End()

	data, err := e.MarshalData()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize entity '%s': %w", e.ID(), err)
	}
	if r.maxPayloadBytes > 0 && int64(len(data)) > r.maxPayloadBytes {
		return nil, errs.NewPayloadTooLarge(int64(len(data)), r.maxPayloadBytes)
	}

	switch {
	case opts.IfNoneMatch == "*":
		current, err := r.head(ctx, e.ID())
		if err != nil {
			return nil, err
		}
		if current != nil {
			return nil, errs.NewConflict(e.ID())
		}

	case opts.IfNoneMatch != "":
		current, err := r.head(ctx, e.ID())
		if err != nil {
			return nil, err
		}
		if current != nil && current.ETag == trimETag(opts.IfNoneMatch) {
			return nil, errs.NewPreconditionFailed(trimETag(opts.IfNoneMatch), current.ETag)
		}

	case opts.IfMatch != "":
		current, err := r.head(ctx, e.ID())
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, errs.NewNotFound(e.ID())
		}
		if current.ETag != trimETag(opts.IfMatch) {
			return nil, errs.NewPreconditionFailed(trimETag(opts.IfMatch), current.ETag)
		}
	}

	written, err := r.store.Put(ctx, r.key(r.namespaces[0], e.ID()), data)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", e.ID()).Error("Failed to write entity")
		return nil, err
	}

	return r.withMeta(e, written), nil
}

// FindByName loads the entity, consulting namespaces in precedence order.
// Returns (nil, nil) when no location holds the id; absence is a valid
// outcome here, the service decides whether it is an error. A matched
// IfNoneMatch surfaces as errs.KindNotModified, the one precondition the
// backend enforces atomically.
func (r *Repository) FindByName(ctx context.Context, id string, opts GetOptions) (models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.FindByName")
	defer span.End()

	for _, namespace := range r.namespaces {
		obj, err := r.store.Get(ctx, r.key(namespace, id), opts.IfNoneMatch)
		if err != nil {
			var notModified *blobstore.NotModifiedError
			if errors.As(err, &notModified) {
				return nil, errs.NewNotModified(notModified.ETag)
			}
			r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to read entity")
			return nil, err
		}
		if obj == nil {
			continue
		}

		var data any
		if err := json.Unmarshal(obj.Data, &data); err != nil {
			return nil, fmt.Errorf("stored entity '%s' is not valid JSON: %w", id, err)
		}
		e, err := r.factory(id, data)
		if err != nil {
			return nil, err
		}
		return r.withMeta(e, obj.Meta), nil
	}

	return nil, nil
}

// GetMetadata returns the stored version metadata, or nil when absent.
func (r *Repository) GetMetadata(ctx context.Context, id string) (*models.Metadata, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.GetMetadata")
	defer span.End()

	meta, err := r.head(ctx, id)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, nil
	}
	lastModified := meta.LastModified
	return &models.Metadata{ETag: meta.ETag, Size: meta.Size, LastModified: &lastModified}, nil
}

// Delete removes the entity. The backend's delete does not fail on a missing
// key, so existence is probed explicitly; absence is NotFound, and a
// supplied IfMatch is compared against the highest-precedence copy the same
// way Save compares it. Every namespace holding the id is deleted, otherwise
// a lower-precedence copy would resurface on the next read.
func (r *Repository) Delete(ctx context.Context, id string, opts DeleteOptions) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Delete")
	defer span.End()

	var current *blobstore.Meta
	var keys []string
	for _, namespace := range r.namespaces {
		meta, err := r.store.Head(ctx, r.key(namespace, id))
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to probe entity metadata")
			return err
		}
		if meta == nil {
			continue
		}
		if current == nil {
			current = meta
		}
		keys = append(keys, r.key(namespace, id))
	}
	if current == nil {
		return errs.NewNotFound(id)
	}
	if opts.IfMatch != "" && current.ETag != trimETag(opts.IfMatch) {
		return errs.NewPreconditionFailed(trimETag(opts.IfMatch), current.ETag)
	}

	for _, key := range keys {
		if err := r.store.Delete(ctx, key); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to delete entity")
			return err
		}
	}
	return nil
}

// listCursor is the opaque continuation token: one location's backend token.
// With independently paginated locations a resumed listing can under- or
// over-return around page boundaries; only the named location resumes
// exactly. Known limitation, not corrected here.
type listCursor struct {
	Namespace string `json:"ns"`
	Token     string `json:"t"`
}

// FindAll lists entity refs whose id starts with idPrefix, querying every
// namespace in parallel, de-duplicating by id (namespace precedence order
// wins) and sorting by id ascending for deterministic output.
func (r *Repository) FindAll(ctx context.Context, idPrefix string, limit int, cursor string) (Page, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.FindAll")
	defer span.End()

	cur, err := decodeCursor(cursor)
	if err != nil {
		return Page{}, err
	}

	pages := make([]blobstore.ListPage, len(r.namespaces))
	listErrs := make([]error, len(r.namespaces))

	var wg sync.WaitGroup
	for i, namespace := range r.namespaces {
		wg.Add(1)
		go func(i int, namespace string) {
			defer wg.Done()
			token := ""
			if cur != nil && cur.Namespace == namespace {
				token = cur.Token
			}
			pages[i], listErrs[i] = r.store.List(ctx, namespace+"/"+idPrefix, token, limit)
		}(i, namespace)
	}
	wg.Wait()

	for i, listErr := range listErrs {
		if listErr != nil {
			r.logger.WithContext(ctx).WithError(listErr).WithField("namespace", r.namespaces[i]).Error("Failed to list entities")
			return Page{}, listErr
		}
	}

	seen := make(map[string]struct{})
	result := Page{}
	for i, page := range pages {
		for _, meta := range page.Objects {
			id, ok := r.idFromKey(r.namespaces[i], meta.Key)
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			lastModified := meta.LastModified
			result.Refs = append(result.Refs, Ref{
				ID:       id,
				Metadata: models.Metadata{ETag: meta.ETag, Size: meta.Size, LastModified: &lastModified},
			})
		}
		if page.NextToken != "" && result.NextCursor == "" {
			result.NextCursor = encodeCursor(listCursor{Namespace: r.namespaces[i], Token: page.NextToken})
		}
	}

	sort.Slice(result.Refs, func(i, j int) bool { return result.Refs[i].ID < result.Refs[j].ID })
	return result, nil
}

// head probes namespaces in precedence order and reports the first hit.
func (r *Repository) head(ctx context.Context, id string) (*blobstore.Meta, error) {
	for _, namespace := range r.namespaces {
		meta, err := r.store.Head(ctx, r.key(namespace, id))
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to probe entity metadata")
			return nil, err
		}
		if meta != nil {
			return meta, nil
		}
	}
	return nil, nil
}

func (r *Repository) withMeta(e models.Entity, meta blobstore.Meta) models.Entity {
	lastModified := meta.LastModified
	return e.WithETag(meta.ETag).WithMetadata(&models.Metadata{
		ETag:         meta.ETag,
		Size:         meta.Size,
		LastModified: &lastModified,
	})
}

func (r *Repository) key(namespace, id string) string {
	return namespace + "/" + id + keySuffix
}

func (r *Repository) idFromKey(namespace, key string) (string, bool) {
	trimmed := strings.TrimPrefix(key, namespace+"/")
	if trimmed == key || !strings.HasSuffix(trimmed, keySuffix) {
		return "", false
	}
	id := strings.TrimSuffix(trimmed, keySuffix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func encodeCursor(cur listCursor) string {
	raw, _ := json.Marshal(cur)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(cursor string) (*listCursor, error) {
	if cursor == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, errs.NewValidation("cursor", "cursor is not a valid continuation token")
	}
	var cur listCursor
	if err := json.Unmarshal(raw, &cur); err != nil {
		return nil, errs.NewValidation("cursor", "cursor is not a valid continuation token")
	}
	return &cur, nil
}

// trimETag strips the quotes and weak-validator prefix so comparisons are
// quote-insensitive.
func trimETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	return strings.Trim(etag, `"`)
}
