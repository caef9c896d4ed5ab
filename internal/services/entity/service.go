// Package entity implements the operations exposed over HTTP for one
// resource type: reads, conditional writes, deep-merge updates, and the
// read-modify-write transforms used by game actions.
package entity

import (
	"context"

	"github.com/Gobusters/ectologger"

	repository "github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Service wires one entity variant's repository to its lifecycle events.
type Service struct {
	repo     *repository.Repository
	factory  models.Factory
	emitter  *events.Emitter
	resource string
	logger   ectologger.Logger
}

// NewService creates the service for one resource type. The resource name
// tags emitted events.
func NewService(repo *repository.Repository, factory models.Factory, emitter *events.Emitter, resource string, logger ectologger.Logger) *Service {
	return &Service{
		repo:     repo,
		factory:  factory,
		emitter:  emitter,
		resource: resource,
		logger:   logger,
	}
}

// Get loads the entity. Absence is a NotFound error at this layer; a matched
// ifNoneMatch surfaces as errs.KindNotModified.
func (s *Service) Get(ctx context.Context, id, ifNoneMatch string) (models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Service.Get")
	defer span.End()

	e, err := s.repo.FindByName(ctx, id, repository.GetOptions{IfNoneMatch: ifNoneMatch})
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errs.NewNotFound(id)
	}
	return e, nil
}

// GetMetadata returns the stored version metadata without the payload.
func (s *Service) GetMetadata(ctx context.Context, id string) (*models.Metadata, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Service.GetMetadata")
	defer span.End()

	meta, err := s.repo.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, errs.NewNotFound(id)
	}
	return meta, nil
}

// List pages through entity refs whose id starts with prefix.
func (s *Service) List(ctx context.Context, prefix string, limit int, cursor string) (repository.Page, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Service.List")
	defer span.End()

	return s.repo.FindAll(ctx, prefix, limit, cursor)
}

// Create stores a new entity. Creation is create-only by default; callers
// may pass a different ifNoneMatch to override, but there is no unconditional
// create.
func (s *Service) Create(ctx context.Context, id string, data any, ifNoneMatch string) (models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Service.Create")
	defer span.End()

	e, err := s.factory(id, data)
	if err != nil {
		return nil, err
	}

	if ifNoneMatch == "" {
		ifNoneMatch = "*"
	}
	saved, err := s.repo.Save(ctx, e, repository.SaveOptions{IfNoneMatch: ifNoneMatch})
	if err != nil {
		return nil, err
	}

	s.emitter.EmitCreated(ctx, s.resource, saved)
	return saved, nil
}

// Replace stores the full payload under the id, creating it when absent.
// A supplied ifMatch is forwarded verbatim; against an absent entity it
// fails NotFound rather than creating.
func (s *Service) Replace(ctx context.Context, id string, data any, ifMatch string) (models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Service.Replace")
	defer span.End()

	e, err := s.factory(id, data)
	if err != nil {
		return nil, err
	}

	saved, err := s.repo.Save(ctx, e, repository.SaveOptions{IfMatch: ifMatch})
	if err != nil {
		return nil, err
	}

	s.emitter.EmitUpdated(ctx, s.resource, saved)
	return saved, nil
}

// Merge deep-merges the partial payload into the stored entity. The entity
// must exist. With no ifMatch the write is unconditional, which means a
// concurrent write between the read and the write here can be overwritten;
// callers wanting lost-update protection supply ifMatch.
func (s *Service) Merge(ctx context.Context, id string, partial any, ifMatch string) (models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Service.Merge")
	defer span.End()

	current, err := s.repo.FindByName(ctx, id, repository.GetOptions{})
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, errs.NewNotFound(id)
	}

	merged, err := current.Merge(partial)
	if err != nil {
		return nil, err
	}

	saved, err := s.repo.Save(ctx, merged, repository.SaveOptions{IfMatch: ifMatch})
	if err != nil {
		return nil, err
	}

	s.emitter.EmitUpdated(ctx, s.resource, saved)
	return saved, nil
}

// Delete removes the entity, gated on ifMatch when supplied.
func (s *Service) Delete(ctx context.Context, id, ifMatch string) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Service.Delete")
	defer span.End()

	if err := s.repo.Delete(ctx, id, repository.DeleteOptions{IfMatch: ifMatch}); err != nil {
		return err
	}

	s.emitter.EmitDeleted(ctx, s.resource, id)
	return nil
}

// Transform loads the entity, applies fn, and persists the result. With no
// client ifMatch the write is gated on the etag observed by the read, so a
// concurrent write between read and write fails the precondition instead of
// being silently overwritten.
func (s *Service) Transform(ctx context.Context, id, ifMatch string, fn func(models.Entity) (models.Entity, error)) (models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Service.Transform")
	defer span.End()

	current, err := s.repo.FindByName(ctx, id, repository.GetOptions{})
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, errs.NewNotFound(id)
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	if ifMatch == "" {
		ifMatch = current.ETag()
	}
	saved, err := s.repo.Save(ctx, next, repository.SaveOptions{IfMatch: ifMatch})
	if err != nil {
		return nil, err
	}

	s.emitter.EmitUpdated(ctx, s.resource, saved)
	return saved, nil
}
