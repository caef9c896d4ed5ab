// Package events emits entity lifecycle events. Emission is best-effort:
// failures are logged and never fail the request that triggered them.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Emitter publishes lifecycle events for stored entities.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter. A nil producer disables emission.
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitCreated emits an entity created event.
func (e *Emitter) EmitCreated(ctx context.Context, resource string, entity models.Entity) {
	e.emit(ctx, "entity.created", resource, entity.ID(), entity)
}

// EmitUpdated emits an entity updated event.
func (e *Emitter) EmitUpdated(ctx context.Context, resource string, entity models.Entity) {
	e.emit(ctx, "entity.updated", resource, entity.ID(), entity)
}

// EmitDeleted emits an entity deleted event.
func (e *Emitter) EmitDeleted(ctx context.Context, resource, id string) {
	e.emit(ctx, "entity.deleted", resource, id, nil)
}

func (e *Emitter) emit(ctx context.Context, eventType, resource, id string, entity models.Entity) {
	if e.producer == nil {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emit")
	defer span.End()

	event := &kafka.EntityEvent{
		EventType: eventType,
		Resource:  resource,
		EntityID:  id,
	}
	if entity != nil {
		event.ETag = entity.ETag()
		if data, err := json.Marshal(entity.Data()); err == nil {
			event.Data = data
		}
	}

	if err := e.producer.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
			"resource":   resource,
			"entity_id":  id,
		}).Error("Failed to emit entity event")
	}
}
