package entity

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repository "github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/pkg/blobstore/memory"
	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
)

func newTestService(t *testing.T, factory models.Factory) *Service {
	t.Helper()

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	repo := repository.NewRepository(memory.New(), factory, repository.Config{Namespaces: []string{"entities"}}, logger)
	emitter := events.NewEmitter(nil, logger)
	return NewService(repo, factory, emitter, "entities", logger)
}

func TestService_CreateGetDelete(t *testing.T) {
	svc := newTestService(t, models.GenericFactory)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alpha", map[string]any{"k": "v"}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ETag())

	// Create defaults to create-only.
	_, err = svc.Create(ctx, "alpha", map[string]any{"k": "v2"}, "")
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))

	got, err := svc.Get(ctx, "alpha", "")
	require.NoError(t, err)
	assert.Equal(t, created.ETag(), got.ETag())

	// Conditional read against the current version short-circuits.
	_, err = svc.Get(ctx, "alpha", created.ETag())
	require.Error(t, err)
	assert.True(t, errs.IsNotModified(err))

	meta, err := svc.GetMetadata(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, created.ETag(), meta.ETag)

	require.NoError(t, svc.Delete(ctx, "alpha", created.ETag()))

	_, err = svc.Get(ctx, "alpha", "")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))

	_, err = svc.GetMetadata(ctx, "alpha")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestService_Replace(t *testing.T) {
	svc := newTestService(t, models.GenericFactory)
	ctx := context.Background()

	// Replace without ifMatch upserts.
	v1, err := svc.Replace(ctx, "alpha", map[string]any{"v": float64(1)}, "")
	require.NoError(t, err)

	v2, err := svc.Replace(ctx, "alpha", map[string]any{"v": float64(2)}, v1.ETag())
	require.NoError(t, err)
	assert.NotEqual(t, v1.ETag(), v2.ETag())

	_, err = svc.Replace(ctx, "alpha", map[string]any{"v": float64(3)}, v1.ETag())
	require.Error(t, err)
	assert.True(t, errs.IsPreconditionFailed(err))

	// ifMatch against an absent entity never creates.
	_, err = svc.Replace(ctx, "ghost", map[string]any{}, v2.ETag())
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestService_Merge(t *testing.T) {
	svc := newTestService(t, models.GenericFactory)
	ctx := context.Background()

	_, err := svc.Merge(ctx, "ghost", map[string]any{"k": "v"}, "")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))

	created, err := svc.Create(ctx, "alpha", map[string]any{
		"keep":   "yes",
		"nested": map[string]any{"a": float64(1)},
	}, "")
	require.NoError(t, err)

	merged, err := svc.Merge(ctx, "alpha", map[string]any{
		"nested": map[string]any{"b": float64(2)},
	}, created.ETag())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"keep":   "yes",
		"nested": map[string]any{"a": float64(1), "b": float64(2)},
	}, merged.Data())
	assert.NotEqual(t, created.ETag(), merged.ETag())

	_, err = svc.Merge(ctx, "alpha", map[string]any{"x": true}, created.ETag())
	require.Error(t, err)
	assert.True(t, errs.IsPreconditionFailed(err))
}

func TestService_Transform_GameFlow(t *testing.T) {
	svc := newTestService(t, models.GameFactory)
	ctx := context.Background()

	created, err := svc.Create(ctx, "game-1", map[string]any{
		"type":       "chess",
		"usersIds":   []any{"user-1"},
		"rounds":     []any{},
		"isFinished": false,
	}, "")
	require.NoError(t, err)

	addRound := func(e models.Entity) (models.Entity, error) {
		return e.(*models.GameEntity).AddRound(models.Round{ID: "r1"})
	}
	withRound, err := svc.Transform(ctx, "game-1", "", addRound)
	require.NoError(t, err)
	assert.NotEqual(t, created.ETag(), withRound.ETag())
	require.Len(t, withRound.(*models.GameEntity).Rounds(), 1)

	// A stale ifMatch fails before the write.
	_, err = svc.Transform(ctx, "game-1", created.ETag(), addRound)
	require.Error(t, err)
	assert.True(t, errs.IsPreconditionFailed(err))

	// Transform errors from the entity propagate untouched.
	finish := func(e models.Entity) (models.Entity, error) {
		return e.(*models.GameEntity).Finish()
	}
	finished, err := svc.Transform(ctx, "game-1", "", finish)
	require.NoError(t, err)
	assert.True(t, finished.(*models.GameEntity).IsFinished())

	_, err = svc.Transform(ctx, "game-1", "", finish)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	_, err = svc.Transform(ctx, "ghost", "", finish)
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestService_List(t *testing.T) {
	svc := newTestService(t, models.GenericFactory)
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		_, err := svc.Create(ctx, id, map[string]any{}, "")
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, "", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Refs, 3)
	assert.Equal(t, "a", page.Refs[0].ID)
	assert.Equal(t, "c", page.Refs[2].ID)
}

func TestService_Create_ValidationBeforeWrite(t *testing.T) {
	svc := newTestService(t, models.UserFactory)
	ctx := context.Background()

	_, err := svc.Create(ctx, "user-1", map[string]any{"name": "X"}, "")
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	_, err = svc.Get(ctx, "user-1", "")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}
