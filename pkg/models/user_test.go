package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/errs"
)

func validUserData() map[string]any {
	return map[string]any{"name": "Alex", "externalId": float64(42)}
}

func TestNewUserEntity(t *testing.T) {
	u, err := NewUserEntity("user-1", validUserData())
	require.NoError(t, err)
	assert.Equal(t, "Alex", u.Name())
	assert.Equal(t, int64(42), u.ExternalID())
}

func TestNewUserEntity_Validation(t *testing.T) {
	tests := []struct {
		name  string
		data  any
		field string
	}{
		{
			name:  "data not an object",
			data:  []any{"nope"},
			field: "data",
		},
		{
			name:  "missing name",
			data:  map[string]any{"externalId": float64(1)},
			field: "name",
		},
		{
			name:  "name not a string",
			data:  map[string]any{"name": float64(7), "externalId": float64(1)},
			field: "name",
		},
		{
			name:  "name too short",
			data:  map[string]any{"name": "A", "externalId": float64(1)},
			field: "name",
		},
		{
			name:  "name too long",
			data:  map[string]any{"name": strings.Repeat("x", 101), "externalId": float64(1)},
			field: "name",
		},
		{
			name:  "missing externalId",
			data:  map[string]any{"name": "Alex"},
			field: "externalId",
		},
		{
			name:  "externalId not a number",
			data:  map[string]any{"name": "Alex", "externalId": "42"},
			field: "externalId",
		},
		{
			name:  "externalId not an integer",
			data:  map[string]any{"name": "Alex", "externalId": 1.5},
			field: "externalId",
		},
		{
			name:  "externalId zero",
			data:  map[string]any{"name": "Alex", "externalId": float64(0)},
			field: "externalId",
		},
		{
			name:  "externalId negative",
			data:  map[string]any{"name": "Alex", "externalId": float64(-3)},
			field: "externalId",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUserEntity("user-1", tt.data)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err))

			var domainErr *errs.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, tt.field, domainErr.Field)
		})
	}
}

func TestUserEntity_Merge(t *testing.T) {
	u, err := NewUserEntity("user-1", validUserData())
	require.NoError(t, err)

	merged, err := u.Merge(map[string]any{"name": "Blake"})
	require.NoError(t, err)
	assert.Equal(t, "Blake", merged.(*UserEntity).Name())
	assert.Equal(t, int64(42), merged.(*UserEntity).ExternalID())

	// A merge that breaks the schema is rejected, receiver untouched.
	_, err = u.Merge(map[string]any{"externalId": "oops"})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, "Alex", u.Name())
}
