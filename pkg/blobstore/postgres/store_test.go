package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		expected string
	}{
		{name: "plain", prefix: "entities/user-1", expected: "entities/user-1"},
		{name: "underscore is literal", prefix: "entities/user_1", expected: `entities/user\_1`},
		{name: "percent is literal", prefix: "entities/100%", expected: `entities/100\%`},
		{name: "backslash is literal", prefix: `entities\x`, expected: `entities\\x`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, escapeLike(tt.prefix))
		})
	}
}

func TestTrimETag(t *testing.T) {
	assert.Equal(t, "abc123", trimETag(`"abc123"`))
	assert.Equal(t, "abc123", trimETag(`W/"abc123"`))
	assert.Equal(t, "abc123", trimETag("abc123"))
}
