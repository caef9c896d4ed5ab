package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteETag(t *testing.T) {
	tests := []struct {
		name     string
		etag     string
		expected string
	}{
		{name: "bare value", etag: "abc123", expected: `"abc123"`},
		{name: "already quoted", etag: `"abc123"`, expected: `"abc123"`},
		{name: "weak validator", etag: `W/"abc123"`, expected: `"abc123"`},
		{name: "weak unquoted", etag: "W/abc123", expected: `"abc123"`},
		{name: "wildcard", etag: "*", expected: `"*"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, quoteETag(tt.etag))
		})
	}
}

func TestUnquoteETag(t *testing.T) {
	tests := []struct {
		name     string
		etag     string
		expected string
	}{
		{name: "quoted", etag: `"abc123"`, expected: "abc123"},
		{name: "bare", etag: "abc123", expected: "abc123"},
		{name: "weak validator", etag: `W/"abc123"`, expected: "abc123"},
		{name: "empty", etag: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, unquoteETag(tt.etag))
		})
	}
}
