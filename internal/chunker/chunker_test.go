package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxBytes int
		expected []string
	}{
		{
			name:     "empty text",
			text:     "",
			maxBytes: 10,
			expected: nil,
		},
		{
			name:     "fits in one chunk",
			text:     "Hello world",
			maxBytes: 100,
			expected: []string{"Hello world"},
		},
		{
			name:     "exactly max",
			text:     "abcde",
			maxBytes: 5,
			expected: []string{"abcde"},
		},
		{
			name:     "cuts at line break",
			text:     "first line\nsecond line",
			maxBytes: 15,
			expected: []string{"first line\n", "second line"},
		},
		{
			name:     "prefers last line break",
			text:     "a\nb\nccccc",
			maxBytes: 6,
			expected: []string{"a\nb\n", "ccccc"},
		},
		{
			name:     "falls back to space",
			text:     "one two three",
			maxBytes: 9,
			expected: []string{"one two ", "three"},
		},
		{
			name:     "hard cut without separators",
			text:     "abcdefghij",
			maxBytes: 4,
			expected: []string{"abcd", "efgh", "ij"},
		},
		{
			name:     "never splits a rune",
			text:     "ééé",
			maxBytes: 3,
			expected: []string{"é", "é", "é"},
		},
		{
			name:     "rune wider than max",
			text:     "日本",
			maxBytes: 2,
			expected: []string{"日", "本"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Split(tt.text, tt.maxBytes))
		})
	}
}

func TestSplitDefaultMax(t *testing.T) {
	text := strings.Repeat("Este es un artículo de alta calidad.\n", 600)

	chunks := Split(text, 0)

	assert.Greater(t, len(chunks), 1)
	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), DefaultMaxBytes)
		assert.True(t, utf8.ValidString(c))
		assert.True(t, strings.HasSuffix(c, "\n"))
	}
}
