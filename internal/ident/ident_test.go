package ident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizerKey(t *testing.T) {
	t.Run("is idempotent within a build", func(t *testing.T) {
		s := NewSynthesizer()
		assert.Equal(t, s.Key("src/app.js"), s.Key("src/app.js"))
	})

	t.Run("distinct identifiers get distinct keys", func(t *testing.T) {
		s := NewSynthesizer()
		assert.NotEqual(t, s.Key("src/app.js"), s.Key("lib/app.js"))
	})

	t.Run("embeds a sanitized basename", func(t *testing.T) {
		s := NewSynthesizer()
		key := s.Key("pages/hello world@2x.html")
		assert.True(t, strings.HasSuffix(key, "-hello_world_2x"), "key %q", key)
	})

	t.Run("key is hash plus basename", func(t *testing.T) {
		s := NewSynthesizer()
		key := s.Key("a/b/main.js")
		assert.True(t, strings.HasSuffix(key, "-main"), "key %q", key)
		assert.Len(t, key, 8+len("-main"))
	})

	t.Run("engineered collision yields two unique keys", func(t *testing.T) {
		s := NewSynthesizer()
		first := s.Key("src/app.js")

		// Force the second identifier onto the first one's hash key.
		s.taken[hashKey("other/thing.js")] = "someone-else"
		second := s.Key("other/thing.js")

		assert.NotEqual(t, first, second)
		assert.NotEqual(t, hashKey("other/thing.js"), second)
		assert.True(t, strings.HasPrefix(second, hashKey("other/thing.js")+"_"))
	})
}

func TestInlineModuleID(t *testing.T) {
	id := InlineModuleID("abc123-page", 2)
	assert.Equal(t, "virtual:inline/abc123-page.2.js", id)
	assert.True(t, IsVirtual(id))

	idx, ok := InlineIndex(id)
	require.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestInlineIndex(t *testing.T) {
	tests := []struct {
		id    string
		index int
		ok    bool
	}{
		{"virtual:inline/doc.0.js", 0, true},
		{"virtual:inline/doc.17.js", 17, true},
		{"virtual:inline/doc.js", 0, false},
		{"virtual:inline/doc.x.js", 0, false},
		{"virtual:noop.js", 0, false},
		{"src/app.js", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			idx, ok := InlineIndex(tt.id)
			if ok != tt.ok || idx != tt.index {
				t.Errorf("InlineIndex(%q) = (%d, %v), want (%d, %v)", tt.id, idx, ok, tt.index, tt.ok)
			}
		})
	}
}

func TestIsVirtual(t *testing.T) {
	assert.True(t, IsVirtual(NoopEntry))
	assert.True(t, IsVirtual("virtual:inline/x.0.js"))
	assert.False(t, IsVirtual("virtual:other.js"))
	assert.False(t, IsVirtual("src/app.js"))
}

func TestPlaceholderRoundTrip(t *testing.T) {
	id := InlineModuleID("doc", 0)
	token := Placeholder(id)

	assert.True(t, HasPlaceholderPrefix(token))

	parsed, ok := ParsePlaceholder(token)
	require.True(t, ok)
	assert.Equal(t, id, parsed)
}

func TestParsePlaceholder(t *testing.T) {
	t.Run("rejects ordinary comments", func(t *testing.T) {
		_, ok := ParsePlaceholder(" just a comment ")
		assert.False(t, ok)
	})

	t.Run("rejects placeholder with invalid identifier", func(t *testing.T) {
		_, ok := ParsePlaceholder("htmlbld-placeholder not-a-virtual-id")
		assert.False(t, ok)
		assert.True(t, HasPlaceholderPrefix("htmlbld-placeholder not-a-virtual-id"))
	})

	t.Run("tolerates surrounding whitespace", func(t *testing.T) {
		token := " " + Placeholder(InlineModuleID("doc", 3)) + " "
		parsed, ok := ParsePlaceholder(token)
		require.True(t, ok)
		assert.Equal(t, InlineModuleID("doc", 3), parsed)
	})
}
