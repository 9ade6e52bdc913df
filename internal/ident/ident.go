// Package ident synthesizes the build-surface identifiers used to hand HTML
// script content to the bundler: output-file keys for entry points, virtual
// identifiers for inline modules, and the placeholder comment tokens left in
// the tree where inline modules were lifted out.
package ident

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// InlinePrefix is the virtual identifier namespace for inline module
	// scripts lifted out of an HTML document.
	InlinePrefix = "virtual:inline/"

	// NoopEntry is the virtual identifier of the placeholder entry injected
	// when a build has no real JS entry points.
	NoopEntry = "virtual:noop.js"

	// Namespace is the esbuild plugin namespace claiming the virtual
	// identifiers above.
	Namespace = "htmlbld-virtual"

	placeholderPrefix = "htmlbld-placeholder "

	hashLen = 8
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Synthesizer produces stable, collision-free output keys for one build.
// It is not safe for concurrent use; a build session owns exactly one.
type Synthesizer struct {
	keys  map[string]string // identifier -> key
	taken map[string]string // key -> identifier
}

// NewSynthesizer returns an empty synthesizer for a fresh build session.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{
		keys:  make(map[string]string),
		taken: make(map[string]string),
	}
}

// Key returns the build-surface key for id: an 8-character base64url content
// hash joined with a sanitized basename. The same identifier always yields
// the same key within a build. When two distinct identifiers hash to the same
// key, a monotonically increasing disambiguator is appended; if even that is
// taken, a timestamp fallback guarantees uniqueness.
func (s *Synthesizer) Key(id string) string {
	if key, ok := s.keys[id]; ok {
		return key
	}

	key := hashKey(id)
	if owner, ok := s.taken[key]; ok && owner != id {
		for n := 1; ; n++ {
			candidate := fmt.Sprintf("%s_%d", key, n)
			if _, ok := s.taken[candidate]; !ok {
				key = candidate
				break
			}
			if n >= 1000 {
				key = fmt.Sprintf("%s_%d", key, time.Now().UnixNano())
				break
			}
		}
	}

	s.keys[id] = key
	s.taken[key] = id
	return key
}

func hashKey(id string) string {
	sum := sha256.Sum256([]byte(id))
	hash := base64.RawURLEncoding.EncodeToString(sum[:])[:hashLen]
	base := sanitizeBase(id)
	if base == "" {
		return hash
	}
	return hash + "-" + base
}

func sanitizeBase(id string) string {
	base := path.Base(strings.TrimSuffix(path.Clean(strings.ReplaceAll(id, "\\", "/")), "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	return unsafeChars.ReplaceAllString(base, "_")
}

// InlineModuleID builds the virtual identifier for the index-th inline module
// of the document identified by docKey. The embedded index keeps identifiers
// unique across documents with identical inline script content.
func InlineModuleID(docKey string, index int) string {
	return fmt.Sprintf("%s%s.%d.js", InlinePrefix, docKey, index)
}

// IsVirtual reports whether id belongs to one of the virtual namespaces this
// build claims from the bundler's resolver.
func IsVirtual(id string) bool {
	return id == NoopEntry || strings.HasPrefix(id, InlinePrefix)
}

// Placeholder builds the comment token marking where the inline module
// identified by virtualID used to live.
func Placeholder(virtualID string) string {
	return placeholderPrefix + virtualID
}

// HasPlaceholderPrefix reports whether a comment claims to be a placeholder,
// whether or not it parses to a valid virtual identifier.
func HasPlaceholderPrefix(comment string) bool {
	return strings.HasPrefix(strings.TrimSpace(comment), strings.TrimSpace(placeholderPrefix))
}

// ParsePlaceholder extracts the virtual identifier from a placeholder comment
// token. It reports false for comments that are not placeholders.
func ParsePlaceholder(comment string) (string, bool) {
	trimmed := strings.TrimSpace(comment)
	if !strings.HasPrefix(trimmed, strings.TrimSpace(placeholderPrefix)) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(trimmed, strings.TrimSpace(placeholderPrefix)))
	if !IsVirtual(id) {
		return "", false
	}
	return id, true
}

// InlineIndex extracts the zero-based sequence index embedded in an inline
// virtual identifier.
func InlineIndex(virtualID string) (int, bool) {
	if !strings.HasPrefix(virtualID, InlinePrefix) {
		return 0, false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(virtualID, InlinePrefix), ".js")
	dot := strings.LastIndexByte(rest, '.')
	if dot < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[dot+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
