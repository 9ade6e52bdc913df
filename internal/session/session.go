// Package session holds the per-build state shared between the extraction
// and rewrite passes: one record per processed HTML document, the set of
// module entry points handed to the bundler, and the virtual module registry
// the bundler consults while compiling.
package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/wayli-app/htmlbld/internal/ident"
)

// Phase tracks where a document record sits in the two-pass protocol. The
// bundler's completion is the only trigger that moves a record past
// AwaitingCompile.
type Phase int

const (
	PhaseExtracted Phase = iota
	PhaseAwaitingCompile
	PhaseRewritten
	PhaseEmitted
)

func (p Phase) String() string {
	switch p {
	case PhaseExtracted:
		return "extracted"
	case PhaseAwaitingCompile:
		return "awaiting-compile"
	case PhaseRewritten:
		return "rewritten"
	case PhaseEmitted:
		return "emitted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// InlineModule records one inline <script type="module"> lifted out of a
// document, in discovery order.
type InlineModule struct {
	// VirtualID is unique across the whole build; it encodes the owning
	// document's key and the module's zero-based index.
	VirtualID string
	// Source is the original script text served to the bundler on load.
	Source string
	// Placeholder is the comment token left in the tree where the script
	// node used to be.
	Placeholder string
}

// Document is the per-input record created by extraction, mutated in place by
// the rewrite pass, and discarded after emission. The tree is never shared
// between documents.
type Document struct {
	// SourcePath is the resolved input path, unique within the session.
	SourcePath string
	// RelPath is SourcePath relative to the build root, slash-separated.
	RelPath string
	// OutputKey is the explicit destination, when the input was keyed.
	OutputKey string
	// Key is the synthesized build-surface key identifying this document.
	Key string

	Tree          *html.Node
	InlineModules []InlineModule
	Phase         Phase
}

// Entry is one module entry point handed to the bundler.
type Entry struct {
	// ID is the module identifier: a root-relative source path for external
	// scripts, or a virtual identifier for inline modules.
	ID string
	// OutputKey names the bundler's output file for this entry.
	OutputKey string
	// Virtual marks entries served from the registry instead of the
	// filesystem.
	Virtual bool
}

// Warning is a recoverable per-node or per-document diagnostic. Warnings are
// logged as they occur and collected for the build result.
type Warning struct {
	Path    string
	Message string
}

// Session owns all build state for a single run. Construct a fresh session
// per build and discard it when the build ends; nothing is process-global.
type Session struct {
	// ID tags this build's log output.
	ID string
	// RootDir is the working root all relative paths resolve against.
	RootDir string

	Synth *ident.Synthesizer

	docs     []*Document
	byPath   map[string]*Document
	entries  []Entry
	entrySet map[string]struct{}
	warnings []Warning
}

// New returns an empty session rooted at rootDir.
func New(rootDir string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		RootDir:  rootDir,
		Synth:    ident.NewSynthesizer(),
		byPath:   make(map[string]*Document),
		entrySet: make(map[string]struct{}),
	}
}

// AddDocument registers a new document record. Exactly one record may exist
// per distinct source path.
func (s *Session) AddDocument(doc *Document) error {
	if _, ok := s.byPath[doc.SourcePath]; ok {
		return fmt.Errorf("duplicate HTML input: %s", doc.SourcePath)
	}
	s.docs = append(s.docs, doc)
	s.byPath[doc.SourcePath] = doc
	return nil
}

// Documents returns the records in extraction order.
func (s *Session) Documents() []*Document {
	return s.docs
}

// AddEntry appends a module entry point, deduplicating by identifier.
func (s *Session) AddEntry(e Entry) {
	if _, ok := s.entrySet[e.ID]; ok {
		return
	}
	s.entrySet[e.ID] = struct{}{}
	s.entries = append(s.entries, e)
}

// Entries returns the entry set in registration order.
func (s *Session) Entries() []Entry {
	return s.entries
}

// HasEntries reports whether any real entry point was discovered.
func (s *Session) HasEntries() bool {
	return len(s.entries) > 0
}

// SealForCompile moves every extracted document into AwaitingCompile. Called
// once all extraction is done and the entry set is final, immediately before
// control passes to the external bundler.
func (s *Session) SealForCompile() {
	for _, doc := range s.docs {
		if doc.Phase == PhaseExtracted {
			doc.Phase = PhaseAwaitingCompile
		}
	}
}

// Warn records a recoverable diagnostic attributed to path.
func (s *Session) Warn(path, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warn().Str("build", s.ID).Str("path", path).Msg(msg)
	s.warnings = append(s.warnings, Warning{Path: path, Message: msg})
}

// Warnings returns the diagnostics collected so far.
func (s *Session) Warnings() []Warning {
	return s.warnings
}

// lookupInline finds the inline module backing a virtual identifier, along
// with the document that owns it. Linear search is fine: it is bounded by the
// build's total inline script count.
func (s *Session) lookupInline(virtualID string) (*InlineModule, *Document, bool) {
	for _, doc := range s.docs {
		for i := range doc.InlineModules {
			if doc.InlineModules[i].VirtualID == virtualID {
				return &doc.InlineModules[i], doc, true
			}
		}
	}
	return nil, nil, false
}
