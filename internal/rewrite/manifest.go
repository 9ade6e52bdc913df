package rewrite

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/wayli-app/htmlbld/internal/ident"
)

// Metafile represents the esbuild metafile JSON structure.
type Metafile struct {
	Inputs  map[string]MetafileInput  `json:"inputs"`
	Outputs map[string]MetafileOutput `json:"outputs"`
}

// MetafileInput represents an input file in the metafile.
type MetafileInput struct {
	Bytes   int              `json:"bytes"`
	Imports []MetafileImport `json:"imports"`
	Format  string           `json:"format,omitempty"`
}

// MetafileImport represents an import in the metafile.
type MetafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
}

// MetafileOutput represents an output file in the metafile.
type MetafileOutput struct {
	Bytes      int                     `json:"bytes"`
	Inputs     map[string]InputContrib `json:"inputs"`
	Imports    []MetafileImport        `json:"imports"`
	Exports    []string                `json:"exports"`
	EntryPoint string                  `json:"entryPoint,omitempty"`
	CSSBundle  string                  `json:"cssBundle,omitempty"`
}

// InputContrib represents the contribution of an input to an output.
type InputContrib struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// Chunk is one bundler output file together with the module identifiers it
// answers for: its facade entry point and every input it contains.
type Chunk struct {
	// File is the output path relative to the build working root.
	File string
	// EntryPoint is the facade module identifier, when the chunk has one.
	EntryPoint string
	// Inputs are the module identifiers bundled into this chunk.
	Inputs []string
}

// Manifest maps module identifiers to the chunks the bundler produced for
// them. It exists only after the external compile phase finishes.
type Manifest struct {
	// OutDir is the bundler output directory relative to the working root.
	OutDir string

	chunks []Chunk
	byID   map[string]*Chunk
}

// ParseManifest decodes the bundler's metafile into a chunk manifest. Only
// JS outputs participate in module lookup; CSS and sourcemap outputs carry no
// facade entries.
func ParseManifest(metafile, outDir string) (*Manifest, error) {
	var meta Metafile
	if err := json.Unmarshal([]byte(metafile), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}

	m := &Manifest{OutDir: path.Clean(outDir), byID: make(map[string]*Chunk)}
	for file, out := range meta.Outputs {
		if !strings.HasSuffix(file, ".js") && !strings.HasSuffix(file, ".mjs") {
			continue
		}
		chunk := Chunk{File: file, EntryPoint: normalizeID(out.EntryPoint)}
		for input := range out.Inputs {
			chunk.Inputs = append(chunk.Inputs, normalizeID(input))
		}
		m.chunks = append(m.chunks, chunk)
	}
	for i := range m.chunks {
		c := &m.chunks[i]
		if c.EntryPoint != "" {
			m.byID[c.EntryPoint] = c
		}
	}
	for i := range m.chunks {
		c := &m.chunks[i]
		for _, input := range c.Inputs {
			if _, ok := m.byID[input]; !ok {
				m.byID[input] = c
			}
		}
	}
	return m, nil
}

// Lookup finds the chunk answering for a module identifier, preferring the
// chunk whose facade entry matches over one that merely contains the module.
func (m *Manifest) Lookup(moduleID string) (*Chunk, bool) {
	c, ok := m.byID[normalizeID(moduleID)]
	return c, ok
}

// Chunks returns every JS chunk in the manifest.
func (m *Manifest) Chunks() []Chunk {
	return m.chunks
}

// normalizeID strips the plugin namespace prefix the bundler prepends to
// virtual module identifiers in its metafile, then canonicalizes the path.
func normalizeID(id string) string {
	if id == "" {
		return ""
	}
	id = strings.TrimPrefix(id, ident.Namespace+":")
	if ident.IsVirtual(id) {
		return id
	}
	return path.Clean(id)
}
