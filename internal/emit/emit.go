// Package emit finishes a build: it computes each document's final output
// path, guards against path collisions, serializes the rewritten tree and
// hands the bytes back as build artifacts (optionally writing them to disk).
package emit

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/wayli-app/htmlbld/internal/htmltree"
	"github.com/wayli-app/htmlbld/internal/session"
)

// File is one emitted HTML artifact.
type File struct {
	// Path is the output-relative path of the artifact.
	Path string
	// Contents is the serialized document.
	Contents []byte
}

// OutputRelPath computes a document's final output-relative path. Precedence:
// the explicit destination key when the input was keyed, the structure
// preserving path relative to the working root, or the flattened basename.
func OutputRelPath(doc *session.Document, preserveStructure bool) string {
	if doc.OutputKey != "" {
		return path.Clean(doc.OutputKey)
	}
	if preserveStructure {
		return path.Clean(doc.RelPath)
	}
	return path.Base(doc.RelPath)
}

// Run emits every rewritten document. A collision between two documents'
// output paths is fatal for the later document: it is skipped and the build
// error names both paths, while earlier artifacts stand. When write is set,
// artifacts are also written under outDir.
func Run(sess *session.Session, outDir string, preserveStructure, write bool) ([]File, error) {
	if write && outDir == "" {
		return nil, fmt.Errorf("no output directory configured for HTML emission")
	}

	emitted := make(map[string]string) // output path -> source path
	var files []File
	var errs []error

	for _, doc := range sess.Documents() {
		if doc.Phase != session.PhaseRewritten {
			return files, fmt.Errorf("internal: document %s reached emission in phase %s", doc.SourcePath, doc.Phase)
		}

		outPath := OutputRelPath(doc, preserveStructure)
		if prev, ok := emitted[outPath]; ok {
			errs = append(errs, fmt.Errorf(
				"output path collision: %q is produced by both %s and %s", outPath, prev, doc.SourcePath))
			continue
		}

		contents, err := htmltree.Render(doc.Tree)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to serialize %s: %w", doc.SourcePath, err))
			continue
		}

		if write {
			target := filepath.Join(outDir, filepath.FromSlash(outPath))
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				errs = append(errs, fmt.Errorf("failed to create output directory for %s: %w", outPath, err))
				continue
			}
			if err := os.WriteFile(target, contents, 0o644); err != nil {
				errs = append(errs, fmt.Errorf("failed to write %s: %w", target, err))
				continue
			}
		}

		emitted[outPath] = doc.SourcePath
		files = append(files, File{Path: outPath, Contents: contents})
		doc.Phase = session.PhaseEmitted
		log.Debug().Str("build", sess.ID).Str("path", outPath).Msg("emitted HTML asset")
	}

	if len(errs) > 0 {
		return files, errors.Join(errs...)
	}
	return files, nil
}
