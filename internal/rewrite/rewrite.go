// Package rewrite implements the second pass of the two-phase protocol. It
// runs once the external bundler has published its chunk manifest: placeholder
// comments and original module script references are resolved to the chunks
// the bundler actually produced, and fresh script nodes are spliced into the
// stored trees. Inline non-module scripts are minified at this stage.
package rewrite

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wayli-app/htmlbld/internal/emit"
	"github.com/wayli-app/htmlbld/internal/htmltree"
	"github.com/wayli-app/htmlbld/internal/ident"
	"github.com/wayli-app/htmlbld/internal/session"
	"github.com/wayli-app/htmlbld/internal/transform"
)

// Options carries the per-build rewrite configuration.
type Options struct {
	// PreserveStructure mirrors the emission path rule so relative chunk
	// paths are computed against the document's real output location.
	PreserveStructure bool
	// MinifyInline enables the script minifier for inline non-module scripts.
	MinifyInline bool
	JS           transform.JSOptions
}

// Run finishes every document against the bundler's manifest. Documents must
// be awaiting compilation; anything else is an internal protocol violation.
func Run(sess *session.Session, manifest *Manifest, opts Options) error {
	for _, doc := range sess.Documents() {
		if doc.Phase != session.PhaseAwaitingCompile {
			return fmt.Errorf("internal: document %s reached rewrite in phase %s", doc.SourcePath, doc.Phase)
		}
		rewriteDocument(sess, doc, manifest, opts)
		doc.Phase = session.PhaseRewritten
		doc.InlineModules = nil
	}
	return nil
}

func rewriteDocument(sess *session.Session, doc *session.Document, manifest *Manifest, opts Options) {
	if opts.MinifyInline {
		minifyInlineScripts(sess, doc, opts.JS)
	}

	docOut := emit.OutputRelPath(doc, opts.PreserveStructure)

	for _, n := range findReferenceNodes(doc.Tree) {
		moduleID, ok := referenceModuleID(doc, n)
		if !ok {
			sess.Warn(doc.SourcePath, "unreadable inline module placeholder, dropping node")
			htmltree.Detach(n)
			continue
		}

		chunk, found := manifest.Lookup(moduleID)
		if !found {
			sess.Warn(doc.SourcePath, "no output chunk for module %s, removing its reference", moduleID)
			htmltree.Detach(n)
			continue
		}

		src, err := relativeChunkPath(manifest.OutDir, docOut, chunk.File)
		if err != nil {
			sess.Warn(doc.SourcePath, "cannot relativize chunk path %s: %v", chunk.File, err)
			htmltree.Detach(n)
			continue
		}
		htmltree.Replace(n, htmltree.NewScriptModule(src))
	}
}

// findReferenceNodes collects every node the rewrite pass replaces: inline
// module placeholders and original local module script tags.
func findReferenceNodes(tree *html.Node) []*html.Node {
	return htmltree.FindAll(tree, func(n *html.Node) bool {
		if n.Type == html.CommentNode {
			return ident.HasPlaceholderPrefix(n.Data)
		}
		if htmltree.IsElement(n, atom.Script) {
			src, _ := htmltree.Attr(n, "src")
			return src != "" && htmltree.IsLocalRef(src) && htmltree.IsModuleScript(n)
		}
		return false
	})
}

func referenceModuleID(doc *session.Document, n *html.Node) (string, bool) {
	if n.Type == html.CommentNode {
		return ident.ParsePlaceholder(n.Data)
	}
	src, _ := htmltree.Attr(n, "src")
	return path.Clean(path.Join(path.Dir(doc.RelPath), src)), true
}

func minifyInlineScripts(sess *session.Session, doc *session.Document, opts transform.JSOptions) {
	scripts := htmltree.FindAll(doc.Tree, func(n *html.Node) bool {
		if !htmltree.IsElement(n, atom.Script) {
			return false
		}
		if src, _ := htmltree.Attr(n, "src"); src != "" {
			return false
		}
		return !htmltree.IsModuleScript(n) && htmltree.Text(n) != ""
	})
	for _, n := range scripts {
		out, err := transform.MinifyJS(htmltree.Text(n), opts)
		if err != nil {
			sess.Warn(doc.SourcePath, "inline script minification failed, keeping original: %v", err)
			continue
		}
		htmltree.SetText(n, out)
	}
}

// relativeChunkPath computes the src attribute pointing from the emitted
// document to the chunk file: forward slashes, `./`-prefixed unless the path
// already climbs out of the document's directory.
func relativeChunkPath(outDir, docOutPath, chunkFile string) (string, error) {
	chunkRel, err := filepath.Rel(outDir, filepath.FromSlash(chunkFile))
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(filepath.Dir(filepath.FromSlash(docOutPath)), chunkRel)
	if err != nil {
		return "", err
	}
	src := filepath.ToSlash(rel)
	if !strings.HasPrefix(src, "./") && !strings.HasPrefix(src, "../") && !strings.HasPrefix(src, "/") {
		src = "./" + src
	}
	return src, nil
}

