// Package extract implements the first of the two passes over an HTML
// document: it walks the parsed tree once, transforms or removes style,
// script, comment and text nodes, and collects the module entry points the
// bundler will compile. Inline module scripts are lifted into virtual modules
// and replaced by placeholder comments the rewrite pass locates later.
package extract

import (
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wayli-app/htmlbld/internal/htmltree"
	"github.com/wayli-app/htmlbld/internal/ident"
	"github.com/wayli-app/htmlbld/internal/session"
	"github.com/wayli-app/htmlbld/internal/transform"
)

// Options carries the per-document extraction configuration.
type Options struct {
	RemoveComments     bool
	CompressWhitespace bool
	CSS                transform.CSSOptions
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// verbatimParents are elements whose text content must survive whitespace
// compression untouched.
var verbatimParents = map[atom.Atom]bool{
	atom.Pre:      true,
	atom.Textarea: true,
	atom.Script:   true,
	atom.Style:    true,
}

// Document parses one HTML source and runs the extraction walk over it,
// registering the document and its entry points on the session. A source
// with no content yields a warning and a nil record.
func Document(sess *session.Session, sourcePath, relPath, outputKey string, src []byte, opts Options) (*session.Document, error) {
	if strings.TrimSpace(string(src)) == "" {
		sess.Warn(sourcePath, "skipping HTML file with no content")
		return nil, nil
	}

	tree, err := htmltree.ParseString(string(src))
	if err != nil {
		return nil, err
	}

	doc := &session.Document{
		SourcePath: sourcePath,
		RelPath:    relPath,
		OutputKey:  outputKey,
		Key:        sess.Synth.Key(relPath),
		Tree:       tree,
		Phase:      session.PhaseExtracted,
	}

	w := &walker{sess: sess, doc: doc, opts: opts}
	w.walk(tree)

	for i := range doc.InlineModules {
		sess.AddEntry(session.Entry{
			ID:        doc.InlineModules[i].VirtualID,
			OutputKey: sess.Synth.Key(doc.InlineModules[i].VirtualID),
			Virtual:   true,
		})
	}

	if err := sess.AddDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

type walker struct {
	sess *session.Session
	doc  *session.Document
	opts Options
}

// walk applies the per-node decision table pre-order. Children are captured
// before each decision so deletions and replacements cannot derail the
// traversal; template contents are regular children and need no special case.
func (w *walker) walk(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		w.visit(c)
		c = next
	}
}

func (w *walker) visit(n *html.Node) {
	switch {
	case n.Type == html.CommentNode:
		if w.opts.RemoveComments {
			htmltree.Detach(n)
		}

	case htmltree.IsElement(n, atom.Style):
		w.visitStyle(n)

	case htmltree.IsElement(n, atom.Script):
		w.visitScript(n)

	case n.Type == html.TextNode:
		w.visitText(n)

	default:
		w.walk(n)
	}
}

func (w *walker) visitStyle(n *html.Node) {
	text := htmltree.Text(n)
	if text == "" {
		htmltree.Detach(n)
		return
	}
	out, err := transform.CSS(text, w.doc.RelPath+":<style>", w.opts.CSS)
	if err != nil {
		w.sess.Warn(w.doc.SourcePath, "style transform failed, keeping original: %v", err)
		return
	}
	htmltree.SetText(n, out)
}

func (w *walker) visitScript(n *html.Node) {
	src, _ := htmltree.Attr(n, "src")
	text := htmltree.Text(n)

	switch {
	case src != "" && htmltree.IsLocalRef(src):
		// The path is rewritten after the bundler picks its output name.
		id := resolveModuleID(w.doc.RelPath, src)
		w.sess.AddEntry(session.Entry{ID: id, OutputKey: w.sess.Synth.Key(id)})

	case src == "" && text == "":
		htmltree.Detach(n)

	case src == "" && htmltree.IsModuleScript(n):
		index := len(w.doc.InlineModules)
		virtualID := ident.InlineModuleID(w.doc.Key, index)
		placeholder := ident.Placeholder(virtualID)
		w.doc.InlineModules = append(w.doc.InlineModules, session.InlineModule{
			VirtualID:   virtualID,
			Source:      text,
			Placeholder: placeholder,
		})
		htmltree.Replace(n, htmltree.NewComment(placeholder))

	default:
		// Inline non-module scripts are minified during the rewrite pass;
		// scheme URLs stay untouched.
	}
}

func (w *walker) visitText(n *html.Node) {
	if !w.opts.CompressWhitespace {
		return
	}
	if n.Parent != nil && verbatimParents[n.Parent.DataAtom] {
		return
	}

	text := whitespaceRe.ReplaceAllString(n.Data, " ")
	if n.PrevSibling == nil {
		text = strings.TrimLeft(text, " ")
	}
	if n.NextSibling == nil {
		text = strings.TrimRight(text, " ")
	}
	if text == "" {
		htmltree.Detach(n)
		return
	}
	n.Data = text
}

// resolveModuleID resolves a script src against its document's directory,
// yielding the root-relative module identifier the rewrite pass matches
// against the chunk manifest.
func resolveModuleID(docRelPath, src string) string {
	return path.Clean(path.Join(path.Dir(docRelPath), src))
}
