// Package htmltree provides traversal and mutation helpers for parsed HTML
// documents. All functions operate on golang.org/x/net/html nodes; the
// x/net/html parser attaches <template> contents as regular children, so
// traversal covers template subtrees without special casing.
package htmltree

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse reads a full HTML document from r. The parser is lenient and only
// fails on read errors, so a parse failure always carries an I/O cause.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ParseString parses an HTML document held in memory.
func ParseString(src string) (*html.Node, error) {
	return Parse(strings.NewReader(src))
}

// Render serializes the document tree back to HTML text.
func Render(doc *html.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}
	return buf.Bytes(), nil
}

// FindAll collects every node under root (root included) for which pred
// holds, in depth-first pre-order. It never mutates the tree.
func FindAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if pred(n) {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// Text returns the node's first text child, or "" when the node has no text
// payload. Mixed content beyond the first text child is ignored.
func Text(n *html.Node) string {
	if c := n.FirstChild; c != nil && c.Type == html.TextNode {
		return c.Data
	}
	return ""
}

// SetText overwrites the node's first text child, inserting a new one before
// any existing children when the node has no leading text child. Subsequent
// non-text children are left untouched.
func SetText(n *html.Node, text string) {
	if c := n.FirstChild; c != nil && c.Type == html.TextNode {
		c.Data = text
		return
	}
	textNode := &html.Node{Type: html.TextNode, Data: text}
	if n.FirstChild != nil {
		n.InsertBefore(textNode, n.FirstChild)
		return
	}
	n.AppendChild(textNode)
}

// Detach removes n from its parent. A node without a parent is left alone.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Replace splices repl into old's position, keeping sibling order and parent
// links consistent. old must be attached to a parent.
func Replace(old, repl *html.Node) {
	parent := old.Parent
	if parent == nil {
		return
	}
	next := old.NextSibling
	parent.RemoveChild(old)
	parent.InsertBefore(repl, next)
}

// Attr returns the value of the named attribute and whether it is present.
func Attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// IsElement reports whether n is an element with the given tag atom.
func IsElement(n *html.Node, a atom.Atom) bool {
	return n.Type == html.ElementNode && n.DataAtom == a
}

// NewScriptModule builds a childless <script type="module" src=...> element.
func NewScriptModule(src string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Script,
		Data:     "script",
		Attr: []html.Attribute{
			{Key: "type", Val: "module"},
			{Key: "src", Val: src},
		},
	}
}

// NewComment builds a detached comment node carrying data.
func NewComment(data string) *html.Node {
	return &html.Node{Type: html.CommentNode, Data: data}
}

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// IsLocalRef reports whether a src/href value names a local file rather than
// a scheme or protocol-relative URL.
func IsLocalRef(src string) bool {
	return !schemeRe.MatchString(src) && !strings.HasPrefix(src, "//")
}

// IsModuleScript reports whether a script element carries type="module".
func IsModuleScript(n *html.Node) bool {
	typ, _ := Attr(n, "type")
	return strings.EqualFold(strings.TrimSpace(typ), "module")
}
