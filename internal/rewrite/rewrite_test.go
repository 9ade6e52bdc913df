package rewrite

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wayli-app/htmlbld/internal/htmltree"
	"github.com/wayli-app/htmlbld/internal/ident"
	"github.com/wayli-app/htmlbld/internal/session"
)

func docWithHTML(t *testing.T, sess *session.Session, relPath, src string) *session.Document {
	t.Helper()
	tree, err := htmltree.ParseString(src)
	require.NoError(t, err)
	doc := &session.Document{
		SourcePath: "/src/" + relPath,
		RelPath:    relPath,
		Key:        sess.Synth.Key(relPath),
		Tree:       tree,
		Phase:      session.PhaseExtracted,
	}
	require.NoError(t, sess.AddDocument(doc))
	return doc
}

func manifestFor(t *testing.T, entries map[string]string) *Manifest {
	t.Helper()
	outputs := ""
	for file, entry := range entries {
		if outputs != "" {
			outputs += ","
		}
		outputs += fmt.Sprintf(`%q: {"bytes": 1, "entryPoint": %q, "inputs": {%q: {"bytesInOutput": 1}}}`,
			file, entry, entry)
	}
	m, err := ParseManifest(`{"inputs": {}, "outputs": {`+outputs+`}}`, "dist")
	require.NoError(t, err)
	return m
}

func TestRun(t *testing.T) {
	t.Run("splices chunk references over placeholders", func(t *testing.T) {
		sess := session.New(t.TempDir())
		virtualID := ident.InlineModuleID(sess.Synth.Key("index.html"), 0)
		src := `<html><body><!--` + ident.Placeholder(virtualID) + `--></body></html>`
		doc := docWithHTML(t, sess, "index.html", src)
		doc.InlineModules = []session.InlineModule{{VirtualID: virtualID}}
		sess.SealForCompile()

		m := manifestFor(t, map[string]string{
			"dist/assets/inline-1.js": ident.Namespace + ":" + virtualID,
		})
		require.NoError(t, Run(sess, m, Options{}))

		assert.Equal(t, session.PhaseRewritten, doc.Phase)
		assert.Nil(t, doc.InlineModules)

		out, err := htmltree.Render(doc.Tree)
		require.NoError(t, err)
		assert.Contains(t, string(out), `<script type="module" src="./assets/inline-1.js">`)
		assert.NotContains(t, string(out), "htmlbld-placeholder")
	})

	t.Run("rewrites external module script sources", func(t *testing.T) {
		sess := session.New(t.TempDir())
		doc := docWithHTML(t, sess, "index.html",
			`<html><body><script type="module" src="./js/app.js"></script></body></html>`)
		sess.SealForCompile()

		m := manifestFor(t, map[string]string{"dist/assets/app-H4SH.js": "js/app.js"})
		require.NoError(t, Run(sess, m, Options{}))

		out, err := htmltree.Render(doc.Tree)
		require.NoError(t, err)
		assert.Contains(t, string(out), `src="./assets/app-H4SH.js"`)
		assert.NotContains(t, string(out), "js/app.js")
	})

	t.Run("climbs out of nested document directories", func(t *testing.T) {
		sess := session.New(t.TempDir())
		doc := docWithHTML(t, sess, "sub/page.html",
			`<html><body><script type="module" src="app.js"></script></body></html>`)
		sess.SealForCompile()

		m := manifestFor(t, map[string]string{"dist/assets/app-1.js": "sub/app.js"})
		require.NoError(t, Run(sess, m, Options{PreserveStructure: true}))

		out, err := htmltree.Render(doc.Tree)
		require.NoError(t, err)
		assert.Contains(t, string(out), `src="../assets/app-1.js"`)
	})

	t.Run("drops references with no chunk and warns", func(t *testing.T) {
		sess := session.New(t.TempDir())
		doc := docWithHTML(t, sess, "index.html",
			`<html><body><script type="module" src="gone.js"></script></body></html>`)
		sess.SealForCompile()

		m := manifestFor(t, map[string]string{})
		require.NoError(t, Run(sess, m, Options{}))

		out, err := htmltree.Render(doc.Tree)
		require.NoError(t, err)
		assert.NotContains(t, string(out), "gone.js")
		require.Len(t, sess.Warnings(), 1)
		assert.Contains(t, sess.Warnings()[0].Message, "gone.js")
	})

	t.Run("drops unparsable placeholders and warns", func(t *testing.T) {
		sess := session.New(t.TempDir())
		doc := docWithHTML(t, sess, "index.html",
			`<html><body><!--htmlbld-placeholder not-a-virtual-id--></body></html>`)
		sess.SealForCompile()

		require.NoError(t, Run(sess, manifestFor(t, map[string]string{}), Options{}))

		out, err := htmltree.Render(doc.Tree)
		require.NoError(t, err)
		assert.NotContains(t, string(out), "htmlbld-placeholder")
		require.Len(t, sess.Warnings(), 1)
		assert.Contains(t, sess.Warnings()[0].Message, "placeholder")
	})

	t.Run("leaves remote module scripts untouched", func(t *testing.T) {
		sess := session.New(t.TempDir())
		doc := docWithHTML(t, sess, "index.html",
			`<html><body><script type="module" src="https://cdn.example.com/x.js"></script></body></html>`)
		sess.SealForCompile()

		require.NoError(t, Run(sess, manifestFor(t, map[string]string{}), Options{}))

		out, err := htmltree.Render(doc.Tree)
		require.NoError(t, err)
		assert.Contains(t, string(out), "https://cdn.example.com/x.js")
		assert.Empty(t, sess.Warnings())
	})

	t.Run("rejects documents outside the compile phase", func(t *testing.T) {
		sess := session.New(t.TempDir())
		docWithHTML(t, sess, "index.html", `<html></html>`)

		err := Run(sess, manifestFor(t, map[string]string{}), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "extracted")
	})
}

func TestMinifyInlineScripts(t *testing.T) {
	t.Run("minifies inline classic scripts", func(t *testing.T) {
		sess := session.New(t.TempDir())
		doc := docWithHTML(t, sess, "index.html",
			`<html><body><script>var  value   =  1  +  2 ;</script></body></html>`)
		sess.SealForCompile()

		require.NoError(t, Run(sess, manifestFor(t, map[string]string{}), Options{MinifyInline: true}))

		out, err := htmltree.Render(doc.Tree)
		require.NoError(t, err)
		assert.Contains(t, string(out), "var value=")
		assert.NotContains(t, string(out), "  ")
	})

	t.Run("skips external and module scripts", func(t *testing.T) {
		sess := session.New(t.TempDir())
		doc := docWithHTML(t, sess, "index.html",
			`<html><body><script src="https://cdn.example.com/x.js"></script></body></html>`)
		sess.SealForCompile()

		require.NoError(t, Run(sess, manifestFor(t, map[string]string{}), Options{MinifyInline: true}))

		scripts := htmltree.FindAll(doc.Tree, func(n *html.Node) bool {
			return htmltree.IsElement(n, atom.Script)
		})
		require.Len(t, scripts, 1)
		assert.Empty(t, htmltree.Text(scripts[0]))
	})
}

func TestRelativeChunkPath(t *testing.T) {
	tests := []struct {
		outDir string
		docOut string
		chunk  string
		want   string
	}{
		{"dist", "index.html", "dist/chunk.js", "./chunk.js"},
		{"dist", "index.html", "dist/assets/a-1.js", "./assets/a-1.js"},
		{"dist", "sub/page.html", "dist/assets/a-1.js", "../assets/a-1.js"},
		{"dist", "a/b/page.html", "dist/a/x.js", "../x.js"},
		{"out", "page.html", "out/js/m.js", "./js/m.js"},
	}
	for _, tt := range tests {
		got, err := relativeChunkPath(tt.outDir, tt.docOut, tt.chunk)
		if err != nil {
			t.Fatalf("relativeChunkPath(%q, %q, %q): %v", tt.outDir, tt.docOut, tt.chunk, err)
		}
		if got != tt.want {
			t.Errorf("relativeChunkPath(%q, %q, %q) = %q, want %q", tt.outDir, tt.docOut, tt.chunk, got, tt.want)
		}
	}
}
