package session

import (
	"fmt"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/wayli-app/htmlbld/internal/ident"
)

// noopSource is the constant payload of the placeholder entry injected when
// no real entry points exist. The bundler must never receive an empty entry
// set once HTML was matched.
const noopSource = "export {};\n"

// Plugin returns the esbuild plugin backing the session's virtual module
// registry. Resolution claims only this build's virtual namespaces; every
// other identifier is deferred to the bundler's default resolution. Loading a
// claimed identifier with no backing record is an internal-consistency error
// and fails the build.
func (s *Session) Plugin() api.Plugin {
	return api.Plugin{
		Name: "htmlbld",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `^virtual:`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if !ident.IsVirtual(args.Path) {
						return api.OnResolveResult{}, nil
					}
					return api.OnResolveResult{
						Path:      args.Path,
						Namespace: ident.Namespace,
					}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: ident.Namespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					if args.Path == ident.NoopEntry {
						contents := noopSource
						return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS, ResolveDir: s.RootDir}, nil
					}
					if mod, doc, ok := s.lookupInline(args.Path); ok {
						contents := mod.Source
						// Relative imports inside the lifted script resolve
						// against the owning document's directory.
						return api.OnLoadResult{
							Contents:   &contents,
							Loader:     api.LoaderJS,
							ResolveDir: filepath.Dir(doc.SourcePath),
						}, nil
					}
					return api.OnLoadResult{}, fmt.Errorf("no backing record for virtual module %s", args.Path)
				})
		},
	}
}
