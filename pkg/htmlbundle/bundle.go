// Package htmlbundle builds HTML files as first-class bundler entry points.
// It extracts embedded and referenced script modules from HTML documents,
// hands them to esbuild as entries, and rewrites the HTML afterwards to
// reference the chunks esbuild emitted.
package htmlbundle

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/wayli-app/htmlbld/internal/emit"
	"github.com/wayli-app/htmlbld/internal/extract"
	"github.com/wayli-app/htmlbld/internal/ident"
	"github.com/wayli-app/htmlbld/internal/rewrite"
	"github.com/wayli-app/htmlbld/internal/session"
	"github.com/wayli-app/htmlbld/internal/transform"
)

// DefaultInclude matches HTML inputs when no include patterns are configured.
var DefaultInclude = []string{"**/*.html", "**/*.htm"}

// Options configures one build.
type Options struct {
	// Entries is the raw entry specification. HTML inputs are expanded into
	// their script entry points; everything else passes through to esbuild
	// unchanged.
	Entries EntrySpec

	// RootDir is the working root source paths resolve against. Defaults to
	// the current directory.
	RootDir string
	// OutDir receives bundler chunks and emitted HTML, relative to RootDir.
	OutDir string

	// Include and Exclude select which entries are treated as HTML, using
	// doublestar patterns against root-relative paths.
	Include []string
	Exclude []string

	// PreserveStructure keeps each HTML file's directory structure below
	// OutDir instead of flattening to the basename.
	PreserveStructure bool
	// RemoveComments drops HTML comments during extraction.
	RemoveComments bool
	// CompressWhitespace collapses whitespace runs in text nodes.
	CompressWhitespace bool
	// Minify enables CSS minification, inline script minification and
	// esbuild's JS minification.
	Minify bool

	// Write controls whether artifacts are written to disk; when false they
	// are only returned in the Result.
	Write bool

	// Target is the language target passed through to every transform.
	Target api.Target
	// External and ExtraPlugins pass through to esbuild.
	External     []string
	ExtraPlugins []api.Plugin
}

// Result carries everything a finished build produced.
type Result struct {
	// HTMLFiles are the emitted HTML assets.
	HTMLFiles []emit.File
	// OutputFiles are esbuild's output files (only populated when esbuild
	// runs with Write disabled).
	OutputFiles []api.OutputFile
	// Metafile is esbuild's raw metafile JSON.
	Metafile string
	// Warnings are the recoverable diagnostics collected across all passes.
	Warnings []session.Warning
}

// Build runs the full two-phase pipeline: extraction, esbuild compilation,
// rewrite and emission. Per-document read and parse failures are surfaced in
// the returned error but never corrupt other documents.
func Build(opts Options) (*Result, error) {
	if opts.RootDir == "" {
		opts.RootDir = "."
	}
	if opts.OutDir == "" {
		opts.OutDir = "dist"
	}
	if len(opts.Include) == 0 {
		opts.Include = DefaultInclude
	}
	rootAbs, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}

	htmlItems, passThrough := partitionEntries(opts)
	if len(htmlItems) == 0 {
		// No HTML matched: defer entirely to a plain esbuild build.
		return plainBuild(opts, rootAbs, passThrough)
	}

	sess := session.New(rootAbs)
	log.Debug().Str("build", sess.ID).Int("html_inputs", len(htmlItems)).Msg("starting HTML extraction")

	var docErrs []error
	extractOpts := extract.Options{
		RemoveComments:     opts.RemoveComments,
		CompressWhitespace: opts.CompressWhitespace,
		CSS:                transform.CSSOptions{Minify: opts.Minify, Target: opts.Target},
	}
	for _, item := range htmlItems {
		sourcePath, relPath := resolveInput(rootAbs, item.Path)
		src, err := os.ReadFile(sourcePath)
		if err != nil {
			docErrs = append(docErrs, fmt.Errorf("failed to read HTML input %s: %w", item.Path, err))
			continue
		}
		if _, err := extract.Document(sess, sourcePath, relPath, item.Key, src, extractOpts); err != nil {
			docErrs = append(docErrs, fmt.Errorf("failed to extract %s: %w", item.Path, err))
		}
	}

	entryPoints := assembleEntryPoints(sess, passThrough)
	sess.SealForCompile()

	buildResult := api.Build(esbuildOptions(opts, rootAbs, sess, entryPoints))
	if len(buildResult.Errors) > 0 {
		return nil, fmt.Errorf("bundling failed: %s", joinMessages(buildResult.Errors))
	}

	manifest, err := rewrite.ParseManifest(buildResult.Metafile, opts.OutDir)
	if err != nil {
		return nil, err
	}
	if err := rewrite.Run(sess, manifest, rewrite.Options{
		PreserveStructure: opts.PreserveStructure,
		MinifyInline:      opts.Minify,
		JS:                transform.JSOptions{Target: opts.Target},
	}); err != nil {
		return nil, err
	}

	files, emitErr := emit.Run(sess, filepath.Join(rootAbs, filepath.FromSlash(opts.OutDir)), opts.PreserveStructure, opts.Write)
	result := &Result{
		HTMLFiles:   files,
		OutputFiles: buildResult.OutputFiles,
		Metafile:    buildResult.Metafile,
		Warnings:    sess.Warnings(),
	}
	if emitErr != nil {
		docErrs = append(docErrs, emitErr)
	}
	if len(docErrs) > 0 {
		return result, errors.Join(docErrs...)
	}
	return result, nil
}

// partitionEntries splits the raw spec into HTML inputs and pass-through
// entries using the include/exclude patterns.
func partitionEntries(opts Options) (htmlItems, passThrough []EntryItem) {
	for _, item := range opts.Entries {
		rel := matchPath(opts.RootDir, item.Path)
		if matchAny(opts.Include, rel) && !matchAny(opts.Exclude, rel) {
			htmlItems = append(htmlItems, item)
		} else {
			passThrough = append(passThrough, item)
		}
	}
	return htmlItems, passThrough
}

// assembleEntryPoints builds the replacement path-keyed entry mapping: every
// discovered JS entry plus non-HTML pass-through entries. When nothing would
// remain, the no-op placeholder entry keeps the bundler's input set non-empty.
func assembleEntryPoints(sess *session.Session, passThrough []EntryItem) []api.EntryPoint {
	if !sess.HasEntries() && len(passThrough) == 0 {
		sess.AddEntry(session.Entry{
			ID:        ident.NoopEntry,
			OutputKey: sess.Synth.Key(ident.NoopEntry),
			Virtual:   true,
		})
	}

	var entryPoints []api.EntryPoint
	for _, e := range sess.Entries() {
		entryPoints = append(entryPoints, api.EntryPoint{InputPath: e.ID, OutputPath: e.OutputKey})
	}
	for _, item := range passThrough {
		entryPoints = append(entryPoints, api.EntryPoint{InputPath: item.Path, OutputPath: outputKeyFor(item)})
	}
	return entryPoints
}

func esbuildOptions(opts Options, rootAbs string, sess *session.Session, entryPoints []api.EntryPoint) api.BuildOptions {
	return api.BuildOptions{
		EntryPointsAdvanced: entryPoints,
		AbsWorkingDir:       rootAbs,
		Outdir:              opts.OutDir,
		Bundle:              true,
		Write:               opts.Write,
		Metafile:            true,
		Format:              api.FormatESModule,
		Platform:            api.PlatformBrowser,
		Splitting:           len(entryPoints) > 1,
		Target:              opts.Target,
		MinifyWhitespace:    opts.Minify,
		MinifyIdentifiers:   opts.Minify,
		MinifySyntax:        opts.Minify,
		External:            opts.External,
		LogLevel:            api.LogLevelSilent,
		Plugins:             append([]api.Plugin{sess.Plugin()}, opts.ExtraPlugins...),
	}
}

// plainBuild runs esbuild over the original entry specification unchanged.
func plainBuild(opts Options, rootAbs string, items []EntryItem) (*Result, error) {
	if len(items) == 0 {
		return &Result{}, nil
	}
	var entryPoints []api.EntryPoint
	for _, item := range items {
		entryPoints = append(entryPoints, api.EntryPoint{InputPath: item.Path, OutputPath: outputKeyFor(item)})
	}
	buildResult := api.Build(api.BuildOptions{
		EntryPointsAdvanced: entryPoints,
		AbsWorkingDir:       rootAbs,
		Outdir:              opts.OutDir,
		Bundle:              true,
		Write:               opts.Write,
		Metafile:            true,
		Format:              api.FormatESModule,
		Target:              opts.Target,
		MinifyWhitespace:    opts.Minify,
		MinifyIdentifiers:   opts.Minify,
		MinifySyntax:        opts.Minify,
		External:            opts.External,
		LogLevel:            api.LogLevelSilent,
		Plugins:             opts.ExtraPlugins,
	})
	if len(buildResult.Errors) > 0 {
		return nil, fmt.Errorf("bundling failed: %s", joinMessages(buildResult.Errors))
	}
	return &Result{OutputFiles: buildResult.OutputFiles, Metafile: buildResult.Metafile}, nil
}

// resolveInput yields the absolute source path and the root-relative slash
// path for an input. Inputs outside the root keep their cleaned form.
func resolveInput(rootAbs, input string) (sourcePath, relPath string) {
	sourcePath = input
	if !filepath.IsAbs(sourcePath) {
		sourcePath = filepath.Join(rootAbs, filepath.FromSlash(input))
	}
	if rel, err := filepath.Rel(rootAbs, sourcePath); err == nil && !strings.HasPrefix(rel, "..") {
		return sourcePath, filepath.ToSlash(rel)
	}
	return sourcePath, path.Clean(filepath.ToSlash(input))
}

// matchPath normalizes an entry path for pattern matching.
func matchPath(rootDir, input string) string {
	p := filepath.ToSlash(input)
	if rootDir != "" && rootDir != "." {
		p = strings.TrimPrefix(p, filepath.ToSlash(rootDir)+"/")
	}
	return path.Clean(p)
}

func matchAny(patterns []string, p string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}

// outputKeyFor strips the JS extension from an explicit key so the bundler
// appends its own.
func outputKeyFor(item EntryItem) string {
	if item.Key == "" {
		return ""
	}
	key := item.Key
	for _, ext := range []string{".js", ".mjs", ".ts", ".jsx", ".tsx"} {
		if strings.HasSuffix(key, ext) {
			return strings.TrimSuffix(key, ext)
		}
	}
	return key
}

func joinMessages(msgs []api.Message) string {
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	return strings.Join(texts, "; ")
}
