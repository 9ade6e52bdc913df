package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wayli-app/htmlbld/pkg/htmlbundle"
)

var (
	buildOut      string
	buildRoot     string
	buildMinify   bool
	buildFlatten  bool
	buildComments bool
	buildCompress bool
	buildExternal []string
)

var buildCmd = &cobra.Command{
	Use:   "build [patterns...]",
	Short: "Build HTML entry points and their script modules",
	Long: `Build expands the given file patterns (doublestar globs), extracts the
script modules from every matched HTML file, bundles them with esbuild and
emits rewritten HTML plus chunks into the output directory.

With no arguments the include patterns from the configuration are used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(args)
		if err != nil {
			return err
		}

		started := time.Now()
		result, err := htmlbundle.Build(opts)
		if err != nil {
			return err
		}

		log.Info().
			Int("html_files", len(result.HTMLFiles)).
			Int("warnings", len(result.Warnings)).
			Dur("elapsed", time.Since(started)).
			Msg("Build finished")
		return nil
	},
}

// buildOptions assembles library options from config and flags. Positional
// patterns are expanded against the root directory.
func buildOptions(patterns []string) (htmlbundle.Options, error) {
	opts := htmlbundle.Options{
		RootDir:            buildRoot,
		OutDir:             buildOut,
		Include:            cfg.Build.Include,
		Exclude:            cfg.Build.Exclude,
		PreserveStructure:  cfg.Build.PreserveStructure && !buildFlatten,
		RemoveComments:     cfg.Build.RemoveComments || buildComments,
		CompressWhitespace: cfg.Build.CompressWhitespace || buildCompress,
		Minify:             cfg.Build.Minify || buildMinify,
		External:           append(cfg.Build.External, buildExternal...),
		Write:              true,
	}
	if opts.RootDir == "" {
		opts.RootDir = cfg.Build.RootDir
	}
	if opts.OutDir == "" {
		opts.OutDir = cfg.Build.OutDir
	}

	if len(patterns) == 0 {
		patterns = opts.Include
	}

	inputs, err := expandPatterns(opts.RootDir, patterns)
	if err != nil {
		return opts, err
	}
	if len(inputs) == 0 {
		return opts, fmt.Errorf("no files matched %v under %s", patterns, opts.RootDir)
	}
	opts.Entries = htmlbundle.Entries(inputs...)
	return opts, nil
}

// expandPatterns resolves doublestar patterns to root-relative file paths.
// Non-pattern arguments pass through so explicit files need not exist yet at
// parse time.
func expandPatterns(rootDir string, patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var inputs []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(filepath.Join(rootDir, filepath.FromSlash(pattern)))
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if matches == nil && !containsMeta(pattern) {
			matches = []string{filepath.Join(rootDir, filepath.FromSlash(pattern))}
		}
		for _, m := range matches {
			rel, err := filepath.Rel(rootDir, m)
			if err != nil {
				rel = m
			}
			rel = filepath.ToSlash(rel)
			if _, ok := seen[rel]; ok {
				continue
			}
			seen[rel] = struct{}{}
			inputs = append(inputs, rel)
		}
	}
	sort.Strings(inputs)
	return inputs, nil
}

func containsMeta(pattern string) bool {
	for _, r := range pattern {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

func init() {
	buildCmd.Flags().StringVarP(&buildOut, "out", "o", "",
		"output directory (default from config)")
	buildCmd.Flags().StringVar(&buildRoot, "root", "",
		"working root for relative paths (default from config)")
	buildCmd.Flags().BoolVar(&buildMinify, "minify", false,
		"minify styles, scripts and bundler output")
	buildCmd.Flags().BoolVar(&buildFlatten, "flatten", false,
		"flatten output paths to basenames")
	buildCmd.Flags().BoolVar(&buildComments, "remove-comments", false,
		"strip HTML comments")
	buildCmd.Flags().BoolVar(&buildCompress, "compress-whitespace", false,
		"collapse whitespace in text nodes")
	buildCmd.Flags().StringSliceVar(&buildExternal, "external", nil,
		"module specifiers to leave unbundled")
	rootCmd.AddCommand(buildCmd)
}
