// Package transform wraps the two external text transforms the passes invoke:
// the CSS engine applied to extracted style content and the minifier applied
// to inline non-module scripts. Both are backed by esbuild's transform API
// and fail with descriptive errors; callers degrade to the original text.
package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// ErrNoOutput signals that the minifier produced no output for its input.
var ErrNoOutput = errors.New("minifier produced no output")

// CSSOptions is the pass-through option bag for the style transform.
type CSSOptions struct {
	Minify bool
	Target api.Target
}

// JSOptions is the pass-through option bag for the script minifier.
type JSOptions struct {
	Target api.Target
}

// CSS runs the style engine over source. sourceID only labels diagnostics.
func CSS(source, sourceID string, opts CSSOptions) (string, error) {
	result := api.Transform(source, api.TransformOptions{
		Loader:            api.LoaderCSS,
		MinifyWhitespace:  opts.Minify,
		MinifySyntax:      opts.Minify,
		MinifyIdentifiers: opts.Minify,
		Target:            opts.Target,
		Sourcefile:        sourceID,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("css transform of %s failed: %s", sourceID, joinMessages(result.Errors))
	}
	return strings.TrimRight(string(result.Code), "\n"), nil
}

// MinifyJS minifies inline script text. An empty result is reported as
// ErrNoOutput so callers can distinguish it from a transform failure.
func MinifyJS(source string, opts JSOptions) (string, error) {
	result := api.Transform(source, api.TransformOptions{
		Loader:            api.LoaderJS,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: true,
		Target:            opts.Target,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("minify failed: %s", joinMessages(result.Errors))
	}
	code := strings.TrimRight(string(result.Code), "\n")
	if code == "" && strings.TrimSpace(source) != "" {
		return "", ErrNoOutput
	}
	return code, nil
}

func joinMessages(msgs []api.Message) string {
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	return strings.Join(texts, "; ")
}
