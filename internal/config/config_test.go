package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "htmlbld.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults apply without a config file", func(t *testing.T) {
		viper.Reset()
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, ".", cfg.Build.RootDir)
		assert.Equal(t, "dist", cfg.Build.OutDir)
		assert.Equal(t, []string{"**/*.html", "**/*.htm"}, cfg.Build.Include)
		assert.True(t, cfg.Build.PreserveStructure)
		assert.False(t, cfg.Build.Minify)
		assert.Equal(t, 150, cfg.Watch.DebounceMillis)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		viper.Reset()
		path := writeConfig(t, `
build:
  root_dir: site
  out_dir: public
  minify: true
  compress_whitespace: true
  exclude:
    - "**/drafts/**"
watch:
  debounce_ms: 300
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "site", cfg.Build.RootDir)
		assert.Equal(t, "public", cfg.Build.OutDir)
		assert.True(t, cfg.Build.Minify)
		assert.True(t, cfg.Build.CompressWhitespace)
		assert.Equal(t, []string{"**/drafts/**"}, cfg.Build.Exclude)
		assert.Equal(t, 300, cfg.Watch.DebounceMillis)
	})

	t.Run("environment variables override defaults", func(t *testing.T) {
		viper.Reset()
		t.Setenv("HTMLBLD_DEBUG", "true")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.True(t, cfg.Debug)
	})

	t.Run("rejects an empty output directory", func(t *testing.T) {
		viper.Reset()
		path := writeConfig(t, `
build:
  out_dir: ""
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out_dir")
	})

	t.Run("rejects a negative debounce", func(t *testing.T) {
		viper.Reset()
		path := writeConfig(t, `
watch:
  debounce_ms: -1
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "debounce_ms")
	})
}

func TestValidate(t *testing.T) {
	valid := Config{
		Build: BuildConfig{RootDir: ".", OutDir: "dist"},
		Watch: WatchConfig{DebounceMillis: 100},
	}
	assert.NoError(t, valid.Validate())

	noRoot := valid
	noRoot.Build.RootDir = ""
	assert.Error(t, noRoot.Validate())
}
