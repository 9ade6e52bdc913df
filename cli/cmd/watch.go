package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wayli-app/htmlbld/pkg/htmlbundle"
)

var watchCmd = &cobra.Command{
	Use:   "watch [patterns...]",
	Short: "Rebuild whenever source files change",
	Long: `Watch runs an initial build, then watches the working root and rebuilds
when HTML, script or style sources change. Changes are debounced so editor
save bursts trigger a single rebuild.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(args)
		if err != nil {
			return err
		}

		runBuild := func() {
			started := time.Now()
			result, err := htmlbundle.Build(opts)
			if err != nil {
				log.Error().Err(err).Msg("Build failed")
				return
			}
			log.Info().
				Int("html_files", len(result.HTMLFiles)).
				Dur("elapsed", time.Since(started)).
				Msg("Build finished")
		}
		runBuild()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		defer func() { _ = watcher.Close() }()

		outAbs, _ := filepath.Abs(filepath.Join(opts.RootDir, filepath.FromSlash(opts.OutDir)))
		if err := watchRecursive(watcher, opts.RootDir, outAbs); err != nil {
			return err
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		debounce := time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond
		var timer *time.Timer
		pending := make(chan struct{}, 1)

		log.Info().Str("root", opts.RootDir).Msg("Watching for changes")
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !relevantEvent(event, outAbs) {
					continue
				}
				// New directories must be added to the watch set.
				if event.Op.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = watchRecursive(watcher, event.Name, outAbs)
					}
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					select {
					case pending <- struct{}{}:
					default:
					}
				})

			case <-pending:
				runBuild()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				log.Warn().Err(err).Msg("Watcher error")

			case <-stop:
				log.Info().Msg("Stopping watch")
				return nil
			}
		}
	},
}

// watchRecursive adds root and every directory below it to the watch set,
// skipping the output directory and dot directories.
func watchRecursive(watcher *fsnotify.Watcher, root, outAbs string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		abs, _ := filepath.Abs(path)
		if abs == outAbs || strings.HasPrefix(abs, outAbs+string(filepath.Separator)) {
			return filepath.SkipDir
		}
		if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		if name := d.Name(); name == "node_modules" {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// relevantEvent filters out output-directory writes and noise that should not
// trigger a rebuild.
func relevantEvent(event fsnotify.Event, outAbs string) bool {
	if event.Op.Has(fsnotify.Chmod) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	if abs == outAbs || strings.HasPrefix(abs, outAbs+string(filepath.Separator)) {
		return false
	}
	switch strings.ToLower(filepath.Ext(event.Name)) {
	case ".html", ".htm", ".js", ".mjs", ".ts", ".jsx", ".tsx", ".css", ".json":
		return true
	}
	// Directory events carry no extension but may introduce new sources.
	info, err := os.Stat(event.Name)
	return err == nil && info.IsDir()
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
