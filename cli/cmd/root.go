// Package cmd provides the Cobra commands for the htmlbld CLI.
package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wayli-app/htmlbld/internal/config"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	// Global flags
	cfgFile string
	quiet   bool
	debug   bool

	// Shared across commands
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "htmlbld",
	Short: "htmlbld - Build HTML files as bundler entry points",
	Long: `htmlbld treats HTML files as first-class build entry points.

It discovers the script modules an HTML document references or embeds,
bundles them with esbuild, and rewrites the HTML to point at the emitted
chunks.

Get started:
  htmlbld build index.html    Build a single page
  htmlbld build "src/**/*.html" -o dist
  htmlbld watch               Rebuild on file changes`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceErrors = quiet

		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		switch {
		case quiet:
			zerolog.SetGlobalLevel(zerolog.ErrorLevel)
		case debug:
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		default:
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cfg.Debug && !quiet {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		return nil
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./htmlbld.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"minimal output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug output")
}
