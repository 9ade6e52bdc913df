// Package config loads the htmlbld build configuration from file,
// environment variables and defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config represents the build tool configuration.
type Config struct {
	Build BuildConfig `mapstructure:"build"`
	Watch WatchConfig `mapstructure:"watch"`
	Debug bool        `mapstructure:"debug"`
}

// BuildConfig contains the HTML build pipeline settings.
type BuildConfig struct {
	RootDir            string   `mapstructure:"root_dir"`
	OutDir             string   `mapstructure:"out_dir"`
	Include            []string `mapstructure:"include"`
	Exclude            []string `mapstructure:"exclude"`
	PreserveStructure  bool     `mapstructure:"preserve_structure"`
	RemoveComments     bool     `mapstructure:"remove_comments"`
	CompressWhitespace bool     `mapstructure:"compress_whitespace"`
	Minify             bool     `mapstructure:"minify"`
	External           []string `mapstructure:"external"`
}

// WatchConfig contains the watch mode settings.
type WatchConfig struct {
	DebounceMillis int `mapstructure:"debounce_ms"`
}

// Load loads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("htmlbld")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HTMLBLD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Debug().Str("file", viper.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads environment variables from a .env file.
func loadEnvFile() error {
	locations := []string{
		".env",
		".env.local",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Debug().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}

	return fmt.Errorf("no .env file found")
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("build.root_dir", ".")
	viper.SetDefault("build.out_dir", "dist")
	viper.SetDefault("build.include", []string{"**/*.html", "**/*.htm"})
	viper.SetDefault("build.preserve_structure", true)
	viper.SetDefault("build.remove_comments", false)
	viper.SetDefault("build.compress_whitespace", false)
	viper.SetDefault("build.minify", false)

	viper.SetDefault("watch.debounce_ms", 150)

	viper.SetDefault("debug", false)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Build.OutDir == "" {
		return fmt.Errorf("build.out_dir must not be empty")
	}
	if c.Build.RootDir == "" {
		return fmt.Errorf("build.root_dir must not be empty")
	}
	if c.Watch.DebounceMillis < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative")
	}
	return nil
}
