package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type DaemonConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type FragmentsConfig struct {
	// Dir is autoloaded into the index when the daemon starts. Empty disables
	// autoloading.
	Dir string `mapstructure:"dir"`
}

type RenderConfig struct {
	// DocsBaseURL is where navdoc:// links in pre-rendered signatures resolve.
	DocsBaseURL string `mapstructure:"docs_base_url"`
}

type Config struct {
	Daemon    DaemonConfig    `mapstructure:"daemon"`
	Fragments FragmentsConfig `mapstructure:"fragments"`
	Render    RenderConfig    `mapstructure:"render"`
}

// cacheBase returns the base cache directory for cratenav.
// Checks XDG_CACHE_HOME, then ~/.cache, then /tmp/cratenav as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "cratenav")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "cratenav")
	}
	return filepath.Join(os.TempDir(), "cratenav")
}

// DBPath returns the path to the DuckDB database file.
func DBPath() string {
	return filepath.Join(cacheBase(), "index.db")
}

// LogPath returns the path to the daemon's log file.
func LogPath() string {
	return filepath.Join(cacheBase(), "daemon.log")
}

// SocketPath returns the path to the daemon's unix socket.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "cratenav", "daemon.sock")
	}
	return filepath.Join(fmt.Sprintf("/run/user/%d", os.Getuid()), "cratenav", "daemon.sock")
}

func InitializeViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		viper.AddConfigPath(filepath.Join(xdg, "cratenav"))
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "cratenav"))
	}

	viper.SetDefault("daemon.idle_timeout", "10m")
	viper.SetDefault("fragments.dir", "")
	viper.SetDefault("render.docs_base_url", "https://docs.rs")

	viper.SetEnvPrefix("CRATENAV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	if err := InitializeViper(); err != nil {
		return nil, err
	}

	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Daemon.IdleTimeout <= 0 {
		config.Daemon.IdleTimeout = 10 * time.Minute
	}

	return &config, nil
}
