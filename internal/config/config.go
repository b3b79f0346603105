// Package config loads the frame's settings from defaults, an optional
// YAML file, FRIDGEFRAME_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fridgeframe/internal/media"
	"fridgeframe/internal/slideshow"
	"fridgeframe/internal/thermal"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	defaultPhotoDuration  = 30 * time.Second
	defaultVideoDuration  = 60 * time.Second
	defaultFetchTimeout   = 30 * time.Second
	defaultAPIAddr        = "127.0.0.1:8088"
	defaultPlayerCommand  = "mpv"
	defaultHistorySize    = 20
	defaultBatchCount     = 5
	defaultWeatherRefresh = time.Hour
	defaultChatRefresh    = time.Minute
	defaultSensorRefresh  = time.Minute
)

// Config is the effective configuration.
type Config struct {
	PhotoDuration time.Duration `mapstructure:"photo-duration"`
	VideoDuration time.Duration `mapstructure:"video-duration"`
	MediaTypes    string        `mapstructure:"media-types"`
	VideoSound    bool          `mapstructure:"video-sound"`

	SourceURL     string        `mapstructure:"source-url"`
	SourceDir     string        `mapstructure:"source-dir"`
	SourceRawURLs bool          `mapstructure:"source-raw-urls"`
	BatchCount    int           `mapstructure:"batch-count"`
	FetchTimeout  time.Duration `mapstructure:"fetch-timeout"`

	DBPath      string `mapstructure:"db-path"`
	HistorySize int    `mapstructure:"history-size"`

	APIEnabled bool   `mapstructure:"api-enabled"`
	APIAddr    string `mapstructure:"api-addr"`

	Fullscreen    bool   `mapstructure:"fullscreen"`
	PlayerCommand string `mapstructure:"player-command"`

	ThermalEnabled  bool          `mapstructure:"thermal-enabled"`
	ThermalPath     string        `mapstructure:"thermal-path"`
	ThermalWarning  float64       `mapstructure:"thermal-warning"`
	ThermalRecovery float64       `mapstructure:"thermal-recovery"`
	ThermalInterval time.Duration `mapstructure:"thermal-interval"`

	// Refresh intervals for the sibling widgets sharing the screen.
	WeatherRefresh time.Duration `mapstructure:"weather-refresh"`
	ChatRefresh    time.Duration `mapstructure:"chat-refresh"`
	SensorRefresh  time.Duration `mapstructure:"sensor-refresh"`

	// ConfigPath is the file actually read, empty when none was found.
	ConfigPath string `mapstructure:"-"`
}

// DefaultPath is $HOME/.config/fridgeframe/config.yml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return configFile(home), nil
}

func configFile(home string) string {
	return filepath.Join(home, ".config", "fridgeframe", "config.yml")
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("photo-duration", defaultPhotoDuration)
	v.SetDefault("video-duration", defaultVideoDuration)
	v.SetDefault("media-types", "all")
	v.SetDefault("video-sound", true)
	v.SetDefault("source-url", "")
	v.SetDefault("source-dir", "")
	v.SetDefault("source-raw-urls", false)
	v.SetDefault("fetch-timeout", defaultFetchTimeout)
	v.SetDefault("db-path", filepath.Join(home, ".local", "share", "fridgeframe", "fridgeframe.db"))
	v.SetDefault("history-size", defaultHistorySize)
	v.SetDefault("batch-count", defaultBatchCount)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("fullscreen", true)
	v.SetDefault("player-command", defaultPlayerCommand)
	v.SetDefault("thermal-enabled", true)
	v.SetDefault("thermal-path", thermal.DefaultPath)
	v.SetDefault("thermal-warning", thermal.DefaultWarning)
	v.SetDefault("thermal-recovery", thermal.DefaultRecovery)
	v.SetDefault("thermal-interval", thermal.DefaultInterval)
	v.SetDefault("weather-refresh", defaultWeatherRefresh)
	v.SetDefault("chat-refresh", defaultChatRefresh)
	v.SetDefault("sensor-refresh", defaultSensorRefresh)
}

// Load reads the configuration and validates it.
func Load(configPath string, flags *pflag.FlagSet) (Config, error) {
	cfg, err := Read(configPath, flags)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Read reads the configuration without validating it. An explicit
// configPath must exist; the default file is optional. Flags override
// everything else when they were set on the command line.
func Read(configPath string, flags *pflag.FlagSet) (Config, error) {
	var cfg Config

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("FRIDGEFRAME")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	setDefaults(v, home)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return cfg, fmt.Errorf("binding flags: %w", err)
		}
	}

	explicit := configPath != ""
	if !explicit {
		configPath = configFile(home)
	}
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if explicit || (!errors.As(err, &configFileNotFound) && !os.IsNotExist(err)) {
			return cfg, fmt.Errorf("reading config %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if _, err := os.Stat(configPath); err == nil {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	if strings.HasPrefix(cfg.DBPath, "~/") {
		cfg.DBPath = filepath.Join(home, cfg.DBPath[2:])
	}
	if strings.HasPrefix(cfg.SourceDir, "~/") {
		cfg.SourceDir = filepath.Join(home, cfg.SourceDir[2:])
	}
	return cfg, nil
}

// Validate checks the cross-field rules.
func (c Config) Validate() error {
	type durationCheck struct {
		key string
		d   time.Duration
	}
	var errs []error
	positive := []durationCheck{
		{"photo-duration", c.PhotoDuration},
		{"video-duration", c.VideoDuration},
		{"fetch-timeout", c.FetchTimeout},
		{"weather-refresh", c.WeatherRefresh},
		{"chat-refresh", c.ChatRefresh},
		{"sensor-refresh", c.SensorRefresh},
	}
	if c.ThermalEnabled {
		positive = append(positive, durationCheck{"thermal-interval", c.ThermalInterval})
	}
	for _, p := range positive {
		if p.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", p.key, p.d))
		}
	}

	switch {
	case c.SourceURL == "" && c.SourceDir == "":
		errs = append(errs, errors.New("one of source-url or source-dir must be set"))
	case c.SourceURL != "" && c.SourceDir != "":
		errs = append(errs, errors.New("source-url and source-dir are mutually exclusive"))
	}

	if _, err := media.ParseFilter(c.MediaTypes); err != nil {
		errs = append(errs, fmt.Errorf("media-types: %w", err))
	}
	if c.ThermalEnabled && c.ThermalRecovery >= c.ThermalWarning {
		errs = append(errs, fmt.Errorf("thermal-recovery (%g) must be below thermal-warning (%g)", c.ThermalRecovery, c.ThermalWarning))
	}
	if c.BatchCount <= 0 {
		errs = append(errs, fmt.Errorf("batch-count must be positive, got %d", c.BatchCount))
	}
	if c.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("history-size must not be negative, got %d", c.HistorySize))
	}
	if c.APIEnabled && c.APIAddr == "" {
		errs = append(errs, errors.New("api-addr must be set when api-enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Filter returns the parsed media-types setting.
func (c Config) Filter() media.Filter {
	f, err := media.ParseFilter(c.MediaTypes)
	if err != nil {
		return media.AllKinds()
	}
	return f
}

// Slideshow returns the controller timing policy.
func (c Config) Slideshow() slideshow.Config {
	cfg := slideshow.DefaultConfig()
	cfg.PhotoDuration = c.PhotoDuration
	cfg.VideoCeiling = c.VideoDuration
	cfg.Filter = c.Filter()
	return cfg
}

// Thermal returns the thermal guard thresholds.
func (c Config) Thermal() thermal.Config {
	return thermal.Config{
		Warning:  c.ThermalWarning,
		Recovery: c.ThermalRecovery,
		Interval: c.ThermalInterval,
	}
}

// Settings returns the configuration keyed by option name, durations
// rendered as strings.
func (c Config) Settings() map[string]interface{} {
	return map[string]interface{}{
		"photo-duration":   c.PhotoDuration.String(),
		"video-duration":   c.VideoDuration.String(),
		"media-types":      c.MediaTypes,
		"video-sound":      c.VideoSound,
		"source-url":       c.SourceURL,
		"source-dir":       c.SourceDir,
		"source-raw-urls":  c.SourceRawURLs,
		"fetch-timeout":    c.FetchTimeout.String(),
		"db-path":          c.DBPath,
		"history-size":     c.HistorySize,
		"batch-count":      c.BatchCount,
		"api-enabled":      c.APIEnabled,
		"api-addr":         c.APIAddr,
		"fullscreen":       c.Fullscreen,
		"player-command":   c.PlayerCommand,
		"thermal-enabled":  c.ThermalEnabled,
		"thermal-path":     c.ThermalPath,
		"thermal-warning":  c.ThermalWarning,
		"thermal-recovery": c.ThermalRecovery,
		"thermal-interval": c.ThermalInterval.String(),
		"weather-refresh":  c.WeatherRefresh.String(),
		"chat-refresh":     c.ChatRefresh.String(),
		"sensor-refresh":   c.SensorRefresh.String(),
	}
}

// YAML renders the configuration in the config file format.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c.Settings())
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return out, nil
}

// WriteFile stores the configuration at path, creating parent directories.
// An existing file is left alone unless overwrite is set.
func (c Config) WriteFile(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %s already exists", path)
		}
	}
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
