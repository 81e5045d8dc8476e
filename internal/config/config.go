package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the connection parameters shared by the solar-monitor binaries.
// Tunable alarm parameters (poll interval, beep shape) are not kept here, they
// live in the settings store so they can be changed at runtime.
type Config struct {
	// ServiceURL is the base URL of the remote plant service (e.g. http://127.0.0.1:5000).
	ServiceURL string `yaml:"service_url"`
	// SettingsStore selects the durable key-value backend for tunable settings:
	// a directory path, a file:// URL or a redis:// URL.
	SettingsStore string `yaml:"settings_store"`
	// SettingsKey is the fixed key the settings blob is stored under.
	SettingsKey string `yaml:"settings_key"`
	// ControlAddress is where the console exposes its gRPC control API.
	ControlAddress string `yaml:"control_addr"`
	// FeedAddress optionally exposes the live view feed over HTTP/WebSocket.
	FeedAddress string `yaml:"feed_addr,omitempty"`
	// AudioDevice selects the tone output: auto, command, bell or none.
	AudioDevice string `yaml:"audio_device"`
	// UpdateFolder is the URL where update artifacts are hosted.
	UpdateFolder string `yaml:"update_folder,omitempty"`
	// LogLevel is the minimum level of the console logger.
	LogLevel string `yaml:"log_level,omitempty"`
	// Timeout bounds every network call made to the plant service.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default filename for connection settings.
	DefaultConfigFilename = "solar-monitor-settings.yaml"

	// DefaultSettingsStore is the directory used for the settings blob.
	DefaultSettingsStore = "."

	// DefaultSettingsKey is the key the tunable settings are persisted under.
	DefaultSettingsKey = "solarMonitorConfig"

	// DefaultControlAddress is the loopback address of the control API.
	DefaultControlAddress = "127.0.0.1:50061"

	// DefaultAudioDevice picks the best available tone output.
	DefaultAudioDevice = "auto"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 10 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServiceURLRequired is returned when the plant service URL is missing.
	errServiceURLRequired = errors.New("plant service URL must be provided")
	// errUnknownAudioDevice is returned for an unsupported audio_device value.
	errUnknownAudioDevice = errors.New("unknown audio device")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults for optional ones.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ServiceURL == "" {
		return errServiceURLRequired
	}

	if _, err := url.ParseRequestURI(cfg.ServiceURL); err != nil {
		return fmt.Errorf("invalid plant service URL: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.SettingsStore == "" {
		cfg.SettingsStore = DefaultSettingsStore
	}

	if cfg.SettingsKey == "" {
		cfg.SettingsKey = DefaultSettingsKey
	}

	if cfg.ControlAddress == "" {
		cfg.ControlAddress = DefaultControlAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ControlAddress); err != nil {
		return fmt.Errorf("invalid control address: %w", err)
	}

	if cfg.FeedAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.FeedAddress); err != nil {
			return fmt.Errorf("invalid feed address: %w", err)
		}
	}

	cfg.AudioDevice = strings.ToLower(strings.TrimSpace(cfg.AudioDevice))
	switch cfg.AudioDevice {
	case "":
		cfg.AudioDevice = DefaultAudioDevice
	case "auto", "command", "bell", "none":
	default:
		return fmt.Errorf("%w: %q", errUnknownAudioDevice, cfg.AudioDevice)
	}

	if cfg.UpdateFolder == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(cfg.UpdateFolder); err != nil {
		return fmt.Errorf("invalid update folder URI: %w", err)
	}

	return nil
}
