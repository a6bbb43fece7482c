package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. LOCALAI_SERVER_BIND_ADDR
const EnvPrefix = "LOCALAI"

// Config represents the entire application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Download    DownloadConfig    `mapstructure:"download"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// AppConfig contains application layout settings
type AppConfig struct {
	RootDir      string `mapstructure:"root_dir"`
	DownloadsDir string `mapstructure:"downloads_dir"`
}

// EngineConfig describes the external engine binary
type EngineConfig struct {
	Binary       string `mapstructure:"binary"`
	VersionFlag  string `mapstructure:"version_flag"`
	ProbeTimeout string `mapstructure:"probe_timeout"`
}

// DownloadConfig contains installer download settings
type DownloadConfig struct {
	DefaultURL              string `mapstructure:"default_url"`
	WindowsURL              string `mapstructure:"windows_url"`
	UserAgent               string `mapstructure:"user_agent"`
	MaxRedirects            int    `mapstructure:"max_redirects"`
	IdleTimeout             string `mapstructure:"idle_timeout"`
	ChunkSizeKB             int    `mapstructure:"chunk_size_kb"`
	ProgressPersistInterval string `mapstructure:"progress_persist_interval"`
}

// ServerConfig contains HTTP/WebSocket bridge configuration
type ServerConfig struct {
	BindAddr       string   `mapstructure:"bind_addr"`
	AuthToken      string   `mapstructure:"auth_token"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadTimeout    string   `mapstructure:"read_timeout"`
	WriteTimeout   string   `mapstructure:"write_timeout"`
	IdleTimeout    string   `mapstructure:"idle_timeout"`
	WSSendBuffer   int      `mapstructure:"ws_send_buffer"`
	PromptOnStart  bool     `mapstructure:"prompt_on_start"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// MaintenanceConfig contains background housekeeping settings
type MaintenanceConfig struct {
	Interval       string `mapstructure:"interval"`
	TempFileMaxAge string `mapstructure:"temp_file_max_age"`
	RunOnStartup   bool   `mapstructure:"run_on_startup"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.root_dir", "")
	v.SetDefault("app.downloads_dir", "")
	v.SetDefault("engine.binary", "ollama")
	v.SetDefault("engine.version_flag", "--version")
	v.SetDefault("engine.probe_timeout", "10s")
	v.SetDefault("download.default_url", "https://ollama.com/download")
	v.SetDefault("download.windows_url", "https://ollama.com/download/OllamaSetup.exe")
	v.SetDefault("download.user_agent", "")
	v.SetDefault("download.max_redirects", 5)
	v.SetDefault("download.idle_timeout", "30s")
	v.SetDefault("download.chunk_size_kb", 32)
	v.SetDefault("download.progress_persist_interval", "1s")
	v.SetDefault("server.bind_addr", "127.0.0.1:11500")
	v.SetDefault("server.auth_token", "")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.ws_send_buffer", 64)
	v.SetDefault("server.prompt_on_start", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "")
	v.SetDefault("maintenance.interval", "10m")
	v.SetDefault("maintenance.temp_file_max_age", "24h")
	v.SetDefault("maintenance.run_on_startup", true)
}

// Load loads configuration from configPath. An empty path looks for an
// optional config.yaml in the working directory; when none exists the
// defaults and LOCALAI_* environment overrides apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Engine.Binary) == "" {
		return fmt.Errorf("engine.binary is required")
	}

	for key, raw := range map[string]string{
		"download.default_url": c.Download.DefaultURL,
		"download.windows_url": c.Download.WindowsURL,
	} {
		if err := validateHTTPURL(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if c.Download.MaxRedirects < 1 || c.Download.MaxRedirects > 20 {
		return fmt.Errorf("download.max_redirects must be between 1 and 20")
	}
	if c.Download.ChunkSizeKB <= 0 {
		return fmt.Errorf("download.chunk_size_kb must be positive")
	}

	durations := map[string]string{
		"engine.probe_timeout":               c.Engine.ProbeTimeout,
		"download.idle_timeout":              c.Download.IdleTimeout,
		"download.progress_persist_interval": c.Download.ProgressPersistInterval,
		"server.read_timeout":                c.Server.ReadTimeout,
		"server.write_timeout":               c.Server.WriteTimeout,
		"server.idle_timeout":                c.Server.IdleTimeout,
		"maintenance.interval":               c.Maintenance.Interval,
		"maintenance.temp_file_max_age":      c.Maintenance.TempFileMaxAge,
	}
	for key, raw := range durations {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if c.Server.WSSendBuffer <= 0 {
		return fmt.Errorf("server.ws_send_buffer must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

func parseDuration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

// GetRootDir returns the application root, defaulting to the working directory
func (c *AppConfig) GetRootDir() string {
	if c.RootDir != "" {
		return c.RootDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// GetDownloadsDir returns the installer destination directory
func (c *AppConfig) GetDownloadsDir() string {
	if c.DownloadsDir != "" {
		return c.DownloadsDir
	}
	return filepath.Join(c.GetRootDir(), "downloads")
}

// GetDatabasePath returns the history database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.App.GetRootDir(), "data", "localai-desktop.db")
}

// GetProbeTimeout returns the engine probe timeout as time.Duration
func (c *EngineConfig) GetProbeTimeout() time.Duration {
	return parseDuration(c.ProbeTimeout, 10*time.Second)
}

// GetUserAgent returns the configured user agent or a versioned default
func (c *DownloadConfig) GetUserAgent(version string) string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return "localai-desktop/" + version
}

// GetIdleTimeout returns the download idle timeout as time.Duration
func (c *DownloadConfig) GetIdleTimeout() time.Duration {
	return parseDuration(c.IdleTimeout, 30*time.Second)
}

// GetChunkSize returns the read chunk size in bytes
func (c *DownloadConfig) GetChunkSize() int {
	if c.ChunkSizeKB <= 0 {
		return 32 * 1024
	}
	return c.ChunkSizeKB * 1024
}

// GetProgressPersistInterval returns how often progress is written to the store
func (c *DownloadConfig) GetProgressPersistInterval() time.Duration {
	return parseDuration(c.ProgressPersistInterval, time.Second)
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *ServerConfig) GetReadTimeout() time.Duration {
	return parseDuration(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the write timeout; zero disables it so that
// POST /api/download can block until the installer is on disk
func (c *ServerConfig) GetWriteTimeout() time.Duration {
	return parseDuration(c.WriteTimeout, 0)
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *ServerConfig) GetIdleTimeout() time.Duration {
	return parseDuration(c.IdleTimeout, 60*time.Second)
}

// GetInterval returns the maintenance interval as time.Duration
func (c *MaintenanceConfig) GetInterval() time.Duration {
	return parseDuration(c.Interval, 10*time.Minute)
}

// GetTempFileMaxAge returns the age after which stray temp files are removed
func (c *MaintenanceConfig) GetTempFileMaxAge() time.Duration {
	return parseDuration(c.TempFileMaxAge, 24*time.Hour)
}
