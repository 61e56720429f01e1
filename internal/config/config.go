// Package config loads wspanel settings from defaults, an optional YAML
// file and WSPANEL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/artpar/wspanel/internal/protocol/websocket"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WSPANEL"

// Config holds application configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Log       LogConfig       `mapstructure:"log"`
	UI        UIConfig        `mapstructure:"ui"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	History   HistoryConfig   `mapstructure:"history"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	// File is relative to DataDir unless absolute.
	File string `mapstructure:"file"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	NarrowWidth int `mapstructure:"narrow_width"`
}

// WebSocketConfig holds transport settings.
type WebSocketConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	TLSInsecure    bool          `mapstructure:"tls_insecure"`
	// PersistCookies keeps handshake cookies in the data dir between runs.
	PersistCookies bool `mapstructure:"persist_cookies"`
}

// HistoryConfig holds URL history settings.
type HistoryConfig struct {
	Limit    int `mapstructure:"limit"`
	KeepLast int `mapstructure:"keep_last"`
}

// DefaultDataDir returns ~/.wspanel.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wspanel"
	}
	return filepath.Join(home, ".wspanel")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "wspanel.log")
	v.SetDefault("ui.narrow_width", 80)
	v.SetDefault("websocket.connect_timeout", 30*time.Second)
	v.SetDefault("websocket.ping_interval", 30*time.Second)
	v.SetDefault("websocket.max_message_size", int64(10*1024*1024))
	v.SetDefault("websocket.tls_insecure", false)
	v.SetDefault("websocket.persist_cookies", true)
	v.SetDefault("history.limit", 100)
	v.SetDefault("history.keep_last", 500)
}

// Load reads configuration. An explicit path must exist; otherwise
// WSPANEL_CONFIG is used, and failing that config.yaml in the data dir
// is read when present.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPrefix + "_CONFIG")
		explicit = path != ""
	}
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(v.GetString("data_dir"))
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.DataDir = expandHome(c.DataDir)
	return c, c.Validate()
}

// Validate rejects settings the panel cannot run with.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.UI.NarrowWidth < 0 {
		return fmt.Errorf("ui.narrow_width must not be negative, got %d", c.UI.NarrowWidth)
	}
	if c.WebSocket.ConnectTimeout < 0 || c.WebSocket.PingInterval < 0 {
		return errors.New("websocket timeouts must not be negative")
	}
	if c.History.Limit < 0 || c.History.KeepLast < 0 {
		return errors.New("history limits must not be negative")
	}
	return nil
}

// LogPath returns the absolute log file path.
func (c Config) LogPath() string {
	if c.Log.File == "" || filepath.IsAbs(c.Log.File) {
		return c.Log.File
	}
	return filepath.Join(c.DataDir, c.Log.File)
}

// HistoryPath returns the history database path.
func (c Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// CookiesPath returns the cookie database path.
func (c Config) CookiesPath() string {
	return filepath.Join(c.DataDir, "cookies.db")
}

// ClientConfig builds the transport configuration.
func (c Config) ClientConfig() *websocket.Config {
	cfg := websocket.DefaultConfig()
	if c.WebSocket.ConnectTimeout > 0 {
		cfg.ConnectTimeout = c.WebSocket.ConnectTimeout
	}
	cfg.PingInterval = c.WebSocket.PingInterval
	if c.WebSocket.MaxMessageSize > 0 {
		cfg.MaxMessageSize = c.WebSocket.MaxMessageSize
	}
	cfg.TLSInsecure = c.WebSocket.TLSInsecure
	return cfg
}

// EnsureDataDir creates the data directory.
func (c Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
