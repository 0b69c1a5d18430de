package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PENTRACK_WEB_LISTEN_ADDR.
const EnvPrefix = "PENTRACK"

type Config struct {
	Web      WebConfig      `mapstructure:"web"`
	Database DatabaseConfig `mapstructure:"database"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Reports  ReportsConfig  `mapstructure:"reports"`
	Log      LogConfig      `mapstructure:"log"`
}

type WebConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	TLS            TLSConfig     `mapstructure:"tls"`
}

// TLSConfig enables HTTPS. With no files configured a self-signed
// certificate is generated into CertDir.
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	CertDir  string `mapstructure:"cert_dir"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RealtimeConfig struct {
	SendBuffer       int           `mapstructure:"send_buffer"`
	SubscribeTimeout time.Duration `mapstructure:"subscribe_timeout"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	MaxMessageSize   int64         `mapstructure:"max_message_size"`
	// CommentCacheSize bounds how many entities keep their commenters in memory.
	CommentCacheSize int           `mapstructure:"comment_cache_size"`
}

type ReportsConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	BaseURL   string `mapstructure:"base_url"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("web.listen_addr", ":8080")
	v.SetDefault("web.read_timeout", 10*time.Second)
	v.SetDefault("web.write_timeout", 60*time.Second)
	v.SetDefault("web.allowed_origins", []string{})
	v.SetDefault("web.tls.enabled", false)
	v.SetDefault("web.tls.cert_file", "")
	v.SetDefault("web.tls.key_file", "")
	v.SetDefault("web.tls.cert_dir", "certs")

	v.SetDefault("database.path", "pentrack.db")

	v.SetDefault("realtime.send_buffer", 256)
	v.SetDefault("realtime.subscribe_timeout", 5*time.Second)
	v.SetDefault("realtime.write_wait", 10*time.Second)
	v.SetDefault("realtime.pong_wait", 60*time.Second)
	v.SetDefault("realtime.max_message_size", 4096)
	v.SetDefault("realtime.comment_cache_size", 1024)

	v.SetDefault("reports.output_dir", "reports")
	v.SetDefault("reports.base_url", "http://localhost:8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads an optional .env file, then the optional YAML file at path, then
// PENTRACK_* environment overrides. A missing file yields the defaults; a
// malformed one is an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Web.ListenAddr == "" {
		return errors.New("web.listen_addr must not be empty")
	}
	if c.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if c.Reports.OutputDir == "" {
		return errors.New("reports.output_dir must not be empty")
	}
	if c.Web.TLS.Enabled && (c.Web.TLS.CertFile == "") != (c.Web.TLS.KeyFile == "") {
		return errors.New("web.tls.cert_file and web.tls.key_file must be set together")
	}
	return nil
}
