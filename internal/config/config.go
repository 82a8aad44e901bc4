package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime configuration for the inventory sync service.
type Config struct {
	Server struct {
		Listen          string        `mapstructure:"listen"`
		WSPath          string        `mapstructure:"ws_path"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Database struct {
		Path     string `mapstructure:"path"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"database"`

	Auth struct {
		JWTSecret string        `mapstructure:"jwt_secret"`
		Issuer    string        `mapstructure:"issuer"`
		Audience  string        `mapstructure:"audience"`
		TokenTTL  time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"auth"`

	Inventory struct {
		AllowBackorder    bool          `mapstructure:"allow_backorder"`
		ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	} `mapstructure:"inventory"`

	Realtime struct {
		SendBuffer     int           `mapstructure:"send_buffer"`
		WriteWait      time.Duration `mapstructure:"write_wait"`
		PongWait       time.Duration `mapstructure:"pong_wait"`
		MaxMessageSize int64         `mapstructure:"max_message_size"`
	} `mapstructure:"realtime"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Client struct {
		URL         string        `mapstructure:"url"`
		UserID      int64         `mapstructure:"user_id"`
		BaseDelay   time.Duration `mapstructure:"base_delay"`
		MaxAttempts int           `mapstructure:"max_attempts"`
	} `mapstructure:"client"`
}

// EnvPrefix is prepended to every environment override, e.g. INVSYNC_SERVER_LISTEN.
const EnvPrefix = "INVSYNC"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8008")
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "inventory-sync.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("auth.jwt_secret", "development-insecure-secret-change-me")
	v.SetDefault("auth.issuer", "inventory-sync-api")
	v.SetDefault("auth.audience", "inventory-sync-clients")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("inventory.allow_backorder", false)
	v.SetDefault("inventory.reconcile_interval", 5*time.Minute)

	v.SetDefault("realtime.send_buffer", 256)
	v.SetDefault("realtime.write_wait", 10*time.Second)
	v.SetDefault("realtime.pong_wait", 60*time.Second)
	v.SetDefault("realtime.max_message_size", 1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("client.url", "ws://localhost:8008/ws")
	v.SetDefault("client.user_id", 0)
	v.SetDefault("client.base_delay", time.Second)
	v.SetDefault("client.max_attempts", 5)
}

// Load reads configuration from defaults, an optional YAML file at path, and
// INVSYNC_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("server.ws_path must start with '/', got %q", c.Server.WSPath)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required (set %s_DATABASE_PATH or config file)", EnvPrefix)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Realtime.SendBuffer < 1 {
		return fmt.Errorf("realtime.send_buffer must be positive, got %d", c.Realtime.SendBuffer)
	}
	if c.Realtime.PongWait <= 0 || c.Realtime.WriteWait <= 0 {
		return fmt.Errorf("realtime.pong_wait and realtime.write_wait must be positive")
	}
	if c.Client.MaxAttempts < 0 {
		return fmt.Errorf("client.max_attempts must not be negative")
	}
	return nil
}
