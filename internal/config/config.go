package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	LogLevel   string `mapstructure:"log_level"`
	Secret     string `mapstructure:"secret"`

	// ReadLimit caps what the websocket reader buffers; MaxFrameBytes is the
	// protocol limit answered with too_large.
	ReadLimit     int64         `mapstructure:"read_limit"`
	MaxFrameBytes int           `mapstructure:"max_frame_bytes"`
	SendBuffer    int           `mapstructure:"send_buffer"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`

	HeartbeatInterval      time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatTimeoutFactor int           `mapstructure:"heartbeat_timeout_factor"`
	SnapshotInterval       time.Duration `mapstructure:"snapshot_interval"`

	RateCapacity   float64 `mapstructure:"rate_capacity"`
	RateFillPerSec float64 `mapstructure:"rate_fill_per_sec"`

	HandshakeLimit  int           `mapstructure:"handshake_limit"`
	HandshakeWindow time.Duration `mapstructure:"handshake_window"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`

	MetadataEndpoint string        `mapstructure:"metadata_endpoint"`
	MetadataTimeout  time.Duration `mapstructure:"metadata_timeout"`
}

// HeartbeatTimeout is how long a member may stay silent before the sweep drops it.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutFactor) * c.HeartbeatInterval
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.MaxFrameBytes <= 0 {
		errs = append(errs, errors.New("max_frame_bytes must be positive"))
	}
	if c.ReadLimit < int64(c.MaxFrameBytes) {
		errs = append(errs, errors.New("read_limit must be at least max_frame_bytes"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.HeartbeatInterval <= 0 || c.SnapshotInterval <= 0 || c.WriteTimeout <= 0 {
		errs = append(errs, errors.New("intervals must be positive"))
	}
	if c.HeartbeatTimeoutFactor < 1 {
		errs = append(errs, errors.New("heartbeat_timeout_factor must be >= 1"))
	}
	if c.RateCapacity <= 0 || c.RateFillPerSec <= 0 {
		errs = append(errs, errors.New("rate limiter capacity and fill rate must be positive"))
	}
	if c.HandshakeLimit <= 0 || c.HandshakeWindow <= 0 {
		errs = append(errs, errors.New("handshake limit and window must be positive"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "change-me")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("max_frame_bytes", 4096)
	v.SetDefault("send_buffer", 256)
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("heartbeat_interval", "5s")
	v.SetDefault("heartbeat_timeout_factor", 4)
	v.SetDefault("snapshot_interval", "3s")
	v.SetDefault("rate_capacity", 10.0)
	v.SetDefault("rate_fill_per_sec", 5.0)
	v.SetDefault("handshake_limit", 30)
	v.SetDefault("handshake_window", "1m")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("metadata_endpoint", "https://noembed.com/embed")
	v.SetDefault("metadata_timeout", "10s")
}

// Default returns the configuration with no file or environment applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults alone always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Str("module", "config").Msg("no .env file, using process environment")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Dur("heartbeat", cfg.HeartbeatInterval).
		Msg("config ready")
	return &cfg, nil
}
