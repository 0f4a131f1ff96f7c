package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	StaticPath     string        `mapstructure:"static_path"`
	Secret         string        `mapstructure:"secret"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	QueueSize      int           `mapstructure:"queue_size"`

	Cookie    CookieConfig    `mapstructure:"cookie"`
	OfferRate RateConfig      `mapstructure:"offer_rate"`
	WebRTC    WebRTCConfig    `mapstructure:"webrtc"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	WS        WebSocketConfig `mapstructure:"ws"`
}

type CookieConfig struct {
	Name   string `mapstructure:"name"`
	MaxAge int    `mapstructure:"max_age"`
	Secure bool   `mapstructure:"secure"`
}

type RateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type WebRTCConfig struct {
	ICEServers          []ICEServer   `mapstructure:"ice_servers"`
	UDPPortMin          uint16        `mapstructure:"udp_port_min"`
	UDPPortMax          uint16        `mapstructure:"udp_port_max"`
	Greeting            string        `mapstructure:"greeting"`
	DisconnectedTimeout time.Duration `mapstructure:"disconnected_timeout"`
	FailedTimeout       time.Duration `mapstructure:"failed_timeout"`
	KeepAliveInterval   time.Duration `mapstructure:"keepalive_interval"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type WebSocketConfig struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
}

const envPrefix = "RENDEZVOUS"

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("queue_size", 256)

	v.SetDefault("cookie.name", "RendezvousSession")
	v.SetDefault("cookie.max_age", 3600)
	v.SetDefault("cookie.secure", false)

	v.SetDefault("offer_rate.limit", 10)
	v.SetDefault("offer_rate.interval", "1m")

	v.SetDefault("webrtc.ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
	v.SetDefault("webrtc.udp_port_min", 0)
	v.SetDefault("webrtc.udp_port_max", 0)
	v.SetDefault("webrtc.greeting", "hello")
	v.SetDefault("webrtc.disconnected_timeout", "0s")
	v.SetDefault("webrtc.failed_timeout", "0s")
	v.SetDefault("webrtc.keepalive_interval", "0s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("ws.read_limit", 32768)
	v.SetDefault("ws.ping_period", "54s")
}

// Load reads config/config.<CONFIG_ENV>.yaml (or --config), then
// RENDEZVOUS_* environment variables, then flags. args are the process
// arguments without the program name.
func Load(args []string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	fs := pflag.NewFlagSet("rendezvous", pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to a YAML config file")
	fs.Int("port", 8080, "HTTP listen port")
	fs.String("mode", "release", "debug or release")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	for _, name := range []string{"port", "mode"} {
		if err := v.BindPFlag(name, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileName := *configFile
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

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
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("static", cfg.StaticPath).Strs("origins", cfg.AllowedOrigins).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("mode %q: want debug, release or test", c.Mode))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Mode == "release" && c.Secret == "" {
		errs = append(errs, errors.New("secret must be set in release mode"))
	}
	if c.WebRTC.UDPPortMax < c.WebRTC.UDPPortMin {
		errs = append(errs, fmt.Errorf("udp port range %d-%d is inverted", c.WebRTC.UDPPortMin, c.WebRTC.UDPPortMax))
	}
	if c.WebRTC.DisconnectedTimeout < 0 || c.WebRTC.FailedTimeout < 0 || c.WebRTC.KeepAliveInterval < 0 {
		errs = append(errs, errors.New("webrtc timeouts must not be negative"))
	}
	if c.OfferRate.Limit < 0 {
		errs = append(errs, errors.New("offer_rate.limit must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DevSecret is used in debug mode when no secret is configured.
const DevSecret = "rendezvous-dev-secret"

// CookieSecret returns the signing key for the session cookie.
func (c *Config) CookieSecret() []byte {
	if c.Secret == "" {
		return []byte(DevSecret)
	}
	return []byte(c.Secret)
}
