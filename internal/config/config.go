package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	FeedDriver      string        `mapstructure:"FEED_DRIVER"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	AuthSigningKey  string        `mapstructure:"AUTH_SIGNING_KEY"`
	StaffPassphrase string        `mapstructure:"STAFF_PASSPHRASE"`
	AdminPassphrase string        `mapstructure:"ADMIN_PASSPHRASE"`
	TokenTTL        time.Duration `mapstructure:"TOKEN_TTL"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
	MQTTBroker      string        `mapstructure:"MQTT_BROKER"`
	MQTTClientID    string        `mapstructure:"MQTT_CLIENT_ID"`
	MQTTUsername    string        `mapstructure:"MQTT_USERNAME"`
	MQTTPassword    string        `mapstructure:"MQTT_PASSWORD"`

	// Monitor / speech settings. Only the monitor command reads these.
	SpeechDriver        string        `mapstructure:"SPEECH_DRIVER"`
	SpeechCommand       string        `mapstructure:"SPEECH_COMMAND"`
	SpeechEndpoint      string        `mapstructure:"SPEECH_ENDPOINT"`
	SpeechAPIKey        string        `mapstructure:"SPEECH_API_KEY"`
	SpeechLanguage      string        `mapstructure:"SPEECH_LANGUAGE"`
	AudioPlayerCommand  string        `mapstructure:"AUDIO_PLAYER_COMMAND"`
	AnnounceTemplate    string        `mapstructure:"ANNOUNCE_TEMPLATE"`
	AnnounceSettleDelay time.Duration `mapstructure:"ANNOUNCE_SETTLE_DELAY"`
	MonitorShifts       []string      `mapstructure:"MONITOR_SHIFTS"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"FEED_DRIVER", "REDIS_URL", "CORS_ORIGINS",
	"AUTH_SIGNING_KEY", "STAFF_PASSPHRASE", "ADMIN_PASSPHRASE", "TOKEN_TTL",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD",
	"SPEECH_DRIVER", "SPEECH_COMMAND", "SPEECH_ENDPOINT", "SPEECH_API_KEY", "SPEECH_LANGUAGE",
	"AUDIO_PLAYER_COMMAND", "ANNOUNCE_TEMPLATE", "ANNOUNCE_SETTLE_DELAY", "MONITOR_SHIFTS",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("FEED_DRIVER", "postgres")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("TOKEN_TTL", "12h")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("MQTT_CLIENT_ID", "callboard-server")
	v.SetDefault("SPEECH_DRIVER", "log")
	v.SetDefault("SPEECH_LANGUAGE", "ja-JP")
	v.SetDefault("ANNOUNCE_TEMPLATE", "{{name}}さん、{{bed}}番ベッドへお迎えをお願いします。")
	v.SetDefault("ANNOUNCE_SETTLE_DELAY", "1s")
	v.SetDefault("MONITOR_SHIFTS", "1,2,3")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.MonitorShifts = splitList(v.GetString("MONITOR_SHIFTS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ENV=development, requests without a token get admin access.")
	}

	return cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key and a staff passphrase are mandatory, and each optional
// driver must have the settings it depends on.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if len(c.AuthSigningKey) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters outside development")
		}
		if c.StaffPassphrase == "" {
			return fmt.Errorf("STAFF_PASSPHRASE is required outside development")
		}
	}

	switch c.FeedDriver {
	case "postgres", "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when FEED_DRIVER is \"redis\"")
		}
	default:
		return fmt.Errorf("FEED_DRIVER must be \"postgres\", \"redis\", or \"memory\", got %q", c.FeedDriver)
	}

	switch c.SpeechDriver {
	case "log":
	case "command":
		if c.SpeechCommand == "" {
			return fmt.Errorf("SPEECH_COMMAND is required when SPEECH_DRIVER is \"command\"")
		}
	case "remote":
		if c.SpeechEndpoint == "" {
			return fmt.Errorf("SPEECH_ENDPOINT is required when SPEECH_DRIVER is \"remote\"")
		}
		if c.AudioPlayerCommand == "" {
			return fmt.Errorf("AUDIO_PLAYER_COMMAND is required when SPEECH_DRIVER is \"remote\"")
		}
	default:
		return fmt.Errorf("SPEECH_DRIVER must be \"log\", \"command\", or \"remote\", got %q", c.SpeechDriver)
	}

	if c.AnnounceSettleDelay < 0 {
		return fmt.Errorf("ANNOUNCE_SETTLE_DELAY must not be negative")
	}
	return nil
}
