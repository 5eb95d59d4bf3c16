// Package config loads companion settings from defaults, an optional YAML file, COMPANION_*
// environment variables and command-line flags.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/rcliao/companion/internal/mood"
)

// EnvPrefix is prepended to every environment variable, e.g. COMPANION_GATEWAY_API_KEY.
const EnvPrefix = "COMPANION"

type Config struct {
	DBPath      string          `mapstructure:"db_path"`
	PersonaPack string          `mapstructure:"persona_pack"`
	RandomSeed  int64           `mapstructure:"random_seed"`
	Mood        MoodConfig      `mapstructure:"mood"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
	Gateway     GatewayConfig   `mapstructure:"gateway"`
	Memory      MemoryConfig    `mapstructure:"memory"`
	Speech      SpeechConfig    `mapstructure:"speech"`
	Log         LogConfig       `mapstructure:"log"`
}

type MoodConfig struct {
	Tiers string `mapstructure:"tiers"` // four or three
}

type SchedulerConfig struct {
	PreDelay  time.Duration `mapstructure:"pre_delay"`
	PostDelay time.Duration `mapstructure:"post_delay"`
}

type GatewayConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	TextModel   string        `mapstructure:"text_model"`
	ImageModel  string        `mapstructure:"image_model"`
	AudioModel  string        `mapstructure:"audio_model"`
	Voice       string        `mapstructure:"voice"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	ImageSize   string        `mapstructure:"image_size"`
	ImageSeed   int64         `mapstructure:"image_seed"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type MemoryConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
	Budget       int `mapstructure:"budget"`
}

type SpeechConfig struct {
	MaxSegment int `mapstructure:"max_segment"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Dir is the companion's home directory, ~/.companion.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".companion")
}

// SetDefaults registers every key with its default so env overrides are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db_path", filepath.Join(Dir(), "companion.db"))
	v.SetDefault("persona_pack", "")
	v.SetDefault("random_seed", 0)
	v.SetDefault("mood.tiers", "four")
	v.SetDefault("scheduler.pre_delay", 100*time.Millisecond)
	v.SetDefault("scheduler.post_delay", 200*time.Millisecond)
	v.SetDefault("gateway.base_url", "https://api.openai.com/v1")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.text_model", "gpt-4o-mini")
	v.SetDefault("gateway.image_model", "dall-e-2")
	v.SetDefault("gateway.audio_model", "tts-1")
	v.SetDefault("gateway.voice", "alloy")
	v.SetDefault("gateway.max_tokens", 150)
	v.SetDefault("gateway.temperature", 0.8)
	v.SetDefault("gateway.image_size", "512x512")
	v.SetDefault("gateway.image_seed", 778822)
	v.SetDefault("gateway.timeout", 60*time.Second)
	v.SetDefault("memory.history_limit", 6)
	v.SetDefault("memory.budget", 1200)
	v.SetDefault("speech.max_segment", 400)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.development", false)
}

// New returns a viper instance with defaults and environment binding in place.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file, if any, and decodes the result. An explicit path must exist; the
// default ~/.companion/config.yaml is read only when present.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path == "" {
		def := filepath.Join(Dir(), "config.yaml")
		if _, err := os.Stat(def); err == nil {
			path = def
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	c.DBPath = expandHome(c.DBPath)
	c.PersonaPack = expandHome(c.PersonaPack)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if _, err := mood.TableFor(c.Mood.Tiers); err != nil {
		return errors.Wrap(err, "mood.tiers")
	}
	if c.Scheduler.PreDelay < 0 || c.Scheduler.PostDelay < 0 {
		return errors.Errorf("scheduler delays must not be negative (pre %s, post %s)",
			c.Scheduler.PreDelay, c.Scheduler.PostDelay)
	}
	if c.Gateway.TextModel == "" || c.Gateway.ImageModel == "" || c.Gateway.AudioModel == "" {
		return errors.New("gateway models must not be empty")
	}
	if c.Gateway.MaxTokens <= 0 {
		return errors.Errorf("gateway.max_tokens must be positive, got %d", c.Gateway.MaxTokens)
	}
	if c.Memory.HistoryLimit < 0 || c.Memory.Budget < 0 {
		return errors.New("memory limits must not be negative")
	}
	if c.Speech.MaxSegment <= 0 {
		return errors.Errorf("speech.max_segment must be positive, got %d", c.Speech.MaxSegment)
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
