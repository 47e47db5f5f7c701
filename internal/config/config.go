// Package config loads the bot configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/tripwire/pkg/access"
	"github.com/aretw0/tripwire/pkg/keywords"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. It may be absent.
const DefaultPath = "tripwire.yaml"

// Config is the full runtime configuration.
type Config struct {
	Port        string         `mapstructure:"port"`
	LogLevel    string         `mapstructure:"log_level"`
	Owners      []int64        `mapstructure:"owners"`
	Keywords    []string       `mapstructure:"keywords"`
	AutoKick    bool           `mapstructure:"auto_kick"`
	AutoSync    bool           `mapstructure:"auto_sync"`
	SyncTimeout time.Duration  `mapstructure:"sync_timeout"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
	Vercel      VercelConfig   `mapstructure:"vercel"`
	Redis       RedisConfig    `mapstructure:"redis"`
}

// TelegramConfig configures the Bot API client and the webhook.
type TelegramConfig struct {
	Token          string        `mapstructure:"token"`
	BotUsername    string        `mapstructure:"bot_username"`
	APIURL         string        `mapstructure:"api_url"`
	WebhookBaseURL string        `mapstructure:"webhook_base_url"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	ParseMode      string        `mapstructure:"parse_mode"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// VercelConfig configures the remote keyword sync.
type VercelConfig struct {
	Token       string        `mapstructure:"token"`
	ProjectID   string        `mapstructure:"project_id"`
	TeamID      string        `mapstructure:"team_id"`
	APIURL      string        `mapstructure:"api_url"`
	EnvKey      string        `mapstructure:"env_key"`
	Targets     []string      `mapstructure:"targets"`
	FallbackRef string        `mapstructure:"fallback_ref"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RedisConfig enables the cross-replica sync lock when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// SyncEnabled reports whether keyword sync to Vercel is configured.
func (c *Config) SyncEnabled() bool {
	return c.Vercel.Token != "" && c.Vercel.ProjectID != ""
}

// Validate reports every missing or inconsistent setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required (TELEGRAM_BOT_TOKEN)"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.Vercel.Token != "" && c.Vercel.ProjectID == "" {
		errs = append(errs, errors.New("vercel.project_id is required when vercel.token is set (VERCEL_PROJECT_ID)"))
	}
	if c.Vercel.Token != "" && c.Vercel.EnvKey == "" {
		errs = append(errs, errors.New("vercel.env_key must not be empty"))
	}
	return errors.Join(errs...)
}

// envKeys maps environment variables onto config keys.
var envKeys = map[string]string{
	"PORT":                    "port",
	"LOG_LEVEL":               "log_level",
	"OWNER":                   "owners",
	"KEYWORDS":                "keywords",
	"AUTO_KICK":               "auto_kick",
	"AUTO_SYNC":               "auto_sync",
	"SYNC_TIMEOUT":            "sync_timeout",
	"TELEGRAM_BOT_TOKEN":      "telegram.token",
	"TELEGRAM_BOT_USERNAME":   "telegram.bot_username",
	"TELEGRAM_API_URL":        "telegram.api_url",
	"TELEGRAM_PARSE_MODE":     "telegram.parse_mode",
	"TELEGRAM_WEBHOOK_SECRET": "telegram.webhook_secret",
	"WEBHOOK_BASE_URL":        "telegram.webhook_base_url",
	"VERCEL_TOKEN":            "vercel.token",
	"VERCEL_PROJECT_ID":       "vercel.project_id",
	"VERCEL_TEAM_ID":          "vercel.team_id",
	"VERCEL_API_URL":          "vercel.api_url",
	"VERCEL_ENV_KEY":          "vercel.env_key",
	"VERCEL_FALLBACK_REF":     "vercel.fallback_ref",
	"REDIS_ADDR":              "redis.addr",
	"REDIS_PASSWORD":          "redis.password",
	"REDIS_DB":                "redis.db",
}

func defaults() map[string]any {
	return map[string]any{
		"port":         "8000",
		"log_level":    "info",
		"auto_kick":    true,
		"auto_sync":    false,
		"sync_timeout": "30s",
		"telegram": map[string]any{
			"api_url": "https://api.telegram.org",
			"timeout": "10s",
		},
		"vercel": map[string]any{
			"api_url":      "https://api.vercel.com",
			"env_key":      "KEYWORDS",
			"targets":      []string{"development", "preview", "production"},
			"fallback_ref": "master",
			"timeout":      "15s",
		},
		"redis": map[string]any{
			"prefix": "tripwire:",
		},
	}
}

// Load builds the configuration. path may be empty; DefaultPath is allowed to
// be missing, any other path must exist. getenv is usually os.Getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	raw := defaults()

	if path == "" {
		path = DefaultPath
	}
	fileValues, err := readFile(path)
	if err != nil {
		return nil, err
	}
	merge(raw, fileValues)

	if getenv != nil {
		for env, key := range envKeys {
			if v := strings.TrimSpace(getenv(env)); v != "" {
				setPath(raw, key, v)
			}
		}
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.DecodeHookFuncType(stringToListHook),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultPath {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return values, nil
}

var int64Slice = reflect.TypeOf([]int64(nil))

// stringToListHook splits "a, b" strings into trimmed lists for slice fields.
// []int64 targets (owner IDs) are parsed strictly.
func stringToListHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
		return data, nil
	}
	if to == int64Slice {
		ids, err := access.ParseOwners(data.(string))
		if ids == nil && err == nil {
			ids = []int64{}
		}
		return ids, err
	}
	list := keywords.Split(data.(string))
	if list == nil {
		list = []string{}
	}
	return list, nil
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				merge(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
}

func setPath(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}
