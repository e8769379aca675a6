package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix     = "CHATRELAY"
	envConfigPath = "CHATRELAY_CONFIG"

	EmptyTextForward = "forward"
	EmptyTextSkip    = "skip"

	defaultTelegramTimeout   = 10 * time.Second
	defaultCompletionTimeout = 20 * time.Second
	defaultStoreTimeout      = 5 * time.Second

	DefaultFallback = "در حال حاضر سامانه پاسخگو نیست، لطفاً بعداً تلاش کنید."
	DefaultGreeting = "سلام! 👋 من دستیار هوشمند شما هستم. پیام خود را بنویسید تا پاسخ بدهم."
)

// Config is the root runtime configuration. It is loaded once at startup and
// treated as read-only afterwards.
type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Completion CompletionConfig `mapstructure:"completion"`
	Store      StoreConfig      `mapstructure:"store"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `mapstructure:"format"`
	Level     string `mapstructure:"level"`
	AddSource bool   `mapstructure:"add_source"`
}

// TelegramConfig configures the messaging platform client.
type TelegramConfig struct {
	Token   string        `mapstructure:"token"`
	APIBase string        `mapstructure:"api_base"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CompletionConfig selects and configures the completion provider.
type CompletionConfig struct {
	Provider     string        `mapstructure:"provider"`
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	SystemPrompt *string       `mapstructure:"system_prompt"`
	Fallback     string        `mapstructure:"fallback"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
}

// StoreConfig configures the optional exchange sink.
type StoreConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PipelineConfig holds message pipeline policy.
type PipelineConfig struct {
	Greeting  string `mapstructure:"greeting"`
	EmptyText string `mapstructure:"empty_text"`
}

// GatewayConfig configures HTTP bind settings.
type GatewayConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// envAliases maps config keys to the unprefixed environment names operators
// already use. The prefixed CHATRELAY_* form is always accepted too.
var envAliases = map[string][]string{
	"telegram.token":      {"TELEGRAM_BOT_TOKEN"},
	"telegram.api_base":   {"TELEGRAM_API_BASE"},
	"completion.provider": {"COMPLETION_PROVIDER"},
	"completion.api_key":  {"OPENROUTER_KEY", "OPENROUTER_API_KEY"},
	"completion.base_url": {"COMPLETION_BASE_URL"},
	"completion.model":    {"COMPLETION_MODEL"},
	"store.uri":           {"MONGO_URI", "STORE_URI"},
	"gateway.port":        {"PORT"},
}

// LoadConfig resolves the optional config file, layers environment variables on
// top, and decodes the result.
//
// path wins over CHATRELAY_CONFIG. With neither set, config.json or
// config.yaml in the working directory is used when present.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env values for keys viper already knows about.
	for _, key := range configKeys(reflect.TypeFor[Config](), "") {
		names := append([]string{envName(key)}, envAliases[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	configPath, err := findConfigPath(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.timeout", defaultTelegramTimeout)
	v.SetDefault("completion.provider", "openrouter")
	v.SetDefault("completion.model", "openrouter/auto")
	v.SetDefault("completion.fallback", DefaultFallback)
	v.SetDefault("completion.timeout", defaultCompletionTimeout)
	v.SetDefault("store.database", "chatrelay")
	v.SetDefault("store.timeout", defaultStoreTimeout)
	v.SetDefault("pipeline.greeting", DefaultGreeting)
	v.SetDefault("pipeline.empty_text", EmptyTextForward)
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 5000)
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.level", "info")
}

// normalize trims operator-supplied strings so later code can compare directly.
func normalize(cfg *Config) {
	cfg.Telegram.Token = strings.TrimSpace(cfg.Telegram.Token)
	cfg.Telegram.APIBase = strings.TrimRight(strings.TrimSpace(cfg.Telegram.APIBase), "/")
	cfg.Completion.Provider = strings.ToLower(strings.TrimSpace(cfg.Completion.Provider))
	cfg.Completion.APIKey = strings.TrimSpace(cfg.Completion.APIKey)
	cfg.Completion.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Completion.BaseURL), "/")
	cfg.Completion.Model = strings.TrimSpace(cfg.Completion.Model)
	cfg.Store.URI = strings.TrimSpace(cfg.Store.URI)
	cfg.Pipeline.EmptyText = strings.ToLower(strings.TrimSpace(cfg.Pipeline.EmptyText))

	// Zero means "use the default"; every outbound call stays bounded.
	cfg.Telegram.Timeout = orDefault(cfg.Telegram.Timeout, defaultTelegramTimeout)
	cfg.Completion.Timeout = orDefault(cfg.Completion.Timeout, defaultCompletionTimeout)
	cfg.Store.Timeout = orDefault(cfg.Store.Timeout, defaultStoreTimeout)
}

func orDefault(value, fallback time.Duration) time.Duration {
	if value == 0 {
		return fallback
	}
	return value
}

// configKeys lists the dotted mapstructure key of every leaf field.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := range t.NumField() {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			keys = append(keys, configKeys(field.Type, key)...)
			continue
		}
		keys = append(keys, key)
	}

	return keys
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Validate rejects configurations that cannot be served.
func (c *Config) Validate() error {
	switch c.Pipeline.EmptyText {
	case EmptyTextForward, EmptyTextSkip:
	default:
		return fmt.Errorf("pipeline.empty_text must be %q or %q, got %q", EmptyTextForward, EmptyTextSkip, c.Pipeline.EmptyText)
	}
	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port out of range: %d", c.Gateway.Port)
	}
	if c.Completion.Timeout <= 0 || c.Telegram.Timeout <= 0 || c.Store.Timeout <= 0 {
		return errors.New("timeouts must be positive")
	}

	return nil
}

// RequireTelegramToken reports a configuration error when no bot token is set.
func (c *Config) RequireTelegramToken() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required (set TELEGRAM_BOT_TOKEN)")
	}

	return nil
}

// findConfigPath resolves the active config file location.
//
// Precedence is the explicit path, then CHATRELAY_CONFIG, then cwd-local
// fallback paths. A missing fallback file is not an error.
func findConfigPath(explicit string) (string, error) {
	for _, value := range []string{strings.TrimSpace(explicit), strings.TrimSpace(os.Getenv(envConfigPath))} {
		if value == "" {
			continue
		}
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("config path does not point to a file: %s", value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
