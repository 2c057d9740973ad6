// Package config provides configuration loading, validation, and management
// for the psyprofile application. Values come from defaults, an optional YAML
// file, an optional .env file, and BOT_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the whole application configuration. It is built once at
// startup and passed by reference to every component that needs it.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"         validate:"required,oneof=sqlite postgres"`
	DSN          string `mapstructure:"dsn"            validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"min=1,max=200"`
}

// TelegramConfig configures the bot transport.
type TelegramConfig struct {
	Token          string        `mapstructure:"token"            validate:"required"`
	AdminUserID    int64         `mapstructure:"admin_user_id"    validate:"gte=0"`
	Workers        int           `mapstructure:"workers"          validate:"min=1,max=256"`
	AvatarCacheTTL time.Duration `mapstructure:"avatar_cache_ttl" validate:"gte=0"`
}

// LLMConfig configures the chat-completion backend. Model, temperature and
// token budget are fixed per process and never passed per call.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"    validate:"required,oneof=mistral openai gemini"`
	APIKey      string        `mapstructure:"api_key"     validate:"required"`
	BaseURL     string        `mapstructure:"base_url"    validate:"omitempty,url"`
	Model       string        `mapstructure:"model"       validate:"required"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens   int           `mapstructure:"max_tokens"  validate:"min=1,max=32768"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"min=1s,max=10m"`
}

// PipelineConfig tunes the ingestion pipeline.
type PipelineConfig struct {
	ContextWindowSize int    `mapstructure:"context_window_size" validate:"min=1,max=500"`
	ContextPolicy     string `mapstructure:"context_policy"      validate:"required,oneof=shared per_user"`
}

// HTTPConfig configures the dashboard API.
type HTTPConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"                validate:"min=1,max=65535"`
	JWTSecret         string        `mapstructure:"jwt_secret"          validate:"required_if=Enabled true,omitempty,min=8"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"           validate:"min=1m"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	AllowRegistration bool          `mapstructure:"allow_registration"`
	SeedAdminUsername string        `mapstructure:"seed_admin_username"`
	SeedAdminPassword string        `mapstructure:"seed_admin_password"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"    validate:"min=1s"`
}

// Addr returns the listen address for the HTTP server.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// SchedulerConfig holds scheduled task settings keyed by task name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a task and sets its cron schedule (seconds field allowed).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// MessagesConfig holds user-facing bot replies.
type MessagesConfig struct {
	Welcome         string `mapstructure:"welcome"           validate:"required"`
	Help            string `mapstructure:"help"              validate:"required"`
	NotAuthorized   string `mapstructure:"not_authorized"    validate:"required"`
	ProfileUsage    string `mapstructure:"profile_usage"     validate:"required"`
	ProfileNotFound string `mapstructure:"profile_not_found" validate:"required"`
	NoProfile       string `mapstructure:"no_profile"        validate:"required"`
	ProfileCleared  string `mapstructure:"profile_cleared"   validate:"required"`
	GeneralError    string `mapstructure:"general_error"     validate:"required"`
}

// Load reads configuration from defaults, the optional YAML file at
// configPath, optional dotenv files, and the environment. It does not
// validate; callers pick Validate or ValidateDatabase depending on what they run.
func Load(configPath string, envFiles ...string) (*Config, error) {
	for _, envFile := range envFiles {
		if envFile == "" {
			continue
		}
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
			slog.Debug("Config file not found, using defaults and environment", "path", configPath)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()

	return cfg, nil
}

// bindLegacyEnv maps the environment names used by earlier deployments
// onto their config keys.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"telegram.token":  {"BOT_TELEGRAM_TOKEN", "BOT_TOKEN"},
		"llm.api_key":     {"BOT_LLM_API_KEY", "MISTRAL_API_KEY"},
		"database.dsn":    {"BOT_DATABASE_DSN", "DATABASE_URL"},
		"http.jwt_secret": {"BOT_HTTP_JWT_SECRET", "JWT_SECRET"},
		"http.port":       {"BOT_HTTP_PORT", "PORT"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = inferDriver(c.Database.DSN)
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultBaseURLs[c.LLM.Provider]
	}
	if c.Database.Driver == "sqlite" {
		c.Database.MaxOpenConns = 1
	}
}

func inferDriver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

// Validate checks everything needed to run the bot and the API.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ValidateDatabase checks only the settings needed to open the database,
// for commands that never talk to Telegram or the LLM.
func (c *Config) ValidateDatabase() error {
	if err := validator.New().Struct(c.Database); err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}
	return nil
}
