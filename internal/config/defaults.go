package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration.
const (
	DefaultLogLevel = "info"

	DefaultDBDSN          = "storage.db"
	DefaultDBMaxOpenConns = 10

	DefaultTelegramWorkers        = 8
	DefaultTelegramAvatarCacheTTL = 30 * time.Minute

	DefaultLLMProvider    = "mistral"
	DefaultLLMModel       = "mistral-large-latest"
	DefaultLLMTemperature = 0.8
	DefaultLLMMaxTokens   = 1000
	DefaultLLMTimeout     = 45 * time.Second

	DefaultContextWindowSize = 50
	DefaultContextPolicy     = "shared"

	DefaultHTTPPort            = 3000
	DefaultHTTPTokenTTL        = 24 * time.Hour
	DefaultHTTPShutdownTimeout = 10 * time.Second
	DefaultSeedAdminUsername   = "admin"

	DefaultSQLMaintenanceSchedule = "0 30 4 * * *"
	DefaultStoreHealthSchedule    = "0 */5 * * * *"
)

var defaultBaseURLs = map[string]string{
	"mistral": "https://api.mistral.ai/v1",
	"openai":  "https://api.openai.com/v1",
}

// DefaultAllowedOrigins lists the dashboard dev-server origins.
var DefaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"http://localhost:3000",
}

// DefaultMessages holds the bot reply texts.
var DefaultMessages = MessagesConfig{
	Welcome:         "👋 Hi! I quietly keep notes on this chat for the team dashboard.",
	Help:            "Commands:\n/start - greeting\n/help - this message\n/profile <user_id> - show a profile (admin)\n/clear_profile <user_id> - clear a profile (admin)",
	NotAuthorized:   "🚫 You are not authorized to use this command.",
	ProfileUsage:    "ℹ️ Usage: /profile <user_id> or /clear_profile <user_id>",
	ProfileNotFound: "🤷 No such user.",
	NoProfile:       "📭 No profile has been synthesized for this user yet.",
	ProfileCleared:  "🧹 Profile cleared.",
	GeneralError:    "❌ An error occurred. Please try again later.",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", false)

	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", DefaultDBDSN)
	v.SetDefault("database.max_open_conns", DefaultDBMaxOpenConns)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_id", 0)
	v.SetDefault("telegram.workers", DefaultTelegramWorkers)
	v.SetDefault("telegram.avatar_cache_ttl", DefaultTelegramAvatarCacheTTL)

	v.SetDefault("llm.provider", DefaultLLMProvider)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", DefaultLLMModel)
	v.SetDefault("llm.temperature", DefaultLLMTemperature)
	v.SetDefault("llm.max_tokens", DefaultLLMMaxTokens)
	v.SetDefault("llm.timeout", DefaultLLMTimeout)

	v.SetDefault("pipeline.context_window_size", DefaultContextWindowSize)
	v.SetDefault("pipeline.context_policy", DefaultContextPolicy)

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.host", "")
	v.SetDefault("http.port", DefaultHTTPPort)
	v.SetDefault("http.jwt_secret", "")
	v.SetDefault("http.token_ttl", DefaultHTTPTokenTTL)
	v.SetDefault("http.allowed_origins", DefaultAllowedOrigins)
	v.SetDefault("http.allow_registration", false)
	v.SetDefault("http.seed_admin_username", DefaultSeedAdminUsername)
	v.SetDefault("http.seed_admin_password", "")
	v.SetDefault("http.shutdown_timeout", DefaultHTTPShutdownTimeout)

	v.SetDefault("scheduler.tasks", map[string]any{
		"sql_maintenance": map[string]any{
			"enabled":  true,
			"schedule": DefaultSQLMaintenanceSchedule,
		},
		"store_health": map[string]any{
			"enabled":  true,
			"schedule": DefaultStoreHealthSchedule,
		},
	})

	v.SetDefault("messages.welcome", DefaultMessages.Welcome)
	v.SetDefault("messages.help", DefaultMessages.Help)
	v.SetDefault("messages.not_authorized", DefaultMessages.NotAuthorized)
	v.SetDefault("messages.profile_usage", DefaultMessages.ProfileUsage)
	v.SetDefault("messages.profile_not_found", DefaultMessages.ProfileNotFound)
	v.SetDefault("messages.no_profile", DefaultMessages.NoProfile)
	v.SetDefault("messages.profile_cleared", DefaultMessages.ProfileCleared)
	v.SetDefault("messages.general_error", DefaultMessages.GeneralError)
}
