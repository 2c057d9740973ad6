// Package api serves the staff dashboard REST API: authentication, chat
// messages, Telegram users and their profiles.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgard/psyprofile/internal/config"
	"github.com/edgard/psyprofile/internal/database"
	"github.com/edgard/psyprofile/internal/logger"
)

// Store is the persistence surface the API reads and writes.
type Store interface {
	database.MessageStore
	database.UserStore
	database.StaffStore
	Ping(ctx context.Context) error
}

// Deps holds what the router needs.
type Deps struct {
	Config *config.HTTPConfig
	Store  Store
	Auth   *Auth
	Logger *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps) *gin.Engine {
	log := deps.Logger.With("component", "api")
	h := &handlers{store: deps.Store, auth: deps.Auth, cfg: deps.Config, log: log}

	r := gin.New()
	r.Use(logger.RequestID(), logger.RequestLogger(log), gin.Recovery())
	if len(deps.Config.AllowedOrigins) > 0 {
		r.Use(CORS(deps.Config.AllowedOrigins))
	}

	api := r.Group("/api")
	api.GET("/health", h.health)

	auth := api.Group("/auth")
	auth.POST("/login", h.login)
	auth.POST("/register", h.register)
	auth.GET("/me", RequireAuth(deps.Auth), h.me)

	protected := api.Group("", RequireAuth(deps.Auth))
	protected.GET("/messages", h.listMessages)
	protected.GET("/telegram-users", h.listUsers)
	protected.GET("/telegram-users/:userId", h.getUser)
	protected.GET("/telegram-users/:userId/messages", h.userMessages)
	protected.DELETE("/telegram-users/:userId/psycho-analysis", h.clearProfile)

	return r
}

// NewServer wraps the router in an http.Server listening on cfg.Addr().
func NewServer(deps Deps) *http.Server {
	return &http.Server{
		Addr:              deps.Config.Addr(),
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
