package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgard/psyprofile/internal/config"
	"github.com/edgard/psyprofile/internal/database"
)

const (
	defaultMessageLimit = 100
	maxMessageLimit     = 500
)

type handlers struct {
	store Store
	auth  *Auth
	cfg   *config.HTTPConfig
	log   *slog.Logger
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type staffView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func viewOf(u *database.StaffUser) staffView {
	return staffView{ID: u.ID, Username: u.Username, Role: u.Role}
}

func (h *handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "message": "database unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "API is working"})
}

func (h *handlers) bindCredentials(c *gin.Context) (credentials, bool) {
	var creds credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return creds, false
	}
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return creds, false
	}
	return creds, true
}

func (h *handlers) login(c *gin.Context) {
	creds, ok := h.bindCredentials(c)
	if !ok {
		return
	}

	user, err := h.store.GetStaffByUsername(c.Request.Context(), creds.Username)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		h.internalError(c, "Failed to login", err)
		return
	}
	if user == nil || !h.auth.CheckPassword(user.PasswordHash, creds.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *handlers) register(c *gin.Context) {
	if !h.cfg.AllowRegistration {
		c.JSON(http.StatusForbidden, gin.H{"error": "Registration is disabled"})
		return
	}
	creds, ok := h.bindCredentials(c)
	if !ok {
		return
	}

	user, err := h.auth.CreateStaff(c.Request.Context(), h.store, creds.Username, creds.Password, database.RoleUser)
	switch {
	case errors.Is(err, database.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
		return
	case err != nil:
		h.internalError(c, "Failed to register user", err)
		return
	}

	h.log.InfoContext(c.Request.Context(), "Staff account registered", "username", user.Username)
	h.respondWithToken(c, http.StatusCreated, user)
}

func (h *handlers) respondWithToken(c *gin.Context, status int, user *database.StaffUser) {
	token, err := h.auth.IssueToken(user)
	if err != nil {
		h.internalError(c, "Failed to issue token", err)
		return
	}
	c.JSON(status, gin.H{"token": token, "user": viewOf(user)})
}

func (h *handlers) me(c *gin.Context) {
	claims := currentClaims(c)
	if claims == nil {
		abortUnauthorized(c)
		return
	}
	user, err := h.store.GetStaffByID(c.Request.Context(), claims.UserID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		abortUnauthorized(c)
		return
	case err != nil:
		h.internalError(c, "Failed to get user information", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": viewOf(user)})
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultMessageLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return min(limit, maxMessageLimit), true
}

func (h *handlers) listMessages(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	var (
		messages []database.ChatMessage
		err      error
	)
	if userID := c.Query("userId"); userID != "" {
		messages, err = h.store.ByUser(c.Request.Context(), userID, limit)
	} else {
		messages, err = h.store.Recent(c.Request.Context(), limit)
	}
	if err != nil {
		h.internalError(c, "Failed to fetch messages", err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *handlers) listUsers(c *gin.Context) {
	users, err := h.store.List(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to fetch telegram users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *handlers) getUser(c *gin.Context) {
	user, err := h.store.Get(c.Request.Context(), c.Param("userId"))
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case err != nil:
		h.internalError(c, "Failed to fetch telegram user", err)
	default:
		c.JSON(http.StatusOK, user)
	}
}

func (h *handlers) userMessages(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	userID := c.Param("userId")
	if _, err := h.store.Get(c.Request.Context(), userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.internalError(c, "Failed to fetch telegram user", err)
		return
	}
	messages, err := h.store.ByUser(c.Request.Context(), userID, limit)
	if err != nil {
		h.internalError(c, "Failed to fetch messages", err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *handlers) clearProfile(c *gin.Context) {
	userID := c.Param("userId")
	err := h.store.ClearProfile(c.Request.Context(), userID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case err != nil:
		h.internalError(c, "Failed to clear psycho analysis", err)
	default:
		actor := ""
		if claims := currentClaims(c); claims != nil {
			actor = claims.Username
		}
		h.log.InfoContext(c.Request.Context(), "Profile cleared", "user_id", userID, "staff", actor)
		c.JSON(http.StatusOK, gin.H{"message": "Psycho analysis cleared"})
	}
}

func (h *handlers) internalError(c *gin.Context, msg string, err error) {
	_ = c.Error(err)
	h.log.ErrorContext(c.Request.Context(), msg, "error", err, "path", c.FullPath())
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
