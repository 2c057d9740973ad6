package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/edgard/psyprofile/internal/database"
)

// Claims is the JWT payload handed to dashboard staff.
type Claims struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Auth issues and verifies staff bearer tokens and hashes passwords.
type Auth struct {
	secret     []byte
	ttl        time.Duration
	bcryptCost int
	now        func() time.Time
}

// NewAuth builds an Auth signing HS256 tokens valid for ttl.
func NewAuth(secret string, ttl time.Duration) *Auth {
	return &Auth{
		secret:     []byte(secret),
		ttl:        ttl,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// IssueToken signs a token for user.
func (a *Auth) IssueToken(user *database.StaffUser) (string, error) {
	now := a.now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a token and returns its claims.
func (a *Auth) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

// HashPassword returns the bcrypt hash of password.
func (a *Auth) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func (a *Auth) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CreateStaff hashes password and stores a new account.
func (a *Auth) CreateStaff(ctx context.Context, store database.StaffStore, username, password, role string) (*database.StaffUser, error) {
	hash, err := a.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &database.StaffUser{Username: username, PasswordHash: hash, Role: role}
	if err := store.CreateStaff(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SeedAdmin creates the admin account unless it already exists. An empty
// password disables seeding.
func (a *Auth) SeedAdmin(ctx context.Context, store database.StaffStore, username, password string, log *slog.Logger) error {
	if username == "" || password == "" {
		log.Debug("Admin seeding disabled")
		return nil
	}
	_, err := store.GetStaffByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("look up seed admin: %w", err)
	}

	if _, err := a.CreateStaff(ctx, store, username, password, database.RoleAdmin); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil
		}
		return fmt.Errorf("seed admin: %w", err)
	}
	log.Info("Seeded admin staff account", "username", username)
	return nil
}
