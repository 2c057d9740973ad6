package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// MessageStore is the append-only log of chat messages.
type MessageStore interface {
	// Append stores msg, assigning its ID and CreatedAt.
	Append(ctx context.Context, msg *ChatMessage) error
	// Recent returns up to limit messages across all users, newest first.
	Recent(ctx context.Context, limit int) ([]ChatMessage, error)
	// ByUser returns up to limit messages of one user, newest first.
	ByUser(ctx context.Context, userID string, limit int) ([]ChatMessage, error)
}

// UserStore keeps one TelegramUser per user_id.
type UserStore interface {
	// FindOrCreate returns the record for userID, inserting one built from
	// defaults when none exists. created is true only for the inserting call.
	FindOrCreate(ctx context.Context, userID string, defaults Identity) (user *TelegramUser, created bool, err error)
	UpdateIdentity(ctx context.Context, userID string, identity Identity) error
	// UpdateProfile replaces psycho_analysis. A nil profile clears it.
	UpdateProfile(ctx context.Context, userID string, profile *string) error
	Get(ctx context.Context, userID string) (*TelegramUser, error)
	ClearProfile(ctx context.Context, userID string) error
	List(ctx context.Context) ([]TelegramUser, error)
}

// StaffStore holds dashboard accounts.
type StaffStore interface {
	CreateStaff(ctx context.Context, user *StaffUser) error
	GetStaffByUsername(ctx context.Context, username string) (*StaffUser, error)
	GetStaffByID(ctx context.Context, id int64) (*StaffUser, error)
}

// Store defines the interface for database operations.
type Store interface {
	MessageStore
	UserStore
	StaffStore

	// Ping checks the database connection.
	Ping(ctx context.Context) error
	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageError("ping", err)
	}
	return nil
}

const messageColumns = `id, message_id, user_id, display_name, avatar_url, text, created_at`

// Append inserts a new message record.
func (s *sqlxStore) Append(ctx context.Context, msg *ChatMessage) error {
	if msg == nil {
		return fmt.Errorf("%w: cannot save nil message", ErrInvalidInput)
	}
	if msg.MessageID == "" {
		return fmt.Errorf("%w: message must have a message_id", ErrInvalidInput)
	}
	if msg.UserID == "" {
		return fmt.Errorf("%w: message must have a user_id", ErrInvalidInput)
	}
	if strings.TrimSpace(msg.Text) == "" {
		return fmt.Errorf("%w: message must have non-empty text", ErrInvalidInput)
	}

	msg.CreatedAt = s.now()

	query := s.db.Rebind(`
        INSERT INTO messages (message_id, user_id, display_name, avatar_url, text, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
        RETURNING id;
    `)
	err := s.db.QueryRowxContext(ctx, query,
		msg.MessageID, msg.UserID, msg.DisplayName, msg.AvatarURL, msg.Text, msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message",
			"message_id", msg.MessageID, "user_id", msg.UserID, "error", err)
		return storageError(fmt.Sprintf("failed to save message %s", msg.MessageID), err)
	}

	s.logger.DebugContext(ctx, "Message saved successfully",
		"message_id", msg.MessageID, "user_id", msg.UserID, "id", msg.ID)
	return nil
}

// Recent retrieves the most recent messages across all users.
func (s *sqlxStore) Recent(ctx context.Context, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}

	messages := []ChatMessage{}
	query := s.db.Rebind(`SELECT ` + messageColumns + `
        FROM messages
        ORDER BY created_at DESC, id DESC
        LIMIT ?;`)
	if err := s.db.SelectContext(ctx, &messages, query, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error fetching recent messages", "limit", limit, "error", err)
		return nil, storageError("failed to fetch recent messages", err)
	}
	return messages, nil
}

// ByUser retrieves the most recent messages of one user.
func (s *sqlxStore) ByUser(ctx context.Context, userID string, limit int) ([]ChatMessage, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id cannot be empty", ErrInvalidInput)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}

	messages := []ChatMessage{}
	query := s.db.Rebind(`SELECT ` + messageColumns + `
        FROM messages
        WHERE user_id = ?
        ORDER BY created_at DESC, id DESC
        LIMIT ?;`)
	if err := s.db.SelectContext(ctx, &messages, query, userID, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error fetching user messages", "user_id", userID, "error", err)
		return nil, storageError(fmt.Sprintf("failed to fetch messages for user %s", userID), err)
	}
	return messages, nil
}

const userColumns = `id, user_id, username, first_name, last_name, avatar_url, psycho_analysis, created_at, updated_at`

// FindOrCreate inserts the user unless it already exists and returns the stored row.
// The insert relies on the UNIQUE(user_id) constraint, so concurrent callers
// for the same id converge on one row and exactly one of them sees created.
func (s *sqlxStore) FindOrCreate(ctx context.Context, userID string, defaults Identity) (*TelegramUser, bool, error) {
	if userID == "" {
		return nil, false, fmt.Errorf("%w: user_id cannot be empty", ErrInvalidInput)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, storageError("failed to begin transaction", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	now := s.now()
	insert := tx.Rebind(`
        INSERT INTO telegram_users (user_id, username, first_name, last_name, avatar_url, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (user_id) DO NOTHING;
    `)
	result, err := tx.ExecContext(ctx, insert,
		userID, defaults.Username, defaults.FirstName, defaults.LastName, defaults.AvatarURL, now, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting telegram user", "user_id", userID, "error", err)
		return nil, false, storageError(fmt.Sprintf("failed to insert user %s", userID), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, storageError("failed to read rows affected", err)
	}

	var user TelegramUser
	query := tx.Rebind(`SELECT ` + userColumns + ` FROM telegram_users WHERE user_id = ?;`)
	if err := tx.GetContext(ctx, &user, query, userID); err != nil {
		return nil, false, storageError(fmt.Sprintf("failed to load user %s", userID), err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, storageError("failed to commit transaction", err)
	}

	created := affected == 1
	if created {
		s.logger.InfoContext(ctx, "Telegram user created", "user_id", userID)
	}
	return &user, created, nil
}

// UpdateIdentity overwrites the transport-supplied fields of a user.
func (s *sqlxStore) UpdateIdentity(ctx context.Context, userID string, identity Identity) error {
	query := s.db.Rebind(`
        UPDATE telegram_users
        SET username = ?, first_name = ?, last_name = ?, avatar_url = ?, updated_at = ?
        WHERE user_id = ?;
    `)
	return s.updateUser(ctx, "update identity", userID, query,
		identity.Username, identity.FirstName, identity.LastName, identity.AvatarURL, s.now(), userID)
}

// UpdateProfile replaces the stored psychological profile.
func (s *sqlxStore) UpdateProfile(ctx context.Context, userID string, profile *string) error {
	query := s.db.Rebind(`UPDATE telegram_users SET psycho_analysis = ?, updated_at = ? WHERE user_id = ?;`)
	return s.updateUser(ctx, "update profile", userID, query, profile, s.now(), userID)
}

// ClearProfile removes the stored profile. Clearing an already empty
// profile succeeds; an unknown user yields ErrNotFound.
func (s *sqlxStore) ClearProfile(ctx context.Context, userID string) error {
	query := s.db.Rebind(`UPDATE telegram_users SET psycho_analysis = NULL, updated_at = ? WHERE user_id = ?;`)
	return s.updateUser(ctx, "clear profile", userID, query, s.now(), userID)
}

func (s *sqlxStore) updateUser(ctx context.Context, op, userID, query string, args ...any) error {
	if userID == "" {
		return fmt.Errorf("%w: user_id cannot be empty", ErrInvalidInput)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating telegram user", "op", op, "user_id", userID, "error", err)
		return storageError(fmt.Sprintf("failed to %s for user %s", op, userID), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storageError("failed to read rows affected", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s for user %s: %w", op, userID, ErrNotFound)
	}
	return nil
}

// Get retrieves a user by its transport id.
func (s *sqlxStore) Get(ctx context.Context, userID string) (*TelegramUser, error) {
	var user TelegramUser
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM telegram_users WHERE user_id = ?;`)
	if err := s.db.GetContext(ctx, &user, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil, storageError(fmt.Sprintf("failed to load user %s", userID), err)
	}
	return &user, nil
}

// List returns all users, newest first.
func (s *sqlxStore) List(ctx context.Context) ([]TelegramUser, error) {
	users := []TelegramUser{}
	query := `SELECT ` + userColumns + ` FROM telegram_users ORDER BY created_at DESC, id DESC;`
	if err := s.db.SelectContext(ctx, &users, query); err != nil {
		return nil, storageError("failed to list users", err)
	}
	return users, nil
}

const staffColumns = `id, username, password_hash, role, created_at, updated_at`

// CreateStaff inserts a dashboard account.
func (s *sqlxStore) CreateStaff(ctx context.Context, user *StaffUser) error {
	if user == nil || user.Username == "" || user.PasswordHash == "" {
		return fmt.Errorf("%w: staff user needs a username and password hash", ErrInvalidInput)
	}
	if user.Role == "" {
		user.Role = RoleUser
	}
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now

	query := s.db.Rebind(`
        INSERT INTO staff_users (username, password_hash, role, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
        RETURNING id;
    `)
	err := s.db.QueryRowxContext(ctx, query,
		user.Username, user.PasswordHash, user.Role, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("staff user %s: %w", user.Username, ErrConflict)
		}
		return storageError(fmt.Sprintf("failed to create staff user %s", user.Username), err)
	}
	return nil
}

// GetStaffByUsername retrieves a dashboard account by login name.
func (s *sqlxStore) GetStaffByUsername(ctx context.Context, username string) (*StaffUser, error) {
	return s.getStaff(ctx, "username", username)
}

// GetStaffByID retrieves a dashboard account by id.
func (s *sqlxStore) GetStaffByID(ctx context.Context, id int64) (*StaffUser, error) {
	return s.getStaff(ctx, "id", id)
}

func (s *sqlxStore) getStaff(ctx context.Context, column string, value any) (*StaffUser, error) {
	var user StaffUser
	query := s.db.Rebind(`SELECT ` + staffColumns + ` FROM staff_users WHERE ` + column + ` = ?;`)
	if err := s.db.GetContext(ctx, &user, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("staff user %v: %w", value, ErrNotFound)
		}
		return nil, storageError("failed to load staff user", err)
	}
	return &user, nil
}

// RunSQLMaintenance vacuums the database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	statement := "VACUUM;"
	if s.db.DriverName() == "pgx" {
		statement = "VACUUM ANALYZE;"
	}

	s.logger.InfoContext(ctx, "Starting database maintenance", "statement", statement)
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, statement); err != nil {
		s.logger.ErrorContext(ctx, "Database maintenance failed", "error", err, "duration", time.Since(start))
		return storageError("failed to run maintenance", err)
	}
	s.logger.InfoContext(ctx, "Database maintenance completed", "duration", time.Since(start))
	return nil
}
