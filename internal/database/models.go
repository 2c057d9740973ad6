package database

import "time"

// ChatMessage is one inbound chat message. Rows are append-only.
type ChatMessage struct {
	ID          int64     `db:"id"           json:"id"`
	MessageID   string    `db:"message_id"   json:"messageId"`
	UserID      string    `db:"user_id"      json:"userId"`
	DisplayName string    `db:"display_name" json:"username"`
	AvatarURL   *string   `db:"avatar_url"   json:"avatarUrl"`
	Text        string    `db:"text"         json:"text"`
	CreatedAt   time.Time `db:"created_at"   json:"createdAt"`
}

// TelegramUser is the single record kept per chat participant, including
// the latest synthesized psychological profile.
type TelegramUser struct {
	ID             int64     `db:"id"              json:"id"`
	UserID         string    `db:"user_id"         json:"userId"`
	Username       *string   `db:"username"        json:"username"`
	FirstName      string    `db:"first_name"      json:"firstName"`
	LastName       *string   `db:"last_name"       json:"lastName"`
	AvatarURL      *string   `db:"avatar_url"      json:"avatarUrl"`
	PsychoAnalysis *string   `db:"psycho_analysis" json:"psychoAnalysis"`
	CreatedAt      time.Time `db:"created_at"      json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updatedAt"`
}

// Identity holds the transport-supplied user fields that are refreshed on
// every message.
type Identity struct {
	Username  *string
	FirstName string
	LastName  *string
	AvatarURL *string
}

// Staff roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// StaffUser is a dashboard account.
type StaffUser struct {
	ID           int64     `db:"id"            json:"id"`
	Username     string    `db:"username"      json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role"          json:"role"`
	CreatedAt    time.Time `db:"created_at"    json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updatedAt"`
}
