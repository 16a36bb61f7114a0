package models

import "time"

type Event struct {
	ID         string         `json:"id" bson:"id"` // UUID（跨庫統一鍵）
	Title      string         `json:"title" bson:"title"`
	Slug       string         `json:"slug" bson:"slug"`
	OwnerID    int64          `json:"owner_id" bson:"owner_id"` // 建立者（來自 SQL users）
	IsPremium  bool           `json:"is_premium" bson:"is_premium"`
	ArchivedAt *time.Time     `json:"archived_at" bson:"archived_at"`
	Metadata   map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" bson:"updated_at"`
}

// Archived reports whether voting is disabled for the event.
func (e Event) Archived() bool {
	return e.ArchivedAt != nil
}

const (
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Admin grants a user access to an event they do not own.
type Admin struct {
	EventID   string    `json:"event_id" db:"event_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type User struct {
	ID        int64  `json:"id" db:"id"`
	Email     string `json:"email" db:"email"`
	Password  string `json:"-" db:"password"`
	Name      string `json:"name" db:"name"`
	IsPremium bool   `json:"is_premium" db:"is_premium"`
}
