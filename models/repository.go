package models

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicate          = errors.New("duplicate")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidReference is returned when a row points at a parent that does not exist.
	ErrInvalidReference   = errors.New("invalid reference")
)

// ===== Events (Mongo) =====
type EventRepository interface {
	ListByOwner(ctx context.Context, ownerID int64) ([]Event, error)
	ListByIDs(ctx context.Context, ids []string) ([]Event, error)
	GetByID(ctx context.Context, id string) (Event, error)
	GetBySlug(ctx context.Context, slug string) (Event, error)
	Create(ctx context.Context, e *Event) error
	Update(ctx context.Context, e *Event) error
	SetArchived(ctx context.Context, id string, at *time.Time) error
	Delete(ctx context.Context, id string) error
}

// ===== Users =====
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	ValidateCredentials(ctx context.Context, email, plain string) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
}

// ===== Admin grants =====
type AdminRepository interface {
	// Grant inserts the grant or replaces the role of an existing one.
	Grant(ctx context.Context, a *Admin) error
	Revoke(ctx context.Context, eventID string, userID int64) error
	Role(ctx context.Context, eventID string, userID int64) (string, error)
	ListByEvent(ctx context.Context, eventID string) ([]Admin, error)
	ListByUser(ctx context.Context, userID int64) ([]Admin, error)
	DeleteByEvent(ctx context.Context, eventID string) error
}

// ===== Items =====
type ItemRepository interface {
	ListByEvent(ctx context.Context, eventID string) ([]Item, error)
	GetByID(ctx context.Context, id string) (Item, error)
	GetBySlug(ctx context.Context, eventID, slug string) (Item, error)
	Create(ctx context.Context, it *Item) error
	Update(ctx context.Context, it *Item) error
	Delete(ctx context.Context, id string) error
}

// ===== Subjects =====
type SubjectRepository interface {
	ListByEvent(ctx context.Context, eventID string) ([]Subject, error)
	ListByItem(ctx context.Context, itemID string) ([]Subject, error)
	GetByID(ctx context.Context, id string) (Subject, error)
	Create(ctx context.Context, s *Subject) error
	Update(ctx context.Context, s *Subject) error
	Delete(ctx context.Context, id string) error
}

// ===== Locations =====
type LocationRepository interface {
	ListByEvent(ctx context.Context, eventID string) ([]Location, error)
	GetByID(ctx context.Context, id string) (Location, error)
	// SearchByZip matches zip codes starting with prefix, optionally within one event.
	SearchByZip(ctx context.Context, prefix, eventID string) ([]Location, error)
	Create(ctx context.Context, l *Location) error
	Update(ctx context.Context, l *Location) error
	Delete(ctx context.Context, id string) error
}

// ===== Votes =====
type VoteRepository interface {
	Insert(ctx context.Context, v *Vote) error
	// Choices returns one row per vote on any of subjectIDs, filtered by
	// locationID when it is not empty.
	Choices(ctx context.Context, subjectIDs []string, locationID string) ([]VoteChoice, error)
	// Since returns votes on subjectID created at or after since, oldest first.
	Since(ctx context.Context, subjectID, locationID string, since time.Time) ([]Vote, error)
}
