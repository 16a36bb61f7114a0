package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-_]+$`)

// ValidSlug reports whether s only holds lowercase letters, digits, hyphens and underscores.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

type Item struct {
	ID        string    `json:"id" db:"id"`
	EventID   string    `json:"event_id" db:"event_id"`
	Slug      string    `json:"item_slug" db:"item_slug"`
	Name      string    `json:"name" db:"name"`
	ItemID    *string   `json:"item_id" db:"item_id"` // 外部系統的編號
	Category  *string   `json:"category" db:"category"`
	ImageURL  *string   `json:"image_url" db:"image_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks the fields an organizer sets; the message is shown as is.
func (it Item) Validate() error {
	if strings.TrimSpace(it.Slug) == "" || strings.TrimSpace(it.Name) == "" {
		return errors.New("Item slug and name are required")
	}
	if !ValidSlug(it.Slug) {
		return errors.New("Item slug can only contain lowercase letters, numbers, hyphens, and underscores")
	}
	return nil
}

const (
	DefaultPosLabel = "Recommend"
	DefaultNegLabel = "Not Recommended"
)

type Subject struct {
	ID        string    `json:"id" db:"id"`
	EventID   string    `json:"event_id" db:"event_id"`
	ItemID    *string   `json:"item_id" db:"item_id"` // nil = event-level question
	Label     string    `json:"label" db:"label"`
	PosLabel  string    `json:"pos_label" db:"pos_label"`
	NegLabel  string    `json:"neg_label" db:"neg_label"`
	Metadata  JSONMap   `json:"metadata" db:"metadata"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewDefaultSubject builds the implicit "rate this item" question created with an item.
func NewDefaultSubject(eventID, itemID string) Subject {
	return Subject{
		EventID:  eventID,
		ItemID:   &itemID,
		Label:    "",
		PosLabel: DefaultPosLabel,
		NegLabel: DefaultNegLabel,
		Metadata: JSONMap{"is_default": true},
	}
}

// IsDefault reports whether s is an item's implicit rating question:
// empty label and metadata.is_default set.
func (s Subject) IsDefault() bool {
	if s.Label != "" {
		return false
	}
	v, ok := s.Metadata["is_default"].(bool)
	return ok && v
}

type Location struct {
	ID        string    `json:"id" db:"id"`
	EventID   string    `json:"event_id" db:"event_id"`
	Name      string    `json:"name" db:"name"`
	Address   *string   `json:"address" db:"address"`
	City      *string   `json:"city" db:"city"`
	ZipCode   *string   `json:"zip_code" db:"zip_code"`
	Lat       *float64  `json:"lat" db:"lat"`
	Lon       *float64  `json:"lon" db:"lon"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (l Location) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return errors.New("Location name is required")
	}
	if l.Lat != nil && (*l.Lat < -90 || *l.Lat > 90) {
		return errors.New("Latitude must be between -90 and 90")
	}
	if l.Lon != nil && (*l.Lon < -180 || *l.Lon > 180) {
		return errors.New("Longitude must be between -180 and 180")
	}
	return nil
}

// Vote is an immutable up/down answer to a subject.
type Vote struct {
	ID         string    `json:"id" db:"id"`
	SubjectID  string    `json:"subject_id" db:"subject_id"`
	LocationID *string   `json:"location_id" db:"location_id"`
	UserID     *int64    `json:"user_id" db:"user_id"`
	UserIP     string    `json:"user_ip" db:"user_ip"`
	Choice     bool      `json:"choice" db:"choice"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// VoteChoice is the projection the aggregator reads.
type VoteChoice struct {
	SubjectID string `db:"subject_id"`
	Choice    bool   `db:"choice"`
}

// JSONMap maps a JSONB column to a Go map.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("JSONMap: unsupported type %T", src)
	}
	return json.Unmarshal(b, m)
}
