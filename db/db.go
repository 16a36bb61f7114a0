package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	return db, nil
}

// CreateSchema creates all tables. Safe to call multiple times.
func CreateSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "create schema")
	}
	return nil
}

// events 存在 Mongo，event_id 沒有外鍵；id 一律存 uuid 字串
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	is_premium BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS admins (
	event_id TEXT NOT NULL,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	role TEXT NOT NULL CHECK (role IN ('editor', 'viewer')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (event_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_admins_user_id ON admins(user_id);

CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL,
	item_slug TEXT NOT NULL,
	name TEXT NOT NULL,
	item_id TEXT,
	category TEXT,
	image_url TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (event_id, item_slug)
);

CREATE TABLE IF NOT EXISTS subjects (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL,
	item_id TEXT REFERENCES items(id) ON DELETE CASCADE,
	label TEXT NOT NULL DEFAULT '',
	pos_label TEXT NOT NULL,
	neg_label TEXT NOT NULL,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_subjects_event_id ON subjects(event_id);
CREATE INDEX IF NOT EXISTS idx_subjects_item_id ON subjects(item_id);

-- at most one default subject per item
CREATE UNIQUE INDEX IF NOT EXISTS idx_subjects_default_per_item
	ON subjects(item_id) WHERE (metadata->>'is_default') = 'true';

CREATE TABLE IF NOT EXISTS locations (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL,
	name TEXT NOT NULL,
	address TEXT,
	city TEXT,
	zip_code TEXT,
	lat DOUBLE PRECISION,
	lon DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_locations_event_id ON locations(event_id);
CREATE INDEX IF NOT EXISTS idx_locations_zip_code ON locations(zip_code);

CREATE TABLE IF NOT EXISTS votes (
	id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
	location_id TEXT REFERENCES locations(id) ON DELETE SET NULL,
	user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
	user_ip TEXT,
	choice BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_votes_subject_created ON votes(subject_id, created_at);
CREATE INDEX IF NOT EXISTS idx_votes_location_id ON votes(location_id);
`
