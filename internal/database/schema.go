package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS emergencies (
		id UUID PRIMARY KEY,
		emergency_number TEXT NOT NULL,
		emergency_date TEXT NOT NULL,
		emergency_keyword TEXT NOT NULL,
		emergency_description TEXT NOT NULL,
		emergency_location TEXT NOT NULL,
		groups TEXT[],
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deactivated_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_emergencies_active_created ON emergencies (created_at) WHERE active`,
	`CREATE TABLE IF NOT EXISTS devices (
		id UUID PRIMARY KEY,
		device_token TEXT UNIQUE NOT NULL,
		registration_token TEXT NOT NULL,
		platform TEXT NOT NULL CHECK (platform IN ('ios', 'android')),
		registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		first_name TEXT,
		last_name TEXT,
		qual_machinist BOOLEAN NOT NULL DEFAULT FALSE,
		qual_agt BOOLEAN NOT NULL DEFAULT FALSE,
		qual_paramedic BOOLEAN NOT NULL DEFAULT FALSE,
		leadership_role TEXT NOT NULL DEFAULT 'none'
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS device_groups (
		device_id UUID NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		group_code TEXT NOT NULL REFERENCES groups(code) ON DELETE CASCADE,
		assigned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (device_id, group_code)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_device_groups_group_code ON device_groups (group_code)`,
	`CREATE TABLE IF NOT EXISTS responses (
		id UUID PRIMARY KEY,
		emergency_id UUID NOT NULL REFERENCES emergencies(id) ON DELETE CASCADE,
		device_id UUID NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		participating BOOLEAN NOT NULL,
		responded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (emergency_id, device_id)
	)`,
}

// EnsureSchema creates missing tables and indexes. Every statement is
// idempotent so it runs on each start.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
