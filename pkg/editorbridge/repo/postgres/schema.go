package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS node (
		id UUID PRIMARY KEY,
		parent_id UUID REFERENCES node(id),
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		type VARCHAR(100) NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		is_container BOOLEAN NOT NULL DEFAULT false,
		schemas TEXT[] NOT NULL DEFAULT '{}',
		hidden BOOLEAN NOT NULL DEFAULT false,
		trashed BOOLEAN NOT NULL DEFAULT false,
		is_version BOOLEAN NOT NULL DEFAULT false,
		is_proxy BOOLEAN NOT NULL DEFAULT false,
		version_label TEXT NOT NULL DEFAULT '',
		lifecycle_state TEXT NOT NULL DEFAULT '',
		lock_owner TEXT,
		lock_created TIMESTAMPTZ,
		content JSONB,
		views JSONB NOT NULL DEFAULT '{}'::jsonb,
		properties JSONB NOT NULL DEFAULT '{}'::jsonb,
		width INT,
		height INT,
		duration_ms BIGINT,
		tags TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		modified_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT node_unique_name UNIQUE (parent_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS node_parent_title_idx ON node (parent_id, title)`,
	`CREATE TABLE IF NOT EXISTS node_acl (
		node_id UUID NOT NULL REFERENCES node(id) ON DELETE CASCADE,
		principal TEXT NOT NULL,
		permission TEXT NOT NULL,
		PRIMARY KEY (node_id, principal, permission)
	)`,
	`CREATE TABLE IF NOT EXISTS node_sequence (
		name TEXT PRIMARY KEY,
		value BIGINT NOT NULL
	)`,
}

// Migrate creates the tables when missing and makes sure a root folder exists.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return r.handlePostgresError("migrate", err)
		}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO node (id, parent_id, name, path, type, title, is_container, schemas)
		SELECT $1, NULL, '', '/', 'Root', 'Root', true, ARRAY['dublincore']
		WHERE NOT EXISTS (SELECT 1 FROM node WHERE parent_id IS NULL)`, uuid.New())
	if err != nil {
		return fmt.Errorf("create root folder: %w", r.handlePostgresError("migrate", err))
	}
	return nil
}
