// Package migrate applies SQL migrations and seed data from an
// embedded filesystem.
package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Apply runs every .sql file under migrations/ in lexicographic order,
// recording each in schema_migrations so reruns are no-ops.
func Apply(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id BIGSERIAL PRIMARY KEY,
			filename TEXT NOT NULL UNIQUE,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var count int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM schema_migrations WHERE filename = $1", name).Scan(&count); err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if count > 0 {
			continue
		}

		content, err := fs.ReadFile(fsys, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to apply %s: %w", name, err)
		}

		checksum := fmt.Sprintf("%x", sha256.Sum256(content))
		if _, err := db.ExecContext(ctx,
			"INSERT INTO schema_migrations (filename, checksum) VALUES ($1, $2)", name, checksum); err != nil {
			return fmt.Errorf("failed to record %s: %w", name, err)
		}
	}

	return nil
}

type seedFile struct {
	Version    int `yaml:"version"`
	Categories []struct {
		Name         string `yaml:"name"`
		TrackingType string `yaml:"tracking_type"`
		Description  string `yaml:"description"`
	} `yaml:"categories"`
}

// SeedDefaultCategories loads seed/default_categories.yaml and inserts
// the categories for the given organization. Existing names are left
// untouched, so the seed is safe to run on every deploy.
func SeedDefaultCategories(ctx context.Context, db *sql.DB, fsys fs.FS, orgID int64) error {
	raw, err := fs.ReadFile(fsys, "seed/default_categories.yaml")
	if err != nil {
		return fmt.Errorf("failed to read category seed: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("failed to parse category seed: %w", err)
	}

	for _, c := range seed.Categories {
		if c.TrackingType != "serialized" && c.TrackingType != "bulk" {
			return fmt.Errorf("seed category %q has invalid tracking_type %q", c.Name, c.TrackingType)
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO asset_categories (org_id, name, tracking_type, description)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (org_id, name) DO NOTHING`,
			orgID, c.Name, c.TrackingType, c.Description); err != nil {
			return fmt.Errorf("failed to seed category %q: %w", c.Name, err)
		}
	}

	return nil
}
