// Package store implements the remote profile store: the source of truth
// the cache synchronizes against. It persists the profile and per-domain
// field mappings in SQLite and serves them over HTTP.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/formagent/formagent/profile"
)

// profileRowID is the single profile row. Multi-profile is out of scope.
const profileRowID = "default"

const schema = `
	CREATE TABLE IF NOT EXISTS user_data (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS form_mappings (
		id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		form_id TEXT NOT NULL DEFAULT '',
		field_name TEXT NOT NULL,
		field_type TEXT,
		user_field TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 1.0,
		created_at INTEGER NOT NULL,
		UNIQUE(domain, form_id, field_name)
	);
	CREATE INDEX IF NOT EXISTS idx_form_mappings_domain ON form_mappings(domain);
`

// Store persists profiles and form mappings.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store database at path.
func Open(path string) (*Store, error) {
	db, err := openDB(path, schema)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// GetProfile returns the stored profile, or an empty profile when none has
// been saved yet (matching the original server's empty-object response).
func (s *Store) GetProfile(ctx context.Context) (*profile.Profile, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM user_data WHERE id = ?`, profileRowID).Scan(&data)
	if err == sql.ErrNoRows {
		return profile.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get profile: %w", err)
	}

	var p profile.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("store: decode profile: %w", err)
	}
	return &p, nil
}

// SaveProfile replaces the stored profile wholesale.
func (s *Store) SaveProfile(ctx context.Context, p *profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("store: encode profile: %w", err)
	}

	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_data (id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, profileRowID, string(data), now, now)
	if err != nil {
		return fmt.Errorf("store: save profile: %w", err)
	}
	return nil
}

// Mapping is a learned association between a site's field name and a
// canonical profile key.
type Mapping struct {
	ID         string  `json:"id,omitempty"`
	Domain     string  `json:"domain"`
	FormID     string  `json:"form_id,omitempty"`
	FieldName  string  `json:"field_name"`
	FieldType  string  `json:"field_type,omitempty"`
	UserField  string  `json:"user_field"`
	Confidence float64 `json:"confidence"`
}

// SaveMapping upserts a field mapping for a domain.
func (s *Store) SaveMapping(ctx context.Context, m Mapping) error {
	if m.Domain == "" || m.FieldName == "" || m.UserField == "" {
		return fmt.Errorf("store: mapping requires domain, field_name, user_field")
	}
	if m.Confidence == 0 {
		m.Confidence = 1.0
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO form_mappings (id, domain, form_id, field_name, field_type, user_field, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain, form_id, field_name) DO UPDATE SET
			field_type = excluded.field_type,
			user_field = excluded.user_field,
			confidence = excluded.confidence
	`, uuid.NewString(), m.Domain, m.FormID, m.FieldName, m.FieldType, m.UserField, m.Confidence, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: save mapping: %w", err)
	}
	return nil
}

// Mappings returns the mappings for a domain, optionally narrowed to one
// form, ordered by descending confidence.
func (s *Store) Mappings(ctx context.Context, domain, formID string) ([]Mapping, error) {
	query := `SELECT id, domain, form_id, field_name, COALESCE(field_type,''), user_field, confidence
		FROM form_mappings WHERE domain = ?`
	args := []any{domain}
	if formID != "" {
		query += ` AND form_id = ?`
		args = append(args, formID)
	}
	query += ` ORDER BY confidence DESC, field_name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query mappings: %w", err)
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		var m Mapping
		if err := rows.Scan(&m.ID, &m.Domain, &m.FormID, &m.FieldName, &m.FieldType, &m.UserField, &m.Confidence); err != nil {
			return nil, fmt.Errorf("store: scan mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
