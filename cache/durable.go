package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/formagent/formagent/profile"
)

// Durable is the last-known-good copy of the cache host's state: the
// profile and the disabled-site set, each under a fixed key in a small
// SQLite key-value table. It is written through on every successful cache
// update and read only when the remote store is unreachable.
type Durable struct {
	db *sql.DB
}

const (
	keyProfile       = "profile"
	keyDisabledSites = "disabled_sites"
)

const durableSchema = `
	CREATE TABLE IF NOT EXISTS cache_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
`

// OpenDurable opens (creating if needed) the durable state database.
func OpenDurable(path string) (*Durable, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("cache: mkdir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open durable: %w", err)
	}
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("cache: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(durableSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: durable schema: %w", err)
	}
	return &Durable{db: db}, nil
}

// Close releases the database.
func (d *Durable) Close() error { return d.db.Close() }

func (d *Durable) put(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO cache_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache: durable put %s: %w", key, err)
	}
	return nil
}

func (d *Durable) get(key string) (string, bool, error) {
	var v string
	err := d.db.QueryRow(`SELECT value FROM cache_state WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: durable get %s: %w", key, err)
	}
	return v, true, nil
}

// StoreProfile writes the profile through to durable storage.
func (d *Durable) StoreProfile(p *profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("cache: encode profile: %w", err)
	}
	return d.put(keyProfile, string(data))
}

// LoadProfile reads the last persisted profile; ok is false when none has
// ever been stored.
func (d *Durable) LoadProfile() (*profile.Profile, bool, error) {
	raw, ok, err := d.get(keyProfile)
	if err != nil || !ok {
		return nil, false, err
	}
	var p profile.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false, fmt.Errorf("cache: decode durable profile: %w", err)
	}
	return &p, true, nil
}

// StoreDisabledSites persists the disabled-site set.
func (d *Durable) StoreDisabledSites(hosts map[string]bool) error {
	list := make([]string, 0, len(hosts))
	for h, disabled := range hosts {
		if disabled {
			list = append(list, h)
		}
	}
	sort.Strings(list)
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("cache: encode disabled sites: %w", err)
	}
	return d.put(keyDisabledSites, string(data))
}

// LoadDisabledSites reads the persisted disabled-site set; an empty map
// when none has been stored.
func (d *Durable) LoadDisabledSites() (map[string]bool, error) {
	raw, ok, err := d.get(keyDisabledSites)
	if err != nil {
		return nil, err
	}
	hosts := make(map[string]bool)
	if !ok {
		return hosts, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("cache: decode disabled sites: %w", err)
	}
	for _, h := range list {
		hosts[h] = true
	}
	return hosts, nil
}
