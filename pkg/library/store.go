// Package library persists the notebooks a user has registered and which
// one is active, so questions can name a notebook by a short id.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound   = errors.New("notebook not found")
	ErrNoActive   = errors.New("no active notebook; add one or pass a notebook id")
	ErrInvalidURL = errors.New("notebook url must be an absolute https url")
	ErrDuplicate  = errors.New("notebook url already in library")
)

const activeKey = "active_notebook"

// Notebook is one library entry.
type Notebook struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Topics      []string   `json:"topics,omitempty"`
	UseCount    int        `json:"use_count"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	Active      bool       `json:"active"`
}

// Target is a resolved notebook reference.
type Target struct {
	// ID is empty for a raw URL that is not in the library
	ID  string
	URL string
}

// Store is the SQLite-backed library.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the library database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS notebooks (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		topics_json TEXT NOT NULL DEFAULT '[]',
		use_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		last_used_at INTEGER
	);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Add registers a notebook. The id is derived from the name. The first
// notebook added becomes active.
func (s *Store) Add(ctx context.Context, nb Notebook) (*Notebook, error) {
	normalized, err := normalizeURL(nb.URL)
	if err != nil {
		return nil, err
	}
	nb.URL = normalized
	nb.Name = strings.TrimSpace(nb.Name)
	if nb.Name == "" {
		return nil, fmt.Errorf("notebook name is required")
	}

	if existing, err := s.byURL(ctx, nb.URL); err == nil {
		return nil, fmt.Errorf("%w as %q", ErrDuplicate, existing.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	id, err := s.uniqueID(ctx, slugify(nb.Name))
	if err != nil {
		return nil, err
	}
	nb.ID = id
	nb.CreatedAt = s.now().UTC().Truncate(time.Second)
	nb.UseCount = 0
	nb.LastUsedAt = nil

	topics, err := json.Marshal(cleanTopics(nb.Topics))
	if err != nil {
		return nil, fmt.Errorf("encode topics: %w", err)
	}

	query := `
	INSERT INTO notebooks (id, url, name, description, topics_json, use_count, created_at)
	VALUES (?, ?, ?, ?, ?, 0, ?)`
	if _, err := s.db.ExecContext(ctx, query, nb.ID, nb.URL, nb.Name, nb.Description, string(topics), nb.CreatedAt.Unix()); err != nil {
		return nil, fmt.Errorf("insert notebook: %w", err)
	}

	if _, err := s.activeID(ctx); errors.Is(err, ErrNoActive) {
		if err := s.setActive(ctx, nb.ID); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, nb.ID)
}

// Get returns the notebook with id.
func (s *Store) Get(ctx context.Context, id string) (*Notebook, error) {
	row := s.db.QueryRowContext(ctx, selectNotebook+` WHERE id = ?`, id)
	nb, err := scanNotebook(row)
	if err != nil {
		return nil, err
	}
	return s.markActive(ctx, nb)
}

// List returns every notebook in insertion order.
func (s *Store) List(ctx context.Context) ([]Notebook, error) {
	rows, err := s.db.QueryContext(ctx, selectNotebook+` ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query notebooks: %w", err)
	}
	defer rows.Close()

	active, err := s.activeID(ctx)
	if err != nil && !errors.Is(err, ErrNoActive) {
		return nil, err
	}

	var notebooks []Notebook
	for rows.Next() {
		nb, err := scanNotebook(rows)
		if err != nil {
			return nil, err
		}
		nb.Active = nb.ID == active
		notebooks = append(notebooks, *nb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notebooks: %w", err)
	}
	return notebooks, nil
}

// Remove deletes a notebook. Removing the active notebook makes the most
// recently used remaining one active.
func (s *Store) Remove(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notebooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete notebook: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	active, err := s.activeID(ctx)
	if err != nil && !errors.Is(err, ErrNoActive) {
		return err
	}
	if active != id {
		return nil
	}

	var next string
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM notebooks
		ORDER BY COALESCE(last_used_at, 0) DESC, created_at DESC, rowid DESC
		LIMIT 1`).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, activeKey)
		if err != nil {
			return fmt.Errorf("clear active notebook: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("select next active notebook: %w", err)
	}
	return s.setActive(ctx, next)
}

// Select makes id the active notebook.
func (s *Store) Select(ctx context.Context, id string) (*Notebook, error) {
	nb, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.setActive(ctx, id); err != nil {
		return nil, err
	}
	nb.Active = true
	return nb, nil
}

// Active returns the active notebook.
func (s *Store) Active(ctx context.Context) (*Notebook, error) {
	id, err := s.activeID(ctx)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Touch records one question asked against id.
func (s *Store) Touch(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notebooks SET use_count = use_count + 1, last_used_at = ? WHERE id = ?`,
		s.now().Unix(), id)
	if err != nil {
		return fmt.Errorf("update notebook usage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Resolve turns a reference into a notebook URL. An empty reference means
// the active notebook, an https URL is used as given, and anything else is
// a library id.
func (s *Store) Resolve(ctx context.Context, ref string) (Target, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		nb, err := s.Active(ctx)
		if err != nil {
			return Target{}, err
		}
		return Target{ID: nb.ID, URL: nb.URL}, nil
	}

	if strings.Contains(ref, "://") {
		normalized, err := normalizeURL(ref)
		if err != nil {
			return Target{}, err
		}
		if nb, err := s.byURL(ctx, normalized); err == nil {
			return Target{ID: nb.ID, URL: nb.URL}, nil
		}
		return Target{URL: normalized}, nil
	}

	nb, err := s.Get(ctx, ref)
	if err != nil {
		return Target{}, err
	}
	return Target{ID: nb.ID, URL: nb.URL}, nil
}

const selectNotebook = `
	SELECT id, url, name, description, topics_json, use_count, created_at, last_used_at
	FROM notebooks`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNotebook(row scanner) (*Notebook, error) {
	var (
		nb         Notebook
		topicsJSON string
		createdAt  int64
		lastUsed   sql.NullInt64
	)
	err := row.Scan(&nb.ID, &nb.URL, &nb.Name, &nb.Description, &topicsJSON, &nb.UseCount, &createdAt, &lastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan notebook row: %w", err)
	}

	if err := json.Unmarshal([]byte(topicsJSON), &nb.Topics); err != nil {
		return nil, fmt.Errorf("decode topics of %s: %w", nb.ID, err)
	}
	nb.CreatedAt = time.Unix(createdAt, 0).UTC()
	if lastUsed.Valid {
		t := time.Unix(lastUsed.Int64, 0).UTC()
		nb.LastUsedAt = &t
	}
	return &nb, nil
}

func (s *Store) byURL(ctx context.Context, u string) (*Notebook, error) {
	return scanNotebook(s.db.QueryRowContext(ctx, selectNotebook+` WHERE url = ?`, u))
}

func (s *Store) markActive(ctx context.Context, nb *Notebook) (*Notebook, error) {
	active, err := s.activeID(ctx)
	if err != nil && !errors.Is(err, ErrNoActive) {
		return nil, err
	}
	nb.Active = nb.ID == active
	return nb, nil
}

func (s *Store) activeID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, activeKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoActive
	}
	if err != nil {
		return "", fmt.Errorf("read active notebook: %w", err)
	}
	return id, nil
}

func (s *Store) setActive(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, activeKey, id)
	if err != nil {
		return fmt.Errorf("set active notebook: %w", err)
	}
	return nil
}

func (s *Store) uniqueID(ctx context.Context, base string) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		_, err := s.Get(ctx, candidate)
		if errors.Is(err, ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "notebook"
	}
	if len(slug) > 48 {
		slug = strings.TrimRight(slug[:48], "-")
	}
	return slug
}

func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	u.Fragment = ""
	return u.String(), nil
}

func cleanTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	seen := make(map[string]bool, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	return out
}
