/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	_ "github.com/jackc/pgx/v5/stdlib"

	"comiclayers/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a comic id is unknown to the gallery.
var ErrNotFound = errors.New("comic not found")

// ComicSummary is the listing projection of a published comic.
type ComicSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	PanelCount int       `json:"panel_count"`
	Owner      string    `json:"owner"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store persists published comics. Document is the serialized comic.
type Store interface {
	Ping(ctx context.Context) error
	ListComics(ctx context.Context, query string) ([]ComicSummary, error)
	GetComic(ctx context.Context, id string) ([]byte, error)
	PutComic(ctx context.Context, c domain.Comic, document []byte, owner string) (ComicSummary, error)
}

// searchText is the text a published comic is found by.
func searchText(c domain.Comic) string {
	parts := []string{c.Title}
	for _, p := range c.Panels {
		parts = append(parts, p.Title, p.Description)
		for _, e := range p.Elements {
			parts = append(parts, e.Name)
		}
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// PGStore keeps comics in Postgres through the pgx database/sql driver.
type PGStore struct {
	db *sql.DB
}

// OpenPG opens the database, checks connectivity and applies migrations.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(pctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PGStore{db: db}, nil
}

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *PGStore) ListComics(ctx context.Context, query string) ([]ComicSummary, error) {
	q := `SELECT id, title, panel_count, owner, version, updated_at FROM comics`
	var args []any
	if strings.TrimSpace(query) != "" {
		q += ` WHERE search_vector @@ plainto_tsquery('simple', $1)`
		args = append(args, query)
	}
	q += ` ORDER BY updated_at DESC, id LIMIT 200`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list comics: %w", err)
	}
	defer rows.Close()
	list := []ComicSummary{}
	for rows.Next() {
		var c ComicSummary
		if err := rows.Scan(&c.ID, &c.Title, &c.PanelCount, &c.Owner, &c.Version, &c.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (s *PGStore) GetComic(ctx context.Context, id string) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document::text FROM comics WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comic: %w", err)
	}
	return []byte(doc), nil
}

func (s *PGStore) PutComic(ctx context.Context, c domain.Comic, document []byte, owner string) (ComicSummary, error) {
	var out ComicSummary
	err := s.db.QueryRowContext(ctx, `
INSERT INTO comics (id, title, panel_count, document, search_text, owner)
VALUES ($1, $2, $3, $4::jsonb, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    panel_count = EXCLUDED.panel_count,
    document = EXCLUDED.document,
    search_text = EXCLUDED.search_text,
    owner = EXCLUDED.owner,
    version = comics.version + 1,
    updated_at = now()
RETURNING id, title, panel_count, owner, version, updated_at`,
		c.ID, c.Title, len(c.Panels), string(document), searchText(c), owner,
	).Scan(&out.ID, &out.Title, &out.PanelCount, &out.Owner, &out.Version, &out.UpdatedAt)
	if err != nil {
		return ComicSummary{}, fmt.Errorf("put comic: %w", err)
	}
	return out, nil
}

// applyMigrations applies embedded SQL migrations in filename order and
// records each in schema_migrations.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		slog.Info("applying migration", slog.String("file", fname))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES ($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	prefix, _, _ := strings.Cut(path.Base(name), "_")
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

// MemoryStore is an in-process Store for development servers and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	comics map[string]memComic
	now    func() time.Time
}

type memComic struct {
	summary ComicSummary
	doc     []byte
	search  string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{comics: map[string]memComic{}, now: time.Now}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) ListComics(_ context.Context, query string) ([]ComicSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	terms := strings.Fields(strings.ToLower(query))
	list := []ComicSummary{}
	for _, c := range m.comics {
		if matchesAll(c.search, terms) {
			list = append(list, c.summary)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func matchesAll(text string, terms []string) bool {
	words := strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
	for _, t := range terms {
		found := false
		for _, w := range words {
			if w == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *MemoryStore) GetComic(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comics[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), c.doc...), nil
}

func (m *MemoryStore) PutComic(_ context.Context, c domain.Comic, document []byte, owner string) (ComicSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	version := int64(1)
	if prev, ok := m.comics[c.ID]; ok {
		version = prev.summary.Version + 1
	}
	s := ComicSummary{
		ID: c.ID, Title: c.Title, PanelCount: len(c.Panels),
		Owner: owner, Version: version, UpdatedAt: m.now().UTC(),
	}
	m.comics[c.ID] = memComic{summary: s, doc: append([]byte(nil), document...), search: strings.ToLower(searchText(c))}
	return s, nil
}
