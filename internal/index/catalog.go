// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-intake/pkg/types"
)

// Catalog is a SQLite full-text catalog of completed artifacts.
type Catalog struct {
	db   *sql.DB
	path string
}

// OpenCatalog opens or creates the catalog database at path.
func OpenCatalog(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	c := &Catalog{db: db, path: path}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}
	return c, nil
}

// Close releases the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			key TEXT PRIMARY KEY,
			month TEXT NOT NULL,
			title TEXT NOT NULL,
			artifact_path TEXT NOT NULL,
			relevance TEXT,
			artifact_mod_time TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_month ON papers(month)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS papers_fts USING fts4(key, title, body)`,
	}
	for _, stmt := range statements {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SyncSummary holds counts from one catalog sync.
type SyncSummary struct {
	Indexed int
	Skipped int
	Removed int
	Failed  int
}

// Sync makes the catalog hold exactly the complete records. Artifacts whose
// modification time is unchanged are skipped; resolve maps an artifact path
// to the file to read.
func (c *Catalog) Sync(ctx context.Context, records []types.PaperRecord, resolve func(string) string) (SyncSummary, error) {
	var sum SyncSummary

	known, err := c.modTimes(ctx)
	if err != nil {
		return sum, err
	}

	complete := make(map[string]bool)
	for _, r := range records {
		if r.Status != types.StatusComplete || r.ArtifactPath == "" {
			continue
		}
		complete[r.Key] = true

		info, err := os.Stat(resolve(r.ArtifactPath))
		if err != nil {
			sum.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)
		if prev, ok := known[r.Key]; ok && prev == modTime {
			sum.Skipped++
			continue
		}

		body, err := os.ReadFile(resolve(r.ArtifactPath))
		if err != nil {
			sum.Failed++
			continue
		}
		if err := c.put(ctx, r, string(body), modTime); err != nil {
			return sum, err
		}
		sum.Indexed++
	}

	for key := range known {
		if complete[key] {
			continue
		}
		if err := c.remove(ctx, key); err != nil {
			return sum, err
		}
		sum.Removed++
	}
	return sum, nil
}

func (c *Catalog) modTimes(ctx context.Context) (map[string]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key, COALESCE(artifact_mod_time, '') FROM papers`)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, mod string
		if err := rows.Scan(&key, &mod); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out[key] = mod
	}
	return out, rows.Err()
}

func (c *Catalog) put(ctx context.Context, r types.PaperRecord, body, modTime string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM papers_fts WHERE key = ?`, r.Key); err != nil {
		return fmt.Errorf("clearing %s: %w", r.Key, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO papers_fts(key, title, body) VALUES (?, ?, ?)`,
		r.Key, r.Title, body,
	); err != nil {
		return fmt.Errorf("indexing %s: %w", r.Key, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO papers (key, month, title, artifact_path, relevance, artifact_mod_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Key, r.Month, r.Title, r.ArtifactPath, string(r.Relevance), modTime,
	); err != nil {
		return fmt.Errorf("upserting %s: %w", r.Key, err)
	}
	return tx.Commit()
}

func (c *Catalog) remove(ctx context.Context, key string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM papers_fts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE key = ?`, key); err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return tx.Commit()
}

// SearchResult is one catalog hit.
type SearchResult struct {
	Key          string               `json:"key"`
	Title        string               `json:"title"`
	Month        string               `json:"month"`
	ArtifactPath string               `json:"artifact_path"`
	Relevance    types.RelevanceLevel `json:"relevance,omitempty"`
	Snippet      string               `json:"snippet"`
}

// Search runs an FTS4 MATCH query. Hits come back most recent month
// first; limit <= 0 means 20.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT p.key, p.title, p.month, p.artifact_path, COALESCE(p.relevance, ''),
			snippet(papers_fts, '[', ']', '...', 2, 16)
		FROM papers_fts
		JOIN papers p ON p.key = papers_fts.key
		WHERE papers_fts MATCH ?
		ORDER BY p.month DESC, p.key
		LIMIT ?`,
		query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching catalog: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			sr  SearchResult
			rel string
		)
		if err := rows.Scan(&sr.Key, &sr.Title, &sr.Month, &sr.ArtifactPath, &rel, &sr.Snippet); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		sr.Relevance = types.RelevanceLevel(rel)
		results = append(results, sr)
	}
	return results, rows.Err()
}
