package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/gardensite/internal/apperr"
	"github.com/starford/gardensite/internal/models"
)

// Row is one catalogued document.
type Row struct {
	Path       string
	Kind       models.Kind
	Title      string
	Type       string
	Visibility string
	Status     string
	Fields     models.Fields
	Checksum   string
	UpdatedAt  time.Time
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	Kind       models.Kind
	Visibility string
}

// SearchResult is one search hit.
type SearchResult struct {
	Path    string
	Title   string
	Snippet string
}

// Upsert inserts or replaces a document row, its search entry and its
// outgoing links within a transaction.
func (db *DB) Upsert(r Row, body string, links []string) error {
	fieldsJSON, err := json.Marshal(r.Fields)
	if err != nil {
		return fmt.Errorf("catalog: encode fields: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.Exec(`
		INSERT INTO documents (path, kind, title, doc_type, visibility, status, fields, body, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			kind       = excluded.kind,
			title      = excluded.title,
			doc_type   = excluded.doc_type,
			visibility = excluded.visibility,
			status     = excluded.status,
			fields     = excluded.fields,
			body       = excluded.body,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, r.Path, string(r.Kind), r.Title, r.Type, r.Visibility, r.Status, string(fieldsJSON), body, r.Checksum, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert document: %w", err)
	}

	if err := ftsUpsert(tx, r.Path, r.Title, body); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, r.Path); err != nil {
		return fmt.Errorf("catalog: clear links: %w", err)
	}
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("catalog: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(r.Path, target); err != nil {
				return fmt.Errorf("catalog: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Delete removes a document, its search entry and its outgoing links.
func (db *DB) Delete(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, path); err != nil {
		return fmt.Errorf("catalog: delete links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("catalog: delete document: %w", err)
	}
	return tx.Commit()
}

const rowColumns = `path, kind, title, doc_type, visibility, status, fields, checksum, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (Row, error) {
	var (
		r          Row
		kind       string
		fieldsJSON string
	)
	if err := s.Scan(&r.Path, &kind, &r.Title, &r.Type, &r.Visibility, &r.Status, &fieldsJSON, &r.Checksum, &r.UpdatedAt); err != nil {
		return Row{}, err
	}
	r.Kind = models.Kind(kind)
	if err := json.Unmarshal([]byte(fieldsJSON), &r.Fields); err != nil {
		return Row{}, fmt.Errorf("catalog: decode fields of %s: %w", r.Path, err)
	}
	return r, nil
}

// Get returns the row for path, or an error wrapping apperr.ErrNotFound.
func (db *DB) Get(path string) (*Row, error) {
	r, err := scanRow(db.conn.QueryRow(`SELECT `+rowColumns+` FROM documents WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get: %w", err)
	}
	return &r, nil
}

// List returns matching rows sorted by path.
func (db *DB) List(f ListFilter) ([]Row, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Visibility != "" {
		where = append(where, "visibility = ?")
		args = append(args, f.Visibility)
	}
	q := `SELECT ` + rowColumns + ` FROM documents`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY path`

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Checksums returns the stored checksum of every catalogued path.
func (db *DB) Checksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("catalog: checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Backlinks returns the paths of documents linking to target, sorted.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("catalog: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
