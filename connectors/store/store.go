// Package store keeps the processed tables and the run history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"command-centre/domain/dashboard"
	"command-centre/domain/run"
)

// ErrNotFound is returned for unknown tables and when no run was recorded yet.
var ErrNotFound = errors.New("not found")

var (
	tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	internal  = map[string]bool{"runs": true, "schema_version": true}
)

// Store is a SQLite database holding one table per dashboard table, replaced on
// every run, plus the runs audit table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Name() string { return "sqlite" }

// Write replaces each table in one transaction. Column names are sanitized:
// blank headers become col_<i>, spaces and hyphens become underscores.
func (s *Store) Write(ctx context.Context, tables []*dashboard.MetricTable) error {
	for _, t := range tables {
		if !tableName.MatchString(t.Name) || internal[t.Name] {
			return fmt.Errorf("invalid table name %q", t.Name)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, t := range tables {
		if err := replaceTable(ctx, tx, t); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
	}
	return tx.Commit()
}

func replaceTable(ctx context.Context, tx *sql.Tx, t *dashboard.MetricTable) error {
	cols := SanitizeColumns(append([]string{t.LabelHeader}, t.Columns...))
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
		marks[i] = "?"
	}
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+quote(t.Name)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (%s)`, quote(t.Name), strings.Join(quoted, ", "))); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		quote(t.Name), strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range t.Rows {
		args := make([]any, 0, len(cols))
		args = append(args, r.Label)
		for _, c := range t.Columns {
			args = append(args, r.Value(c))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

// SanitizeColumns makes header labels usable as column names. Names that
// collide, case-insensitively, get a _<n> suffix.
func SanitizeColumns(header []string) []string {
	out := make([]string, len(header))
	seen := map[string]int{}
	for i, h := range header {
		c := strings.TrimSpace(h)
		if c == "" || strings.EqualFold(c, "nan") {
			c = fmt.Sprintf("col_%d", i)
		} else {
			c = strings.NewReplacer(" ", "_", "-", "_").Replace(c)
		}
		key := strings.ToLower(c)
		if n := seen[key]; n > 0 {
			c = fmt.Sprintf("%s_%d", c, n)
		}
		seen[key]++
		out[i] = c
	}
	return out
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Table is a stored table read back in insertion order.
type Table struct {
	Name    string           `json:"name"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// ReadTable returns the stored table called name.
func (s *Store) ReadTable(ctx context.Context, name string) (*Table, error) {
	if !tableName.MatchString(name) || internal[name] {
		return nil, ErrNotFound
	}
	var found string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s ORDER BY rowid`, quote(name)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := &Table{Name: name, Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = string(b)
			}
			rec[c] = vals[i]
		}
		out.Rows = append(out.Rows, rec)
	}
	return out, rows.Err()
}

// Tables lists the stored dashboard tables.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		if !internal[n] {
			out = append(out, n)
		}
	}
	return out, rows.Err()
}

// RecordRun appends r to the run history.
func (s *Store) RecordRun(ctx context.Context, r run.Run) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs(id, run_trigger, started_at, finished_at, status, tables, unmatched, unmapped, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Trigger,
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Status, strings.Join(r.Tables, ","), r.Unmatched, r.Unmapped, r.Error)
	return err
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (run.Run, error) {
	var (
		r              run.Run
		started, ended string
		tables         string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, run_trigger, started_at, finished_at, status, tables, unmatched, unmapped, error
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).
		Scan(&r.ID, &r.Trigger, &started, &ended, &r.Status, &tables, &r.Unmatched, &r.Unmapped, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	r.FinishedAt, _ = time.Parse(time.RFC3339Nano, ended)
	if tables != "" {
		r.Tables = strings.Split(tables, ",")
	}
	return r, nil
}
