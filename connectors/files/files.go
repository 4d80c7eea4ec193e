// Package files reads the configured run inputs from the upload directory.
// Workbooks (.xlsx, .xlsm) and .csv files are both accepted.
package files

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"command-centre/connectors/csv"
	"command-centre/connectors/xlsx"
	"command-centre/domain/calendar"
	"command-centre/domain/config"
	"command-centre/domain/dashboard"
	"command-centre/domain/roster"
)

// Source reads inputs as described by a config.
type Source struct {
	cfg *config.Config
}

func NewSource(cfg *config.Config) *Source {
	return &Source{cfg: cfg}
}

// ReadSheet reads sheet from the file at path, picking the reader by extension.
// The sheet name is ignored for .csv files.
func ReadSheet(path, sheet string) (dashboard.Sheet, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return csv.ReadSheet(path)
	}
	return xlsx.ReadSheet(path, sheet)
}

func (s *Source) read(ctx context.Context, ref config.FileRef) (dashboard.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref.File == "" {
		return nil, fmt.Errorf("no file configured")
	}
	path := s.cfg.InputPath(ref.File)
	sheet, err := ReadSheet(path, ref.Sheet)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return sheet, nil
}

// Records reads the operational snapshot.
func (s *Source) Records(ctx context.Context) ([]dashboard.Record, error) {
	in := s.cfg.Inputs.Snapshot
	sheet, err := s.read(ctx, in.FileRef)
	if err != nil {
		return nil, err
	}
	t, err := newTable(in.File, sheet, in.QueueColumn, in.DocumentColumn, in.LockColumn)
	if err != nil {
		return nil, err
	}
	out := make([]dashboard.Record, 0, len(t.rows))
	for _, rec := range t.rows {
		out = append(out, dashboard.Record{
			Queue:      t.get(rec, in.QueueColumn),
			DocumentID: t.get(rec, in.DocumentColumn),
			Lock:       dashboard.ParseLockStatus(t.get(rec, in.LockColumn)),
		})
	}
	return out, nil
}

// LayoutSheet reads one sheet of the layout workbook as a raw grid.
func (s *Source) LayoutSheet(ctx context.Context, sheet string) (dashboard.Sheet, error) {
	return s.read(ctx, config.FileRef{File: s.cfg.Inputs.Layout.File, Sheet: sheet})
}

// Mapping reads the doc-type to queue-description table.
func (s *Source) Mapping(ctx context.Context) (dashboard.DocTypeMapping, error) {
	in := s.cfg.Inputs.Mapping
	m := dashboard.NewDocTypeMapping()
	sheet, err := s.read(ctx, in.FileRef)
	if err != nil {
		return m, err
	}
	t, err := newTable(in.File, sheet, in.DocTypeColumn, in.QueueColumn)
	if err != nil {
		return m, err
	}
	for _, rec := range t.rows {
		m.Add(t.get(rec, in.DocTypeColumn), t.get(rec, in.QueueColumn))
	}
	return m, nil
}

// Extracts names the configured per-document extracts.
func (s *Source) Extracts() []string {
	names := make([]string, len(s.cfg.Inputs.Extracts))
	for i, e := range s.cfg.Inputs.Extracts {
		names[i] = e.Name
	}
	return names
}

// Documents reads the extract called name.
func (s *Source) Documents(ctx context.Context, name string) ([]dashboard.Document, error) {
	var in *config.Extract
	for i := range s.cfg.Inputs.Extracts {
		if s.cfg.Inputs.Extracts[i].Name == name {
			in = &s.cfg.Inputs.Extracts[i]
		}
	}
	if in == nil {
		return nil, fmt.Errorf("unknown extract %q", name)
	}
	sheet, err := s.read(ctx, in.FileRef)
	if err != nil {
		return nil, err
	}
	t, err := newTable(in.File, sheet, in.DocTypeColumn, in.DocumentColumn)
	if err != nil {
		return nil, err
	}
	out := make([]dashboard.Document, 0, len(t.rows))
	for _, rec := range t.rows {
		out = append(out, dashboard.Document{
			DocType:    t.get(rec, in.DocTypeColumn),
			DocumentID: t.get(rec, in.DocumentColumn),
		})
	}
	return out, nil
}

// Members reads the member master list.
func (s *Source) Members(ctx context.Context) ([]roster.Member, error) {
	in := s.cfg.Inputs.Roster
	sheet, err := s.read(ctx, in.FileRef)
	if err != nil {
		return nil, err
	}
	t, err := newTable(in.File, sheet, in.NameColumn, in.SupervisorColumn, in.ShiftColumn)
	if err != nil {
		return nil, err
	}
	out := make([]roster.Member, 0, len(t.rows))
	for _, rec := range t.rows {
		out = append(out, roster.Member{
			Name:       t.get(rec, in.NameColumn),
			Supervisor: t.get(rec, in.SupervisorColumn),
			Shift:      t.get(rec, in.ShiftColumn),
		})
	}
	return out, nil
}

// Events reads the calendar of events.
func (s *Source) Events(ctx context.Context) ([]calendar.Event, error) {
	sheet, err := s.read(ctx, s.cfg.Inputs.Calendar)
	if err != nil {
		return nil, err
	}
	return calendar.Events(sheet), nil
}

// table is a sheet whose first row is a header.
type table struct {
	idx  map[string]int
	rows [][]string
}

func newTable(file string, sheet dashboard.Sheet, required ...string) (*table, error) {
	if len(sheet) == 0 {
		return nil, fmt.Errorf("%s is empty", file)
	}
	idx := indexMap(sheet[0])
	for _, col := range required {
		if _, ok := idx[dashboard.NormalizeLabel(col)]; !ok {
			return nil, fmt.Errorf("%s missing column %s", file, col)
		}
	}
	return &table{idx: idx, rows: sheet[1:]}, nil
}

func (t *table) get(rec []string, col string) string {
	i, ok := t.idx[dashboard.NormalizeLabel(col)]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// indexMap maps normalized header labels to their first position.
func indexMap(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range dashboard.NormalizeLabels(header) {
		if _, ok := m[h]; !ok && h != "" {
			m[h] = i
		}
	}
	return m
}
