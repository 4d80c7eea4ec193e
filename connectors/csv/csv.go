package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"

	"command-centre/domain/dashboard"
)

// ReadSheet reads a CSV file as a raw grid. Rows may have different lengths.
func ReadSheet(path string) (dashboard.Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var sheet dashboard.Sheet
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		sheet = append(sheet, rec)
	}
	return sheet, nil
}

// WriteTables writes one <name>.csv per table into dir.
func WriteTables(dir string, tables []*dashboard.MetricTable) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, t := range tables {
		if err := WriteTable(filepath.Join(dir, t.Name+".csv"), t); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable writes t with its label column first.
func WriteTable(path string, t *dashboard.MetricTable) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write(append([]string{t.LabelHeader}, t.Columns...)); err != nil {
		return err
	}
	for _, r := range t.Rows {
		row := make([]string, 0, len(t.Columns)+1)
		row = append(row, r.Label)
		for _, c := range t.Columns {
			row = append(row, r.Text(c))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// DirSink exports every table of a run as CSV into Dir.
type DirSink struct {
	Dir string
}

func (s DirSink) Name() string { return "csv" }

func (s DirSink) Write(ctx context.Context, tables []*dashboard.MetricTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteTables(s.Dir, tables)
}
