// Package xlsx reads source workbooks and writes the processed dashboard
// workbook.
package xlsx

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"command-centre/domain/dashboard"
)

// maxSheetName is the sheet name length limit of the file format.
const maxSheetName = 31

// ReadSheet returns the rows of sheet in the workbook at path. An empty sheet
// name selects the first sheet.
func ReadSheet(path, sheet string) (dashboard.Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return rows(f, sheet)
}

// ReadSheetFrom is ReadSheet over an in-memory workbook.
func ReadSheetFrom(r io.Reader, sheet string) (dashboard.Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return rows(f, sheet)
}

func rows(f *excelize.File, sheet string) (dashboard.Sheet, error) {
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = list[0]
	}
	rs, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	return dashboard.Sheet(rs), nil
}

// Summary describes an uploaded sheet: its data shape below the header row and
// the first few records keyed by header.
type Summary struct {
	Rows    int                 `json:"rows"`
	Cols    int                 `json:"cols"`
	Preview []map[string]string `json:"preview"`
}

// Summarize treats row 0 of sheet as the header.
func Summarize(sheet dashboard.Sheet, preview int) Summary {
	if len(sheet) == 0 {
		return Summary{Preview: []map[string]string{}}
	}
	header := dashboard.UniqueLabels(sheet[0])
	for i, h := range header {
		if h == "" {
			header[i] = fmt.Sprintf("Unnamed: %d", i)
		}
	}
	s := Summary{Rows: len(sheet) - 1, Cols: len(header), Preview: []map[string]string{}}
	for _, row := range sheet[1:] {
		if len(s.Preview) == preview {
			break
		}
		rec := make(map[string]string, len(header))
		for i, h := range header {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			rec[h] = v
		}
		s.Preview = append(s.Preview, rec)
	}
	return s
}

// WriteWorkbook writes one sheet per table, in order, with the label column
// first. Counts are written as numbers.
func WriteWorkbook(path string, tables []*dashboard.MetricTable) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, t := range tables {
		name := sheetName(t)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
		if err := writeTable(f, name, t); err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.SaveAs(path)
}

func writeTable(f *excelize.File, sheet string, t *dashboard.MetricTable) error {
	set := func(col, row int, v any) error {
		ref, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, ref, v)
	}
	header := append([]string{t.LabelHeader}, t.Columns...)
	for i, h := range header {
		if err := set(i+1, 1, h); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		if err := set(1, r+2, row.Label); err != nil {
			return err
		}
		for c, col := range t.Columns {
			if err := set(c+2, r+2, row.Value(col)); err != nil {
				return err
			}
		}
	}
	return nil
}

func sheetName(t *dashboard.MetricTable) string {
	name := t.Sheet
	if name == "" {
		name = t.Name
	}
	for utf8.RuneCountInString(name) > maxSheetName {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return name
}

// WorkbookSink writes each run to a new time-stamped workbook in Dir.
type WorkbookSink struct {
	Dir    string
	Prefix string
	Now    func() time.Time
}

// Path is the workbook path for a run at now.
func (s WorkbookSink) Path(now time.Time) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s_%s.xlsx", s.Prefix, now.Format("20060102_150405")))
}

func (s WorkbookSink) Name() string { return "workbook" }

func (s WorkbookSink) Write(ctx context.Context, tables []*dashboard.MetricTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	return WriteWorkbook(s.Path(now), tables)
}
