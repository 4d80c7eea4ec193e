package dashboard

import (
	"fmt"
	"strings"
	"time"
)

// Column names shared by the layout templates and the engine.
const (
	ColQueueName            = "QueueName"
	ColPRO                  = "PRO Queue"
	ColQC                   = "QC Queue"
	ColLockedPRO            = "User Locked PRO"
	ColLockedQC             = "User Locked QC"
	ColProcessed            = "Processed Volumes"
	ColReso                 = "Reso Queue"
	ColProPersonalFolders   = "PRO Personal Folders"
	ColResoPersonalFolders  = "RESO Personal Folders"
	ColProFTELocked         = "PRO FTE Locked"
	ColResoFTELocked        = "RESO FTE Locked"
	ColAccepted             = "Accepted Volumes"
	ColQCed                 = "QC'ed Volumes"
	ColResolutionsCompleted = "Resolutions Completed Volumes"
	ColSLACompleted         = "SLA % Completed"
	ColTotal                = "Total"
	ColTotal1               = "Total_1"
	ColTotal2               = "Total_2"

	bulletinBoard = "Bulletin Board"
)

// NumericMetrics lists, in rollup order, the columns summed into category,
// other-bucket and grand-total rows.
var NumericMetrics = []string{
	ColPRO, ColQC, ColLockedPRO, ColLockedQC,
	ColProcessed, ColReso,
	ColProPersonalFolders, ColResoPersonalFolders,
	ColAccepted, ColQCed, ColResolutionsCompleted,
}

// PlaceholderMetrics are filled by a downstream workflow; the engine writes 0.
var PlaceholderMetrics = []string{ColAccepted, ColQCed, ColResolutionsCompleted, ColSLACompleted}

// MetricTable is an ordered table of labelled rows. Columns keep their order;
// each cell is either an integer count or template text.
type MetricTable struct {
	// Name identifies the table in the tabular store.
	Name string
	// Sheet is the workbook sheet the table is written to.
	Sheet string
	// LabelHeader is the header of the row-label column.
	LabelHeader string
	Columns     []string
	Rows        []*Row
}

// Row is one labelled row of a MetricTable.
type Row struct {
	Label  string
	values map[string]int
	text   map[string]string
}

// NewTable returns an empty table with the given columns.
func NewTable(name, sheet, labelHeader string, columns []string) *MetricTable {
	return &MetricTable{
		Name:        name,
		Sheet:       sheet,
		LabelHeader: labelHeader,
		Columns:     append([]string(nil), columns...),
	}
}

// AddRow appends a row and returns it.
func (t *MetricTable) AddRow(label string) *Row {
	r := &Row{Label: label, values: map[string]int{}, text: map[string]string{}}
	t.Rows = append(t.Rows, r)
	return r
}

// HasColumn reports whether col is one of the table's columns.
func (t *MetricTable) HasColumn(col string) bool {
	return t.columnIndex(col) >= 0
}

func (t *MetricTable) columnIndex(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// EnsureColumn appends col when the table does not already have it.
func (t *MetricTable) EnsureColumn(col string) {
	if !t.HasColumn(col) {
		t.Columns = append(t.Columns, col)
	}
}

// RenameColumn renames a column in place, carrying its cells along.
func (t *MetricTable) RenameColumn(from, to string) {
	i := t.columnIndex(from)
	if i < 0 || from == to {
		return
	}
	t.Columns[i] = to
	for _, r := range t.Rows {
		if v, ok := r.values[from]; ok {
			r.values[to] = v
			delete(r.values, from)
		}
		if s, ok := r.text[from]; ok {
			r.text[to] = s
			delete(r.text, from)
		}
	}
}

// RowsLabeled returns every row whose label matches label after normalization.
func (t *MetricTable) RowsLabeled(label string) []*Row {
	key := JoinKey(label)
	var out []*Row
	for _, r := range t.Rows {
		if JoinKey(r.Label) == key {
			out = append(out, r)
		}
	}
	return out
}

// Row returns the first row labelled label.
func (t *MetricTable) Row(label string) (*Row, bool) {
	rows := t.RowsLabeled(label)
	if len(rows) == 0 {
		return nil, false
	}
	return rows[0], true
}

// Labels returns row labels in order.
func (t *MetricTable) Labels() []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Label
	}
	return out
}

// PresentMetrics filters cols down to the ones the table has, keeping order.
func (t *MetricTable) PresentMetrics(cols []string) []string {
	var out []string
	for _, c := range cols {
		if t.HasColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// SetColumn writes counts into col for every row, adding the column if needed.
// Rows whose label has no entry get 0.
func (t *MetricTable) SetColumn(col string, counts Counts) {
	t.EnsureColumn(col)
	for _, r := range t.Rows {
		r.SetInt(col, counts.Get(r.Label))
	}
}

// FillColumn writes v into col for every row, adding the column if needed.
func (t *MetricTable) FillColumn(col string, v int) {
	t.EnsureColumn(col)
	for _, r := range t.Rows {
		r.SetInt(col, v)
	}
}

// Int returns the integer value of col. Template text is coerced leniently.
func (r *Row) Int(col string) int {
	if v, ok := r.values[col]; ok {
		return v
	}
	return LenientInt(r.text[col])
}

// SetInt stores a count, replacing any text in that cell. Negative values are
// clamped to 0.
func (r *Row) SetInt(col string, v int) {
	r.values[col] = max(v, 0)
	delete(r.text, col)
}

// Text returns the text of col, or the formatted count for numeric cells.
func (r *Row) Text(col string) string {
	if v, ok := r.values[col]; ok {
		return fmt.Sprint(v)
	}
	return r.text[col]
}

// SetText stores template text, replacing any count in that cell.
func (r *Row) SetText(col, s string) {
	r.text[col] = s
	delete(r.values, col)
}

// IsInt reports whether col holds a count.
func (r *Row) IsInt(col string) bool {
	_, ok := r.values[col]
	return ok
}

// Value returns the cell as an int for counts or a string otherwise; sinks use
// it to keep numeric cells numeric.
func (r *Row) Value(col string) any {
	if v, ok := r.values[col]; ok {
		return v
	}
	return r.text[col]
}

// BulletinHeader is the time-stamped header of the annotation column.
func BulletinHeader(now time.Time) string {
	return fmt.Sprintf("%s (Generated at %s)", bulletinBoard, now.Format("03:04 PM"))
}

// StampBulletin renames every bulletin-board column to the time-stamped header
// and blanks its cells.
func StampBulletin(t *MetricTable, now time.Time) {
	for _, col := range RenameBulletin(t, now) {
		for _, r := range t.Rows {
			r.SetText(col, "")
		}
	}
}

// RenameBulletin renames every bulletin-board column to the time-stamped
// header, keeping its cells. Later columns get a _n suffix. It returns the new
// names.
func RenameBulletin(t *MetricTable, now time.Time) []string {
	header := BulletinHeader(now)
	var renamed []string
	for _, col := range append([]string(nil), t.Columns...) {
		if !strings.Contains(col, bulletinBoard) {
			continue
		}
		to := header
		if n := len(renamed); n > 0 {
			to = fmt.Sprintf("%s_%d", header, n)
		}
		t.RenameColumn(col, to)
		renamed = append(renamed, to)
	}
	return renamed
}
