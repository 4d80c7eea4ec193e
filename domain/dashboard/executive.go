package dashboard

import (
	"fmt"
	"strings"
	"time"
)

// Executive view columns.
const (
	ExecLabelHeader   = "Executive View"
	ColExecProcessing = "Total Outstanding Processing Volumes"
	ColExecQC         = "Total Outstanding Quality Control Volumes"

	categorySuffix = " - Total"
)

// MissingRowError reports a structural precondition violation: a row the
// executive view depends on is absent from its source table.
type MissingRowError struct {
	Table string
	Row   string
}

func (e *MissingRowError) Error() string {
	if e.Row == "" {
		return fmt.Sprintf("executive view: source table %q not available", e.Table)
	}
	return fmt.Sprintf("executive view: row %q missing from table %q", e.Row, e.Table)
}

// OrgSection is one organization summarized from its finished rollup.
type OrgSection struct {
	Label      string
	Source     string
	Categories []string
}

// ResolutionSection reports the resolution column of Source per category. It is
// emitted only when Source has Column.
type ResolutionSection struct {
	Label      string
	Source     string
	Column     string
	Categories []string
}

// OtherSection reports the other-bucket rows of Source. It is emitted only when
// Source has the Header row; absent member rows report zeros.
type OtherSection struct {
	Label  string
	Source string
	Header string
	Rows   []string
}

// ExecutiveSpec configures the cross-organization summary.
type ExecutiveSpec struct {
	Name          string
	Sheet         string
	Organizations []OrgSection
	Resolution    *ResolutionSection
	Other         *OtherSection
}

// BuildExecutiveView reduces finished rollups, keyed by table name, into the
// executive summary. A missing source table or category row is an error.
func BuildExecutiveView(spec ExecutiveSpec, tables map[string]*MetricTable, now time.Time) (*MetricTable, error) {
	bulletin := BulletinHeader(now)
	out := NewTable(spec.Name, spec.Sheet, ExecLabelHeader, []string{ColExecProcessing, ColExecQC, bulletin})
	add := func(label string, proc, qc int) {
		r := out.AddRow(label)
		r.SetInt(ColExecProcessing, proc)
		r.SetInt(ColExecQC, qc)
		r.SetText(bulletin, "")
	}

	for _, org := range spec.Organizations {
		rows, err := categoryRows(tables, org.Source, org.Categories)
		if err != nil {
			return nil, err
		}
		add(org.Label, sumColumn(rows, ColPRO), sumColumn(rows, ColQC))
		for i, cat := range org.Categories {
			add(CategoryName(cat), rows[i].Int(ColPRO), rows[i].Int(ColQC))
		}
	}

	if res := spec.Resolution; res != nil {
		src, ok := tables[res.Source]
		if !ok {
			return nil, &MissingRowError{Table: res.Source}
		}
		if src.HasColumn(res.Column) {
			rows, err := categoryRows(tables, res.Source, res.Categories)
			if err != nil {
				return nil, err
			}
			add(res.Label, sumColumn(rows, res.Column), 0)
			for i, cat := range res.Categories {
				add(CategoryName(cat), rows[i].Int(res.Column), 0)
			}
		}
	}

	if other := spec.Other; other != nil {
		src, ok := tables[other.Source]
		if !ok {
			return nil, &MissingRowError{Table: other.Source}
		}
		if header, ok := src.Row(other.Header); ok {
			add(other.Label, header.Int(ColPRO), 0)
			for _, label := range other.Rows {
				n := 0
				if r, ok := src.Row(label); ok {
					n = r.Int(ColPRO)
				}
				add(label, n, 0)
			}
		}
	}
	return out, nil
}

// CategoryName is the display name of a category marker label.
func CategoryName(marker string) string {
	return strings.TrimSuffix(NormalizeLabel(marker), categorySuffix)
}

func categoryRows(tables map[string]*MetricTable, source string, categories []string) ([]*Row, error) {
	t, ok := tables[source]
	if !ok {
		return nil, &MissingRowError{Table: source}
	}
	rows := make([]*Row, len(categories))
	for i, cat := range categories {
		r, ok := t.Row(cat)
		if !ok {
			return nil, &MissingRowError{Table: source, Row: cat}
		}
		rows[i] = r
	}
	return rows, nil
}

func sumColumn(rows []*Row, col string) int {
	sum := 0
	for _, r := range rows {
		sum += r.Int(col)
	}
	return sum
}
