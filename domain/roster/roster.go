// Package roster enriches the users productivity sheet with shift schedules
// taken from the member master list.
package roster

import (
	"regexp"
	"strings"
	"time"

	"command-centre/domain/dashboard"
)

// ColShiftSchedule is the column added to the users table.
const ColShiftSchedule = "Shift Schedule"

// Member is one entry of the member master list.
type Member struct {
	Name       string
	Supervisor string
	Shift      string
}

var trailingNote = regexp.MustCompile(`-.*`)

// NormalizeAgent is the lookup form of a member name.
func NormalizeAgent(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// NormalizeSupervisor turns "Last, First Middle - note" into "FIRST LAST".
// Names without a comma are only upper-cased.
func NormalizeSupervisor(name string) string {
	base := strings.TrimSpace(trailingNote.ReplaceAllString(name, ""))
	last, rest, ok := strings.Cut(base, ",")
	if !ok {
		return strings.ToUpper(base)
	}
	first := ""
	if f := strings.Fields(rest); len(f) > 0 {
		first = f[0]
	}
	return strings.ToUpper(strings.TrimSpace(first + " " + strings.TrimSpace(last)))
}

// Directory resolves shift schedules by member name, then by supervisor name.
type Directory struct {
	byMember     map[string]string
	bySupervisor map[string]string
}

// NewDirectory indexes members. Later entries win, as in the master list.
func NewDirectory(members []Member) Directory {
	d := Directory{byMember: map[string]string{}, bySupervisor: map[string]string{}}
	for _, m := range members {
		if k := NormalizeAgent(m.Name); k != "" {
			d.byMember[k] = m.Shift
		}
		if k := NormalizeSupervisor(m.Supervisor); k != "" {
			d.bySupervisor[k] = m.Shift
		}
	}
	return d
}

// Shift returns the schedule for a row label of the users sheet.
func (d Directory) Shift(label string) (string, bool) {
	if s, ok := d.byMember[NormalizeAgent(label)]; ok && s != "" {
		return s, true
	}
	s, ok := d.bySupervisor[NormalizeSupervisor(label)]
	return s, ok && s != ""
}

// Enrich builds the users table from sheet. Row 0 is the header; the first
// column holds the member name and becomes the row label. Blank headers are
// dropped, repeated headers get _n suffixes, bulletin-board columns are
// time-stamped with their annotations kept.
func Enrich(name, sheetName string, sheet dashboard.Sheet, members []Member, now time.Time) *dashboard.MetricTable {
	var header []string
	if len(sheet) > 0 {
		header = dashboard.UniqueLabels(sheet[0])
	}
	labelHeader := ""
	if len(header) > 0 {
		labelHeader = header[0]
	}
	var cols []string
	for i := 1; i < len(header); i++ {
		if header[i] != "" {
			cols = append(cols, header[i])
		}
	}

	t := dashboard.NewTable(name, sheetName, labelHeader, cols)
	t.EnsureColumn(ColShiftSchedule)
	dir := NewDirectory(members)
	for i := 1; i < len(sheet); i++ {
		row := sheet[i]
		if blank(row) {
			continue
		}
		label := ""
		if len(row) > 0 {
			label = strings.TrimSpace(row[0])
		}
		r := t.AddRow(label)
		for j := 1; j < len(header) && j < len(row); j++ {
			if header[j] != "" {
				r.SetText(header[j], strings.TrimSpace(row[j]))
			}
		}
		shift, _ := dir.Shift(label)
		r.SetText(ColShiftSchedule, shift)
	}
	dashboard.RenameBulletin(t, now)
	return t
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
