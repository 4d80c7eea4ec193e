package dashboard

import (
	"fmt"
	"strings"
)

// DefaultSentinel is the text that identifies the header row of a layout sheet.
const DefaultSentinel = "PRO Queue"

// LayoutParseError reports a layout sheet with no header row. It is fatal for
// that layout: without a header no queue identity can be established.
type LayoutParseError struct {
	Sheet    string
	Sentinel string
}

func (e *LayoutParseError) Error() string {
	return fmt.Sprintf("layout %q: no header row containing %q", e.Sheet, e.Sentinel)
}

// Layout is the table sliced out of a template sheet.
type Layout struct {
	Sheet string
	// Columns are the normalized header labels, QueueName first. Blank header
	// cells are dropped and repeated labels are suffixed _1, _2, ...
	Columns []string
	Entries []LayoutEntry
}

// LayoutEntry is one template row in sheet order.
type LayoutEntry struct {
	Queue string
	Cells map[string]string
}

// ParseLayout locates the header row of sheet by the first cell containing
// sentinel (case-insensitive) and binds every row below it to those labels.
func ParseLayout(name string, sheet Sheet, sentinel string) (*Layout, error) {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	header := findHeaderRow(sheet, sentinel)
	if header < 0 {
		return nil, &LayoutParseError{Sheet: name, Sentinel: sentinel}
	}

	labels := UniqueLabels(sheet[header])
	queueCol := -1
	for i, l := range labels {
		if l == ColQueueName {
			queueCol = i
			break
		}
	}

	columns := []string{ColQueueName}
	for _, l := range labels {
		if l != "" && l != ColQueueName {
			columns = append(columns, l)
		}
	}

	layout := &Layout{Sheet: name, Columns: columns}
	// Blank rows are kept as spacer entries with an empty queue name.
	for _, row := range sheet[header+1:] {
		// Without an explicit QueueName column the first raw column holds it.
		q := cell(row, 0)
		if queueCol >= 0 {
			q = cell(row, queueCol)
		}
		entry := LayoutEntry{Queue: NormalizeLabel(q), Cells: map[string]string{}}
		for i, l := range labels {
			if l == "" || i == queueCol {
				continue
			}
			entry.Cells[l] = strings.TrimSpace(cell(row, i))
		}
		layout.Entries = append(layout.Entries, entry)
	}
	return layout, nil
}

// Queues returns the entry queue names in template order.
func (l *Layout) Queues() []string {
	out := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		out[i] = e.Queue
	}
	return out
}

func findHeaderRow(sheet Sheet, sentinel string) int {
	want := strings.ToLower(sentinel)
	for i, row := range sheet {
		for _, c := range row {
			if strings.Contains(strings.ToLower(c), want) {
				return i
			}
		}
	}
	return -1
}

// UniqueLabels normalizes header labels and suffixes repeats with _1, _2.
// Blank labels stay blank.
func UniqueLabels(raw []string) []string {
	labels := NormalizeLabels(raw)
	seen := map[string]int{}
	for i, l := range labels {
		if l == "" {
			continue
		}
		n := seen[l]
		seen[l] = n + 1
		if n > 0 {
			labels[i] = fmt.Sprintf("%s_%d", l, n)
		}
	}
	return labels
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
