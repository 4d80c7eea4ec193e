// Package calendar normalizes the calendar-of-events sheet.
package calendar

import (
	"strings"
	"time"

	"command-centre/domain/dashboard"
)

// Source and output columns.
const (
	ColEvent     = "Event"
	ColStartDay  = "Start Day (YYYY-MM-DD)"
	ColStartTime = "Start Time (HH:MM)"
	ColEndDay    = "End Day (YYYY-MM-DD)"
	ColEndTime   = "End Time (HH:MM)"
	ColStartDate = "Start Date"
	ColEndDate   = "End Date"

	// DateLayout is the format of the combined start and end dates.
	DateLayout = "2006-01-02T15:04"
)

var dayLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006",
	"1/2/06",
	"01-02-06",
	"2-Jan-2006",
}

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04:05 PM",
	"3:04PM",
}

// Event is one calendar entry.
type Event struct {
	Name  string
	Start string
	End   string
}

// Combine joins a day and a time of day into DateLayout. A blank time means
// midnight. It returns "" when the day or the time cannot be parsed.
func Combine(day, clock string) string {
	d, ok := parse(strings.TrimSpace(day), dayLayouts)
	if !ok {
		return ""
	}
	clock = strings.TrimSpace(clock)
	if clock == "" {
		return d.Format(DateLayout)
	}
	c, ok := parse(clock, timeLayouts)
	if !ok {
		return ""
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, time.UTC).Format(DateLayout)
}

func parse(s string, layouts []string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Events reads sheet, whose first row is the header.
func Events(sheet dashboard.Sheet) []Event {
	if len(sheet) == 0 {
		return nil
	}
	idx := map[string]int{}
	for i, h := range dashboard.NormalizeLabels(sheet[0]) {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []Event
	for _, row := range sheet[1:] {
		name := get(row, ColEvent)
		start := Combine(get(row, ColStartDay), get(row, ColStartTime))
		end := Combine(get(row, ColEndDay), get(row, ColEndTime))
		if name == "" && start == "" && end == "" {
			continue
		}
		out = append(out, Event{Name: name, Start: start, End: end})
	}
	return out
}

// Build returns the calendar table for events.
func Build(name, sheetName string, events []Event) *dashboard.MetricTable {
	t := dashboard.NewTable(name, sheetName, ColEvent, []string{ColStartDate, ColEndDate})
	for _, e := range events {
		r := t.AddRow(e.Name)
		r.SetText(ColStartDate, e.Start)
		r.SetText(ColEndDate, e.End)
	}
	return t
}
