package dashboard

// DefaultGrandTotal is the terminal row label of the layout templates.
const DefaultGrandTotal = "Grand Total by Queue:"

// OtherBucket is the fixed, non-hierarchical set of rows reported as one
// aggregate under Header.
type OtherBucket struct {
	Header  string
	Members []string
}

// Hierarchy is the marker configuration of one layout: which row labels open a
// category, which label closes the table and which rows form the other bucket.
type Hierarchy struct {
	Markers    []string
	GrandTotal string
	Other      OtherBucket
}

// Assign walks labels left to right with a single current-category slot and
// returns the category of each position ("" for none). Marker rows, the grand
// total row and rows before the first marker have no category. Every other row,
// other-bucket rows included, joins the current category.
func (h Hierarchy) Assign(labels []string) []string {
	markers := keySet(h.Markers)
	terminal := JoinKey(h.GrandTotal)

	out := make([]string, len(labels))
	current := ""
	for i, l := range labels {
		key := JoinKey(l)
		switch {
		case markers[key]:
			current = l
		case key == terminal:
		case current != "":
			out[i] = current
		}
	}
	return out
}

// RollupCategories writes into each marker row the per-column sum of the rows
// assigned to that category, overwriting any placeholder.
func (h Hierarchy) RollupCategories(t *MetricTable, metrics []string) {
	assigned := h.Assign(t.Labels())
	for _, marker := range h.Markers {
		key := JoinKey(marker)
		totals := map[string]int{}
		for i, r := range t.Rows {
			if assigned[i] == "" || JoinKey(assigned[i]) != key {
				continue
			}
			for _, col := range metrics {
				totals[col] += r.Int(col)
			}
		}
		for _, r := range t.RowsLabeled(marker) {
			for _, col := range metrics {
				r.SetInt(col, totals[col])
			}
		}
	}
}

// RollupOther sums the bucket members into the header row, then zeroes every
// metric except primary on the members. The header keeps its totals.
func (h Hierarchy) RollupOther(t *MetricTable, metrics []string, primary string) {
	if h.Other.Header == "" {
		return
	}
	members := keySet(h.Other.Members)
	delete(members, JoinKey(h.Other.Header))

	totals := map[string]int{}
	var memberRows []*Row
	for _, r := range t.Rows {
		if !members[JoinKey(r.Label)] {
			continue
		}
		memberRows = append(memberRows, r)
		for _, col := range metrics {
			totals[col] += r.Int(col)
		}
	}
	for _, r := range t.RowsLabeled(h.Other.Header) {
		for _, col := range metrics {
			r.SetInt(col, totals[col])
		}
	}
	for _, r := range memberRows {
		for _, col := range metrics {
			if col != primary {
				r.SetInt(col, 0)
			}
		}
	}
}

// RollupGrandTotal sums the category rows and the other-bucket header into the
// grand total row. The grand total row is never one of its own sources.
func (h Hierarchy) RollupGrandTotal(t *MetricTable, metrics []string) {
	if h.GrandTotal == "" {
		return
	}
	sources := keySet(h.Markers)
	if h.Other.Header != "" {
		sources[JoinKey(h.Other.Header)] = true
	}
	delete(sources, JoinKey(h.GrandTotal))

	totals := map[string]int{}
	for _, r := range t.Rows {
		if !sources[JoinKey(r.Label)] {
			continue
		}
		for _, col := range metrics {
			totals[col] += r.Int(col)
		}
	}
	for _, r := range t.RowsLabeled(h.GrandTotal) {
		for _, col := range metrics {
			r.SetInt(col, totals[col])
		}
	}
}

// structural reports whether label is a marker, the other header or the grand
// total, i.e. a row that is not a leaf queue.
func (h Hierarchy) structural(label string) bool {
	key := JoinKey(label)
	if key == JoinKey(h.GrandTotal) || (h.Other.Header != "" && key == JoinKey(h.Other.Header)) {
		return true
	}
	return keySet(h.Markers)[key]
}

func keySet(labels []string) map[string]bool {
	out := make(map[string]bool, len(labels))
	for _, l := range labels {
		if k := JoinKey(l); k != "" {
			out[k] = true
		}
	}
	return out
}
