package dashboard

// Override replaces the primary metric of the row labelled Label with the
// distinct-document count of the raw operational queue Queue.
type Override struct {
	Label string
	Queue string
}

// DefaultOverrides maps reporting labels to the internal queue codes they
// diverge from.
var DefaultOverrides = []Override{
	{Label: "Doc Translation", Queue: "DocTranslation"},
	{Label: "Reso Validation", Queue: "ResolutionValidation"},
	{Label: "RMA", Queue: "ResolutionManagerApproval"},
	{Label: "Index Queue", Queue: "General Index"},
}

// ApplyOverrides writes each override into col of every row carrying its
// label, regardless of what the generic aggregation produced. It returns the
// labels that were present. Applying the same overrides twice is a no-op.
//
// Category rows are not recomputed: an overridden leaf keeps its generic value
// inside its category total.
func ApplyOverrides(t *MetricTable, records []Record, overrides []Override, col string) []string {
	var applied []string
	for _, o := range overrides {
		rows := t.RowsLabeled(o.Label)
		if len(rows) == 0 {
			continue
		}
		n := DistinctDocuments(records, o.Queue)
		for _, r := range rows {
			r.SetInt(col, n)
		}
		applied = append(applied, o.Label)
	}
	return applied
}
