package dashboard

// Formula fills Column with the sum of Terms. It is evaluated only when Column
// is present and every column in Requires is present. Absent terms add 0.
type Formula struct {
	Column   string
	Terms    []string
	Requires []string
}

// DefaultFormulas are the summary columns expected by the layout templates.
var DefaultFormulas = []Formula{
	{Column: ColTotal, Terms: []string{ColPRO, ColQC}},
	{Column: ColTotal1, Terms: []string{ColReso}, Requires: []string{ColReso}},
	{Column: ColTotal2, Terms: []string{
		ColProPersonalFolders, ColProFTELocked,
		ColResoPersonalFolders, ColResoFTELocked,
	}},
}

// ApplyFormulas evaluates formulas on every row of t.
func ApplyFormulas(t *MetricTable, formulas []Formula) {
	for _, f := range formulas {
		if !t.HasColumn(f.Column) || len(t.PresentMetrics(f.Requires)) != len(f.Requires) {
			continue
		}
		for _, r := range t.Rows {
			sum := 0
			for _, term := range f.Terms {
				sum += r.Int(term)
			}
			r.SetInt(f.Column, sum)
		}
	}
}
