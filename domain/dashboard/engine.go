package dashboard

import (
	"log/slog"
	"time"
)

// LayoutSpec configures the rollup of one organizational layout sheet.
type LayoutSpec struct {
	// Name is the table name handed to the sinks.
	Name      string
	Sheet     string
	Hierarchy Hierarchy
	Secondary []SecondaryColumn
}

// Inputs are the fully materialized sources of one run.
type Inputs struct {
	Records   []Record
	Metrics   QueueMetrics
	Secondary map[string]Counts
}

// Engine turns a layout sheet and the run inputs into a rolled-up MetricTable.
// It holds no state between calls.
type Engine struct {
	Sentinel  string
	QCSuffix  string
	Overrides []Override
	Formulas  []Formula
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewEngine returns an Engine with the default sentinel, suffix, overrides and
// formulas.
func NewEngine() *Engine {
	return &Engine{
		Sentinel:  DefaultSentinel,
		QCSuffix:  DefaultQCSuffix,
		Overrides: DefaultOverrides,
		Formulas:  DefaultFormulas,
	}
}

// Aggregate computes the queue metrics of records with the engine's QC suffix.
func (e *Engine) Aggregate(records []Record) QueueMetrics {
	return Aggregate(records, e.QCSuffix)
}

// Rollup parses sheet and produces the finished table for spec. The stages run
// in a fixed order: queue metrics, secondary columns, placeholders, category
// totals, overrides, other bucket, grand total, derived totals.
func (e *Engine) Rollup(spec LayoutSpec, sheet Sheet, in Inputs) (*MetricTable, Diagnostics, error) {
	diag := Diagnostics{Layout: spec.Name}
	layout, err := ParseLayout(spec.Sheet, sheet, e.Sentinel)
	if err != nil {
		return nil, diag, err
	}

	t := NewTable(spec.Name, spec.Sheet, ColQueueName, layout.Columns[1:])
	for _, entry := range layout.Entries {
		r := t.AddRow(entry.Queue)
		for col, v := range entry.Cells {
			r.SetText(col, v)
		}
	}

	m := in.Metrics
	t.SetColumn(ColPRO, m.Primary)
	t.SetColumn(ColLockedPRO, m.PrimaryLocked)
	t.SetColumn(ColQC, m.QC)
	t.SetColumn(ColLockedQC, m.QCLocked)
	t.SetColumn(ColProcessed, m.Processed)
	diag.SkippedSecondary = applySecondary(t, spec.Secondary, in.Secondary)
	for _, col := range PlaceholderMetrics {
		t.FillColumn(col, 0)
	}

	for _, r := range t.Rows {
		if r.Label == "" || spec.Hierarchy.structural(r.Label) {
			continue
		}
		if !m.Primary.Has(r.Label) && !m.QC.Has(r.Label) && !m.Processed.Has(r.Label) {
			diag.UnmatchedQueues = append(diag.UnmatchedQueues, r.Label)
		}
	}

	metrics := t.PresentMetrics(NumericMetrics)
	spec.Hierarchy.RollupCategories(t, metrics)
	diag.Overridden = ApplyOverrides(t, in.Records, e.Overrides, ColPRO)
	spec.Hierarchy.RollupOther(t, metrics, ColPRO)
	spec.Hierarchy.RollupGrandTotal(t, metrics)
	ApplyFormulas(t, e.Formulas)
	StampBulletin(t, e.now())

	e.logger().Debug("rollup.layout.built",
		"layout", spec.Name,
		"rows", len(t.Rows),
		"columns", len(t.Columns),
		"unmatched", len(diag.UnmatchedQueues),
		"overridden", len(diag.Overridden))
	return t, diag, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
