// Package dashboard implements the layout-driven rollup of the Command Centre
// dashboard.
//
// A run starts from an operational snapshot (one Record per work item), a set of
// secondary per-document extracts and one template sheet per organizational
// layout. ParseLayout finds the header row of a template by content, Aggregate
// computes distinct-document counts per queue, MapDocuments folds doc-type keyed
// extracts into queue names, and Engine.Rollup fuses everything onto the layout:
// category totals inferred from marker rows, special-queue overrides, the other
// bucket, the grand total and the derived summary columns. BuildExecutiveView
// then reduces two finished rollups into one cross-organization summary.
//
// Every join is lenient. Unknown queues and unmapped doc types count as zero and
// are surfaced through Diagnostics rather than failing the run.
package dashboard
