package dashboard

import (
	"strings"

	"github.com/samber/lo"
)

// SecondaryColumn binds a layout column to a mapped secondary extract.
type SecondaryColumn struct {
	Column string
	Source string
	// Inject adds the column when the layout does not declare it. By default
	// only declared columns are filled.
	Inject bool
}

// MapDocuments counts distinct documents per doc type, folds the counts into
// queue descriptions through mapping and sums them per queue. Doc types without
// a mapping entry contribute nothing and are reported in Unmapped.
func MapDocuments(docs []Document, mapping DocTypeMapping) SecondaryResult {
	docs = lo.Filter(docs, func(d Document, _ int) bool {
		return JoinKey(d.DocType) != "" && strings.TrimSpace(d.DocumentID) != ""
	})
	byType := lo.GroupBy(docs, func(d Document) string { return JoinKey(d.DocType) })

	out := SecondaryResult{Counts: Counts{}}
	unmapped := map[string]struct{}{}
	for _, group := range byType {
		n := len(lo.Uniq(lo.Map(group, func(d Document, _ int) string {
			return strings.TrimSpace(d.DocumentID)
		})))
		queues, ok := mapping.Lookup(group[0].DocType)
		if !ok {
			unmapped[NormalizeLabel(group[0].DocType)] = struct{}{}
			continue
		}
		for _, q := range queues {
			out.Counts.add(q, n)
		}
	}
	out.Unmapped = sortedKeys(unmapped)
	return out
}

// applySecondary fills the secondary columns of t. It returns the columns that
// were skipped because the layout does not declare them.
func applySecondary(t *MetricTable, cols []SecondaryColumn, sources map[string]Counts) []string {
	var skipped []string
	for _, sc := range cols {
		if !sc.Inject && !t.HasColumn(sc.Column) {
			skipped = append(skipped, sc.Column)
			continue
		}
		t.SetColumn(sc.Column, sources[sc.Source])
	}
	return skipped
}
