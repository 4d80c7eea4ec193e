package dashboard

import "sort"

// LockStatus is the normalized lock state of an operational record.
type LockStatus int

const (
	Unlocked LockStatus = iota
	Locked
)

func (l LockStatus) String() string {
	if l == Locked {
		return "LOCKED"
	}
	return "UNLOCKED"
}

// Record is one work item observed in an operational snapshot.
type Record struct {
	Queue      string
	DocumentID string
	Lock       LockStatus
}

// Document is one row of a secondary per-document extract (personal folders,
// resolution queue).
type Document struct {
	DocType    string
	DocumentID string
}

// Sheet is a raw, headerless grid of cell values as read from a workbook.
type Sheet [][]string

// Counts maps a queue join key to a count. Lookups of absent queues return 0.
type Counts map[string]int

// Get returns the count for queue, or 0 when the queue has no entry.
func (c Counts) Get(queue string) int {
	return c[JoinKey(queue)]
}

// Has reports whether queue has an entry.
func (c Counts) Has(queue string) bool {
	_, ok := c[JoinKey(queue)]
	return ok
}

func (c Counts) add(queue string, n int) {
	key := JoinKey(queue)
	if key == "" {
		return
	}
	c[key] += n
}

// DocTypeMapping folds doc-type keyed sources into the queue namespace.
// A doc type may map to several queue descriptions; it then contributes to each.
type DocTypeMapping struct {
	queues map[string][]string
}

// NewDocTypeMapping returns an empty mapping.
func NewDocTypeMapping() DocTypeMapping {
	return DocTypeMapping{queues: map[string][]string{}}
}

// Add registers docType -> queue. Blank keys or values are ignored, as are
// exact duplicates.
func (m DocTypeMapping) Add(docType, queue string) {
	key := JoinKey(docType)
	queue = NormalizeLabel(queue)
	if key == "" || queue == "" {
		return
	}
	for _, q := range m.queues[key] {
		if JoinKey(q) == JoinKey(queue) {
			return
		}
	}
	m.queues[key] = append(m.queues[key], queue)
}

// Lookup returns the queue descriptions for docType.
func (m DocTypeMapping) Lookup(docType string) ([]string, bool) {
	qs, ok := m.queues[JoinKey(docType)]
	return qs, ok
}

// Len is the number of mapped doc types.
func (m DocTypeMapping) Len() int { return len(m.queues) }

// Diagnostics collects the lenient-policy misses of one layout rollup. It never
// changes output values.
type Diagnostics struct {
	Layout           string
	UnmatchedQueues  []string
	Overridden       []string
	SkippedSecondary []string
}

// SecondaryResult is a mapped secondary extract plus the doc types that had no
// mapping entry.
type SecondaryResult struct {
	Counts   Counts
	Unmapped []string
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
